package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/mcpwatch/mcpwatch/internal/capture"
)

var liveIfaceFlag string
var liveBPFFlag string

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Capture packets from a live interface.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if liveIfaceFlag == "" {
			return usageError(errors.New("-i/--interface is required"))
		}
		src := capture.NewLiveSource(liveIfaceFlag, liveBPFFlag)
		return run(cmd, src)
	},
}

func init() {
	liveCmd.Flags().StringVarP(&liveIfaceFlag, "interface", "i", "", "Network interface to capture on.")
	liveCmd.Flags().StringVarP(&liveBPFFlag, "filter", "f", "", "Optional BPF filter expression.")
}
