// Package cli is the cobra command tree for mcpwatch.
package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/mcpwatch/mcpwatch/internal/config"
)

var debugFlag bool

var rootCmd = &cobra.Command{
	Use:           "mcpwatch",
	Short:         "Passively observe HTTP and MCP traffic.",
	Long:          "mcpwatch reconstructs HTTP request/response transactions, including SSE streams carrying MCP traffic, from captured TCP packets.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	config.Init()

	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable verbose debug logging.")
	config.BindPersistent(rootCmd, "debug")

	rootCmd.AddCommand(fileCmd)
	rootCmd.AddCommand(liveCmd)
}

// Execute runs the command tree and returns the process exit code: 0 on
// success, 2 for a usage error, 3 for a capture-open failure, 4 for an
// unsupported link-layer, 1 for anything else unexpected.
func Execute() int {
	cmd, err := rootCmd.ExecuteC()
	if err == nil {
		return 0
	}

	var ee exitError
	if errors.As(err, &ee) {
		cmd.PrintErrln(ee.Error())
		return ee.code
	}

	cmd.PrintErrln(err)
	return 1
}
