package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	pkgerrors "github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mcpwatch/mcpwatch/internal/capture"
	"github.com/mcpwatch/mcpwatch/internal/config"
	"github.com/mcpwatch/mcpwatch/internal/logging"
	"github.com/mcpwatch/mcpwatch/internal/pipeline"
	"github.com/mcpwatch/mcpwatch/internal/render"
)

var filePathFlag string
var fileBPFFlag string

var fileCmd = &cobra.Command{
	Use:   "file",
	Short: "Read packets from a capture file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if filePathFlag == "" {
			return usageError(errors.New("-p/--path is required"))
		}
		src := capture.NewFileSource(filePathFlag, fileBPFFlag)
		return run(cmd, src)
	},
}

func init() {
	fileCmd.Flags().StringVarP(&filePathFlag, "path", "p", "", "Path to a pcap/pcapng capture file.")
	fileCmd.Flags().StringVarP(&fileBPFFlag, "filter", "f", "", "Optional BPF filter expression.")
}

func run(cmd *cobra.Command, src capture.Source) error {
	log := logging.Must(config.Debug())
	defer log.Sync()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	if os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stdout.Fd())) {
		render.DisableColor()
	}

	p := pipeline.New(src, render.Stdout, log)
	if err := p.Run(ctx); err != nil {
		var lle capture.UnsupportedLinkLayerError
		if errors.As(err, &lle) {
			return unsupportedLinkLayerError(err)
		}
		return captureOpenError(pkgerrors.Wrap(err, "failed to open capture source"))
	}
	return nil
}
