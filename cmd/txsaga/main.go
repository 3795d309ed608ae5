// Command txsaga compiles, validates, and runs transaction-orchestrator
// flow definitions.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

// Version is set during build using ldflags.
var Version = "dev"

func main() {
	app := &cli.Command{
		Name:    "txsaga",
		Version: Version,
		Usage:   "run and inspect saga-style transaction orchestration flows",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "trace, debug, info, warn, or error",
				Value: "info",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "text or json",
				Value: "text",
			},
			&cli.StringFlag{
				Name:  "log-output",
				Usage: "stderr, stdout, or a file path",
				Value: "stderr",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if err := setupLogging(cmd.String("log-level"), cmd.String("log-format"), cmd.String("log-output")); err != nil {
				return ctx, err
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			versionCmd,
			validateCmd,
			runCmd,
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
