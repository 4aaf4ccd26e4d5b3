package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/kailas-cloud/medrag/internal/config"
	"github.com/kailas-cloud/medrag/internal/version"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "medragctl",
		Usage:   "Query and maintain a medrag corpus in-process",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Config environment, selects config/<env>.yaml",
				Value:   config.GetEnv(),
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Explicit config file path (overrides --env)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print results as JSON",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "retrieve",
				Usage:     "Run a hybrid retrieval",
				ArgsUsage: "QUERY...",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of results (0 uses the configured default)",
					},
				},
				Action: retrieveCommand,
			},
			{
				Name:   "stats",
				Usage:  "Show per-collection document counts",
				Action: statsCommand,
			},
			{
				Name:      "fetch",
				Usage:     "Fetch literature for a topic into the configured collections",
				ArgsUsage: "TOPIC...",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "max",
						Aliases: []string{"n"},
						Usage:   "Maximum records to fetch (0 uses the configured default)",
					},
				},
				Action: fetchCommand,
			},
			{
				Name:      "add",
				Usage:     "Add documents to the primary collection",
				ArgsUsage: "[CONTENT...]",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Read one document from each file",
					},
					&cli.StringSliceFlag{
						Name:    "meta",
						Aliases: []string{"m"},
						Usage:   "Metadata key=value applied to every document",
					},
				},
				Action: addCommand,
			},
		},
	}
}
