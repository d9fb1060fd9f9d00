package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "mdize:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "mdize",
		Usage:   "convert documents to Markdown",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to a YAML or JSON config file", EnvVars: []string{"MDIZE_CONFIG"}},
			&cli.BoolFlag{Name: "verbose", Usage: "debug logging"},
		},
		Before: func(c *cli.Context) error {
			level := slog.LevelWarn
			if c.Bool("verbose") {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level})))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "convert",
				Usage:     "convert files to Markdown",
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write <name>.md files into `DIR` instead of stdout"},
					&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "reconvert even if cached"},
					&cli.BoolFlag{Name: "no-cache", Usage: "do not read or write the conversion cache"},
					&cli.StringSliceFlag{Name: "meta", Usage: "attach metadata as `KEY=VALUE`"},
				},
				Action: ConvertAction,
			},
			{
				Name:   "formats",
				Usage:  "list supported formats",
				Action: FormatsAction,
			},
			{
				Name:   "list",
				Usage:  "list cached conversions",
				Action: ListAction,
			},
			{
				Name:      "get",
				Usage:     "print a cached conversion",
				ArgsUsage: "ID",
				Action:    GetAction,
			},
			{
				Name:      "delete",
				Usage:     "remove a cached conversion",
				ArgsUsage: "ID",
				Action:    DeleteAction,
			},
			{
				Name:   "update",
				Usage:  "reconvert cached files whose content changed",
				Action: UpdateAction,
			},
			{
				Name:   "stats",
				Usage:  "show cache statistics",
				Action: StatsAction,
			},
			{
				Name:   "mcp",
				Usage:  "serve the conversion tools over MCP on stdio",
				Action: MCPAction,
			},
		},
	}
}
