package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v2"

	"github.com/yosbelms/mdize"
)

// openEngine builds an engine from --config and the command's flags.
func openEngine(c *cli.Context) (mdize.Engine, error) {
	cfg := mdize.DefaultConfig()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = mdize.LoadConfig(path); err != nil {
			return nil, err
		}
	}
	if c.Bool("no-cache") {
		cfg.DisableCache = true
	}
	return mdize.New(cfg)
}

// ConvertAction converts every FILE argument. Without --out the Markdown
// is written to stdout, separated by blank lines.
func ConvertAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("convert: at least one FILE is required", 2)
	}
	meta, err := parseMeta(c.StringSlice("meta"))
	if err != nil {
		return err
	}

	e, err := openEngine(c)
	if err != nil {
		return err
	}
	defer e.Close()

	var opts []mdize.ConvertOption
	if c.Bool("force") {
		opts = append(opts, mdize.WithForce())
	}
	if len(meta) > 0 {
		opts = append(opts, mdize.WithMetadata(meta))
	}

	outDir := c.String("out")
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	failed := 0
	for i, path := range c.Args().Slice() {
		res, err := e.Convert(c.Context, path, opts...)
		if err != nil {
			fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", path, err)
			failed++
			continue
		}

		if outDir == "" {
			if i > 0 {
				fmt.Fprintln(c.App.Writer)
			}
			fmt.Fprintln(c.App.Writer, res.Markdown)
			continue
		}

		target := filepath.Join(outDir, markdownName(res.Filename))
		if err := os.WriteFile(target, []byte(res.Markdown+"\n"), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", target, err)
		}
		cached := ""
		if res.Cached {
			cached = " (cached)"
		}
		fmt.Fprintf(c.App.Writer, "%s -> %s%s\n", path, target, cached)
	}

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d files failed", failed, c.NArg()), 1)
	}
	return nil
}

// FormatsAction prints the supported file extensions, one per line.
func FormatsAction(c *cli.Context) error {
	e, err := openEngine(c)
	if err != nil {
		return err
	}
	defer e.Close()

	for _, f := range e.Formats() {
		fmt.Fprintln(c.App.Writer, f)
	}
	return nil
}

func ListAction(c *cli.Context) error {
	e, err := openEngine(c)
	if err != nil {
		return err
	}
	defer e.Close()

	docs, err := e.ListDocuments(c.Context)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}
	if len(docs) == 0 {
		fmt.Fprintln(c.App.Writer, "No documents found")
		return nil
	}

	fmt.Fprintf(c.App.Writer, "%-6s %-8s %-10s %-8s %-6s %s\n", "ID", "Format", "Method", "Status", "Lang", "Path")
	fmt.Fprintln(c.App.Writer, strings.Repeat("-", 80))
	for _, d := range docs {
		fmt.Fprintf(c.App.Writer, "%-6d %-8s %-10s %-8s %-6s %s\n",
			d.ID, d.Format, d.Method, d.Status, d.Language, d.Path)
	}
	fmt.Fprintf(c.App.Writer, "\nTotal: %d documents\n", len(docs))
	return nil
}

func GetAction(c *cli.Context) error {
	id, err := idArg(c)
	if err != nil {
		return err
	}
	e, err := openEngine(c)
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := e.Get(c.Context, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, res.Markdown)
	return nil
}

func DeleteAction(c *cli.Context) error {
	id, err := idArg(c)
	if err != nil {
		return err
	}
	e, err := openEngine(c)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.Delete(c.Context, id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "deleted %d\n", id)
	return nil
}

func UpdateAction(c *cli.Context) error {
	e, err := openEngine(c)
	if err != nil {
		return err
	}
	defer e.Close()

	results, err := e.UpdateAll(c.Context)
	if err != nil {
		return err
	}
	changed := 0
	for _, r := range results {
		switch {
		case r.Error != nil:
			fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", r.Path, r.Error)
		case r.Changed:
			changed++
			fmt.Fprintf(c.App.Writer, "updated %s\n", r.Path)
		}
	}
	fmt.Fprintf(c.App.Writer, "%d of %d documents changed\n", changed, len(results))
	return nil
}

func StatsAction(c *cli.Context) error {
	e, err := openEngine(c)
	if err != nil {
		return err
	}
	defer e.Close()

	stats, err := e.Stats(c.Context)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

// MCPAction serves the conversion tools over stdio until the client
// disconnects.
func MCPAction(c *cli.Context) error {
	e, err := openEngine(c)
	if err != nil {
		return err
	}
	defer e.Close()

	srv := mcp.NewServer(&mcp.Implementation{Name: "mdize", Version: version}, nil)
	mdize.RegisterMCP(srv, e)
	return srv.Run(c.Context, &mcp.StdioTransport{})
}

func idArg(c *cli.Context) (int64, error) {
	if c.NArg() != 1 {
		return 0, cli.Exit(c.Command.Name+": exactly one ID is required", 2)
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil || id <= 0 {
		return 0, cli.Exit(fmt.Sprintf("%s: invalid ID %q", c.Command.Name, c.Args().First()), 2)
	}
	return id, nil
}

func parseMeta(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, errors.New("--meta expects KEY=VALUE, got " + strconv.Quote(p))
		}
		meta[k] = v
	}
	return meta, nil
}

// markdownName replaces the extension of name with .md.
func markdownName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".md"
}
