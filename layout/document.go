package layout

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ConvertPage renders one page: table regions when the table detector
// accepts the page, the line classifier otherwise.
func ConvertPage(page Page, opts Options) string {
	if md, ok := DetectTable(page, opts); ok {
		return md
	}
	return ClassifyPage(page, opts)
}

// ConvertDocument converts pages concurrently and concatenates their
// Markdown in page order, then repairs split numbering once over the whole
// result. The only error is the context's.
func ConvertDocument(ctx context.Context, pages []Page, opts Options) (string, error) {
	opts = opts.withDefaults()
	outputs := make([]string, len(pages))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i := range pages {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outputs[i] = strings.TrimSpace(ConvertPage(pages[i], opts))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	parts := outputs[:0]
	for _, o := range outputs {
		if o != "" {
			parts = append(parts, o)
		}
	}
	return MergeNumbering(strings.Join(parts, "\n\n")), nil
}
