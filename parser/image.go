package parser

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/yosbelms/mdize/layout"
)

// ImageParser recognizes the words of a raster image and reconstructs its
// layout like a PDF page. Recognition needs the "ocr" build tag.
type ImageParser struct {
	Layout    layout.Options
	Languages []string
}

func (p *ImageParser) SupportedFormats() []string {
	return []string{"png", "jpg", "jpeg", "tif", "tiff", "bmp", "gif", "webp"}
}

func (p *ImageParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	width, height, format, err := imageDimensions(path)
	if err != nil {
		return nil, err
	}

	words, err := recognizeWords(ctx, path, p.Languages)
	if err != nil {
		return nil, err
	}

	page := layout.Page{Number: 1, Width: float64(width), Height: float64(height), Words: words}
	md, err := layout.ConvertDocument(ctx, []layout.Page{page}, p.Layout)
	if err != nil {
		return nil, err
	}
	return &ParseResult{
		Markdown:  md,
		PageCount: 1,
		Method:    "ocr",
		Metadata: map[string]string{
			"image_format": format,
			"width":        fmt.Sprintf("%d", width),
			"height":       fmt.Sprintf("%d", height),
			"word_count":   fmt.Sprintf("%d", len(words)),
		},
	}, nil
}

// imageDimensions reads only the image header.
func imageDimensions(path string) (int, int, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, "", fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, "", fmt.Errorf("decoding image header: %w", err)
	}
	return cfg.Width, cfg.Height, format, nil
}
