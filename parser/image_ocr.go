//go:build ocr

package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/yosbelms/mdize/layout"
)

// minWordConfidence drops tesseract's noise boxes.
const minWordConfidence = 30

func recognizeWords(ctx context.Context, path string, languages []string) ([]layout.Word, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := gosseract.NewClient()
	defer c.Close()

	if len(languages) > 0 {
		if err := c.SetLanguage(languages...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetImage(path); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("recognize words: %w", err)
	}

	words := make([]layout.Word, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" || b.Confidence < minWordConfidence {
			continue
		}
		// Box height stands in for the font size; OCR has no font names.
		words = append(words, layout.Word{
			Text:     text,
			X0:       float64(b.Box.Min.X),
			X1:       float64(b.Box.Max.X),
			Top:      float64(b.Box.Min.Y),
			FontSize: float64(b.Box.Dy()),
		})
	}
	return words, nil
}
