//go:build !ocr

package parser

import (
	"context"
	"fmt"

	"github.com/yosbelms/mdize/layout"
)

func recognizeWords(ctx context.Context, path string, languages []string) ([]layout.Word, error) {
	return nil, fmt.Errorf("%w: image OCR not compiled in; rebuild with -tags ocr", ErrUnsupportedFormat)
}
