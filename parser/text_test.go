package parser

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

func TestTextParserNormalizes(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("\xef\xbb\xbfLine one   \r\nLine two\r\n\r\n\r\n\r\nLine three\n"))
	res, err := (&TextParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if want := "Line one\nLine two\n\nLine three"; res.Markdown != want {
		t.Errorf("markdown = %q, want %q", res.Markdown, want)
	}
	if res.Metadata["charset"] != "UTF-8" {
		t.Errorf("charset = %q", res.Metadata["charset"])
	}
}

func TestTextParserLegacyCharset(t *testing.T) {
	src := strings.Repeat("Le café de la gare est fermé pendant l'été, à cause des travaux prévus. ", 8)
	latin1, err := charmap.ISO8859_1.NewEncoder().String(src)
	if err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
	path := writeFile(t, "fr.txt", []byte(latin1))

	res, err := (&TextParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !utf8.ValidString(res.Markdown) {
		t.Fatal("output is not valid UTF-8")
	}
	if !strings.Contains(res.Markdown, "café") || !strings.Contains(res.Markdown, "été") {
		t.Errorf("accented text not decoded: %q (charset %s)", res.Markdown[:40], res.Metadata["charset"])
	}
}

func TestTextParserCSV(t *testing.T) {
	path := writeFile(t, "data.csv", []byte("name,city\n\"Smith, J\",Boston\nLee\n"))
	res, err := (&TextParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := "| name | city |\n| --- | --- |\n| Smith, J | Boston |\n| Lee |  |"
	if res.Markdown != want {
		t.Errorf("markdown:\n%s\nwant:\n%s", res.Markdown, want)
	}
}

func TestTextParserTSV(t *testing.T) {
	path := writeFile(t, "data.tsv", []byte("a\tb\n1\t2\n"))
	res, err := (&TextParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if want := "| a | b |\n| --- | --- |\n| 1 | 2 |"; res.Markdown != want {
		t.Errorf("markdown = %q, want %q", res.Markdown, want)
	}
}

func TestTextParserMissingFile(t *testing.T) {
	if _, err := (&TextParser{}).Parse(context.Background(), "/nonexistent/file.txt"); err == nil {
		t.Error("expected error for missing file")
	}
}
