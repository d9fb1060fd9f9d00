package mdize

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/pemistahl/lingua-go"
)

const (
	// minLanguageLetters is the least amount of letters worth detecting on.
	minLanguageLetters = 20
	// maxLanguageSample caps the runes handed to the detector.
	maxLanguageSample = 4000
)

var (
	isoOnce      sync.Once
	isoLanguages map[string]lingua.Language
)

// linguaLanguages maps ISO 639-1 codes to lingua languages. An empty list
// selects every language lingua knows.
func linguaLanguages(codes []string) ([]lingua.Language, error) {
	isoOnce.Do(func() {
		isoLanguages = make(map[string]lingua.Language)
		for _, l := range lingua.AllLanguages() {
			isoLanguages[strings.ToLower(l.IsoCode639_1().String())] = l
		}
	})
	if len(codes) == 0 {
		return lingua.AllLanguages(), nil
	}

	var out []lingua.Language
	var unknown []string
	seen := make(map[lingua.Language]bool)
	for _, c := range codes {
		l, ok := isoLanguages[strings.ToLower(strings.TrimSpace(c))]
		if !ok {
			unknown = append(unknown, c)
			continue
		}
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown language codes %v", unknown)
	}
	if len(out) < 2 {
		return nil, fmt.Errorf("language detection needs at least two languages, got %d", len(out))
	}
	return out, nil
}

// languageDetector wraps a lingua detector that is built on first use.
type languageDetector struct {
	languages []lingua.Language
	once      sync.Once
	detector  lingua.LanguageDetector
}

func newLanguageDetector(codes []string) (*languageDetector, error) {
	langs, err := linguaLanguages(codes)
	if err != nil {
		return nil, err
	}
	return &languageDetector{languages: langs}, nil
}

// Detect returns the lowercase ISO 639-1 code of the text's language, or ""
// when the text is too short or no language is reliable.
func (d *languageDetector) Detect(markdown string) string {
	sample := languageSample(markdown)
	if sample == "" {
		return ""
	}
	d.once.Do(func() {
		d.detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(d.languages...).
			Build()
	})
	lang, ok := d.detector.DetectLanguageOf(sample)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}

// languageSample strips Markdown syntax and URLs and truncates the text.
// It returns "" when fewer than minLanguageLetters letters remain.
func languageSample(markdown string) string {
	var b strings.Builder
	letters, runes := 0, 0
	for _, field := range strings.Fields(markdown) {
		if strings.Contains(field, "://") || strings.Trim(field, "|-#*:>") == "" {
			continue
		}
		field = strings.Trim(field, "|#*_[]()`>")
		for _, r := range field {
			if unicode.IsLetter(r) {
				letters++
			}
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(field)
		runes += len([]rune(field)) + 1
		if runes >= maxLanguageSample {
			break
		}
	}
	if letters < minLanguageLetters {
		return ""
	}
	return b.String()
}
