package mdize

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yosbelms/mdize/layout"
	"github.com/yosbelms/mdize/parser"
)

// Config holds all configuration for the mdize engine.
type Config struct {
	// DBPath is the full path to the SQLite cache file.
	// If empty, defaults to ~/.mdize/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	// Defaults to "mdize".
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath
	// is not explicitly set. Options: "home" (default) uses ~/.mdize/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// DisableCache skips the SQLite cache entirely. Conversions are then
	// never persisted and Get/ListDocuments/Delete report no documents.
	DisableCache bool `json:"disable_cache" yaml:"disable_cache"`

	// MaxFileSize rejects larger inputs with ErrFileTooLarge. Zero disables the check.
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`

	// Timeout bounds a whole conversion. Zero means no limit.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Language detection
	DetectLanguage bool     `json:"detect_language" yaml:"detect_language"`
	Languages      []string `json:"languages" yaml:"languages"` // ISO 639-1 codes; empty means all supported

	// HTMLReadability extracts the main article of HTML pages before conversion.
	HTMLReadability bool `json:"html_readability" yaml:"html_readability"`

	// OCRLanguages are tesseract language codes for image input.
	OCRLanguages []string `json:"ocr_languages" yaml:"ocr_languages"`

	// External parsing of legacy binary formats
	LlamaParse *LlamaParseConfig `json:"llamaparse,omitempty" yaml:"llamaparse,omitempty"`

	// Layout tunes the PDF and OCR table detection.
	Layout LayoutConfig `json:"layout" yaml:"layout"`
}

// LlamaParseConfig configures the LlamaParse external parsing service.
type LlamaParseConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	BaseURL string `json:"base_url" yaml:"base_url"`
}

// LayoutConfig mirrors layout.Options. Zero values keep the layout defaults.
type LayoutConfig struct {
	YTolerance      float64 `json:"y_tolerance" yaml:"y_tolerance"`
	ColumnGap       float64 `json:"column_gap" yaml:"column_gap"`
	GlobalColumnGap float64 `json:"global_column_gap" yaml:"global_column_gap"`
	AlignTolerance  float64 `json:"align_tolerance" yaml:"align_tolerance"`
	MinTableDensity float64 `json:"min_table_density" yaml:"min_table_density"`
	MaxColumns      int     `json:"max_columns" yaml:"max_columns"`
	Concurrency     int     `json:"concurrency" yaml:"concurrency"`

	// BoldMarkers and ItalicMarkers replace the font-name substrings that
	// mark a font as bold or italic.
	BoldMarkers   []string `json:"bold_markers" yaml:"bold_markers"`
	ItalicMarkers []string `json:"italic_markers" yaml:"italic_markers"`
}

// DefaultConfig returns a Config with sensible defaults.
// The cache is stored in ~/.mdize/mdize.db by default.
func DefaultConfig() Config {
	d := layout.DefaultOptions()
	return Config{
		DBName:         "mdize",
		StorageDir:     "home",
		MaxFileSize:    256 << 20,
		Timeout:        5 * time.Minute,
		DetectLanguage: true,
		OCRLanguages:   []string{"eng"},
		Layout: LayoutConfig{
			YTolerance:      d.YTolerance,
			MinTableDensity: d.MinTableDensity,
			MaxColumns:      d.MaxColumns,
		},
	}
}

// LoadConfig reads a YAML or JSON file over DefaultConfig. JSON is parsed
// by the YAML decoder, so durations may be written as "30s" in both.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
	default:
		return cfg, fmt.Errorf("%w: unknown config extension %q", ErrInvalidConfig, filepath.Ext(path))
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch c.StorageDir {
	case "", "home", "local", "cwd":
	default:
		return fmt.Errorf("%w: storage_dir must be home or local, got %q", ErrInvalidConfig, c.StorageDir)
	}
	if c.MaxFileSize < 0 {
		return fmt.Errorf("%w: max_file_size must not be negative", ErrInvalidConfig)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	}
	l := c.Layout
	for name, v := range map[string]float64{
		"y_tolerance":       l.YTolerance,
		"column_gap":        l.ColumnGap,
		"global_column_gap": l.GlobalColumnGap,
		"align_tolerance":   l.AlignTolerance,
	} {
		if v < 0 {
			return fmt.Errorf("%w: layout.%s must not be negative", ErrInvalidConfig, name)
		}
	}
	if l.MinTableDensity < 0 || l.MinTableDensity > 1 {
		return fmt.Errorf("%w: layout.min_table_density must be within [0, 1]", ErrInvalidConfig)
	}
	if l.MaxColumns < 0 || l.Concurrency < 0 {
		return fmt.Errorf("%w: layout.max_columns and layout.concurrency must not be negative", ErrInvalidConfig)
	}
	if _, err := linguaLanguages(c.Languages); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.LlamaParse != nil && c.LlamaParse.APIKey == "" {
		return fmt.Errorf("%w: llamaparse.api_key is required when llamaparse is set", ErrInvalidConfig)
	}
	return nil
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "mdize"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		return filepath.Join(home, ".mdize", name+".db")
	}
}

// layoutOptions converts the config into layout.Options.
func (l LayoutConfig) layoutOptions() layout.Options {
	opts := layout.Options{
		YTolerance:      l.YTolerance,
		ColumnGap:       l.ColumnGap,
		GlobalColumnGap: l.GlobalColumnGap,
		AlignTolerance:  l.AlignTolerance,
		MinTableDensity: l.MinTableDensity,
		MaxColumns:      l.MaxColumns,
		Concurrency:     l.Concurrency,
	}
	if len(l.BoldMarkers) > 0 {
		opts.IsBold = markerFunc(l.BoldMarkers)
	}
	if len(l.ItalicMarkers) > 0 {
		opts.IsItalic = markerFunc(l.ItalicMarkers)
	}
	return opts
}

func markerFunc(markers []string) layout.StyleFunc {
	return func(fontName string) bool {
		for _, m := range markers {
			if strings.Contains(fontName, m) {
				return true
			}
		}
		return false
	}
}

// parserOptions converts the config into parser.Options.
func (c *Config) parserOptions() parser.Options {
	return parser.Options{
		Layout:       c.Layout.layoutOptions(),
		Readability:  c.HTMLReadability,
		OCRLanguages: c.OCRLanguages,
	}
}
