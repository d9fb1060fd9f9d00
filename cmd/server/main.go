package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/yosbelms/mdize"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (YAML or JSON)")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg := mdize.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = mdize.LoadConfig(*configPath)
		if err != nil {
			slog.Error("loading config", "error", err)
			os.Exit(1)
		}
	}

	// Override from environment variables.
	if err := applyEnv(&cfg, os.Getenv); err != nil {
		slog.Error("reading environment", "error", err)
		os.Exit(1)
	}

	apiKey := os.Getenv("MDIZE_API_KEY")
	corsOrigins := os.Getenv("MDIZE_CORS_ORIGINS")

	engine, err := mdize.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	h := newHandler(engine, cfg.MaxFileSize)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      newRouter(h, apiKey, corsOrigins),
		ReadTimeout:  5 * time.Minute, // uploads
		WriteTimeout: 0,               // conversions can be long
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr, "formats", len(engine.Formats()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

// applyEnv overrides config fields from MDIZE_* environment variables.
func applyEnv(cfg *mdize.Config, getenv func(string) string) error {
	if v := getenv("MDIZE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := getenv("MDIZE_DISABLE_CACHE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MDIZE_DISABLE_CACHE: %w", err)
		}
		cfg.DisableCache = b
	}
	if v := getenv("MDIZE_MAX_FILE_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MDIZE_MAX_FILE_SIZE: %w", err)
		}
		cfg.MaxFileSize = n
	}
	if v := getenv("MDIZE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("MDIZE_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}
	if v := getenv("MDIZE_LANGUAGES"); v != "" {
		cfg.Languages = splitList(v)
	}
	if v := getenv("MDIZE_OCR_LANGUAGES"); v != "" {
		cfg.OCRLanguages = splitList(v)
	}
	if v := getenv("MDIZE_LLAMAPARSE_API_KEY"); v != "" {
		if cfg.LlamaParse == nil {
			cfg.LlamaParse = &mdize.LlamaParseConfig{}
		}
		cfg.LlamaParse.APIKey = v
	}
	if v := getenv("MDIZE_LLAMAPARSE_BASE_URL"); v != "" && cfg.LlamaParse != nil {
		cfg.LlamaParse.BaseURL = v
	}
	return cfg.Validate()
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
