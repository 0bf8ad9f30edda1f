package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	slidereview "github.com/VantageDataChat/slidereview"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := slidereview.DefaultConfig()
	if err := cfg.LoadEnv(os.LookupEnv); err != nil {
		return err
	}

	origins := strings.Join(cfg.AllowedOrigins, ",")
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	flag.StringVar(&cfg.ServedDir, "slides-dir", cfg.ServedDir, "Directory of served slide images")
	flag.StringVar(&cfg.BaseDir, "original-dir", cfg.BaseDir, "Directory of unannotated slide images")
	flag.StringVar(&origins, "allowed-origins", origins, "Comma-separated CORS origins (* for any)")
	flag.Int64Var(&cfg.MaxUploadBytes, "max-upload", cfg.MaxUploadBytes, "Maximum upload size in bytes")
	flag.StringVar(&cfg.Font, "font", cfg.Font, "Typeface: basic, goregular, gomono or a font file")
	flag.Float64Var(&cfg.FontSize, "font-size", cfg.FontSize, "Font size in points for non-bitmap typefaces")
	flag.StringVar(&cfg.Scaler, "scaler", cfg.Scaler, "Picture scaler: nearest, approx-bilinear, bilinear, catmull-rom")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")
	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "Graceful shutdown timeout")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(slidereview.Version)
		return nil
	}

	cfg.AllowedOrigins = nil
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	slidereview.SetLogger(logger)

	renderOpts, err := cfg.RenderOptions()
	if err != nil {
		return err
	}
	overlayOpts, err := cfg.OverlayOptions()
	if err != nil {
		return err
	}
	store, err := slidereview.NewDirStore(cfg.BaseDir, cfg.ServedDir)
	if err != nil {
		return err
	}
	session, err := slidereview.NewSession(store, slidereview.NewRasterizer(renderOpts), overlayOpts)
	if err != nil {
		return err
	}
	// Images left by a previous process have no comment logs; start clean.
	if err := session.Reset(); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           slidereview.NewServer(session, cfg).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr, "version", slidereview.Version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(cfg *slidereview.Config) (*slog.Logger, error) {
	level, err := slidereview.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}
