package slidereview

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Config configures the slide review server.
type Config struct {
	// Addr is the listen address. Default: ":8000".
	Addr string
	// ServedDir holds the images clients fetch. Default: "slides".
	ServedDir string
	// BaseDir holds the unannotated base images. Default: "original_slides".
	BaseDir string
	// AllowedOrigins lists the origins allowed by CORS. "*" allows any.
	AllowedOrigins []string
	// MaxUploadBytes limits the size of an uploaded presentation.
	MaxUploadBytes int64
	// Font selects the typeface for slide text and comments: "basic",
	// "goregular", "gomono" or a font file path.
	Font string
	// FontSize is the point size for non-bitmap typefaces.
	FontSize float64
	// Scaler names the picture resampler, see ScalerByName.
	Scaler string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// LogFormat is "text" or "json".
	LogFormat string
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:            ":8000",
		ServedDir:       "slides",
		BaseDir:         "original_slides",
		AllowedOrigins:  []string{"https://pptreview.netlify.app"},
		MaxUploadBytes:  maxZipTotalSize,
		Font:            TypefaceBasic,
		FontSize:        13,
		Scaler:          ScalerNearest,
		LogLevel:        "info",
		LogFormat:       "text",
		ShutdownTimeout: 10 * time.Second,
	}
}

// envPrefix prefixes every environment variable read by LoadEnv.
const envPrefix = "SLIDEREVIEW_"

// LoadEnv overrides fields from SLIDEREVIEW_* environment variables, looked
// up with lookup (usually os.LookupEnv).
func (c *Config) LoadEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(envPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	if v, ok := get("ADDR"); ok {
		c.Addr = v
	}
	if v, ok := get("SERVED_DIR"); ok {
		c.ServedDir = v
	}
	if v, ok := get("BASE_DIR"); ok {
		c.BaseDir = v
	}
	if v, ok := get("ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = splitList(v)
	}
	if v, ok := get("MAX_UPLOAD_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sMAX_UPLOAD_BYTES: %w", envPrefix, err)
		}
		c.MaxUploadBytes = n
	}
	if v, ok := get("FONT"); ok {
		c.Font = v
	}
	if v, ok := get("FONT_SIZE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sFONT_SIZE: %w", envPrefix, err)
		}
		c.FontSize = f
	}
	if v, ok := get("SCALER"); ok {
		c.Scaler = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := get("LOG_FORMAT"); ok {
		c.LogFormat = v
	}
	if v, ok := get("SHUTDOWN_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sSHUTDOWN_TIMEOUT: %w", envPrefix, err)
		}
		c.ShutdownTimeout = d
	}
	return nil
}

// Validate checks the configuration and returns an error describing all
// problems found, or nil.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("listen address is empty"))
	}
	if c.ServedDir == "" || c.BaseDir == "" {
		errs = append(errs, errors.New("image directories must be set"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max upload bytes must be positive, got %d", c.MaxUploadBytes))
	}
	if c.FontSize <= 0 {
		errs = append(errs, fmt.Errorf("font size must be positive, got %v", c.FontSize))
	}
	if _, err := ScalerByName(c.Scaler); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// RenderOptions builds the rasterizer options described by the config.
func (c *Config) RenderOptions() (*RenderOptions, error) {
	tf, err := LoadTypeface(c.Font, c.FontSize)
	if err != nil {
		return nil, err
	}
	scaler, err := ScalerByName(c.Scaler)
	if err != nil {
		return nil, err
	}
	opts := DefaultRenderOptions()
	opts.Typeface = tf
	opts.Scaler = scaler
	return opts, nil
}

// OverlayOptions builds the comment overlay options described by the
// config.
func (c *Config) OverlayOptions() (*OverlayOptions, error) {
	tf, err := LoadTypeface(c.Font, c.FontSize)
	if err != nil {
		return nil, err
	}
	opts := DefaultOverlayOptions()
	opts.Typeface = tf
	return opts, nil
}

// ParseLogLevel parses a level name into a slog.Level.
func ParseLogLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
