package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/kalambet/reviewlens/internal/classifier"
)

type Config struct {
	Server     ServerConfig
	Classifier ClassifierConfig
	Analysis   AnalysisConfig
	Storage    StorageConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	MaxConns    int
	CORSOrigins string // comma-separated
	AdminToken  string // enables POST /admin/reload when set
}

type ClassifierConfig struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout string // Go duration, e.g. "60s"
	WarmUp  bool
}

type AnalysisConfig struct {
	MaxReviews     int
	CacheSize      int
	MenuSize       int
	MenuMinReviews int
	Labels         string // ';'-separated, in tie-break order
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        8000,
			MaxConns:    256,
			CORSOrigins: "*",
		},
		Classifier: ClassifierConfig{
			BaseURL: classifier.DefaultBaseURL,
			Model:   classifier.DefaultModel,
			Timeout: classifier.DefaultTimeout.String(),
			WarmUp:  true,
		},
		Analysis: AnalysisConfig{
			MaxReviews:     50,
			CacheSize:      50,
			MenuSize:       100,
			MenuMinReviews: 5,
			Labels:         strings.Join(classifier.DefaultLabels, ";"),
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file at
// $XDG_CONFIG_HOME/reviewlens/config.json, then applies REVIEWLENS_*
// environment overrides. The classifier API key is read from the
// environment only.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every value is usable and reports all problems at once.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port: %d is not a valid port", c.Server.Port))
	}
	if c.Server.MaxConns <= 0 {
		errs = append(errs, fmt.Errorf("server.max_conns: must be positive, got %d", c.Server.MaxConns))
	}
	if strings.TrimSpace(c.Classifier.BaseURL) == "" {
		errs = append(errs, errors.New("classifier.base_url: must not be empty"))
	}
	if strings.TrimSpace(c.Classifier.Model) == "" {
		errs = append(errs, errors.New("classifier.model: must not be empty"))
	}
	if d, err := time.ParseDuration(c.Classifier.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("classifier.timeout: %w", err))
	} else if d <= 0 {
		errs = append(errs, fmt.Errorf("classifier.timeout: must be positive, got %s", d))
	}
	for _, f := range []struct {
		key string
		val int
	}{
		{"analysis.max_reviews", c.Analysis.MaxReviews},
		{"analysis.cache_size", c.Analysis.CacheSize},
		{"analysis.menu_size", c.Analysis.MenuSize},
		{"analysis.menu_min_reviews", c.Analysis.MenuMinReviews},
	} {
		if f.val <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be positive, got %d", f.key, f.val))
		}
	}
	if _, err := classifier.ParseLabels(c.Analysis.Labels); err != nil {
		errs = append(errs, fmt.Errorf("analysis.labels: %w", err))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// Addr returns the host:port the HTTP server listens on.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// BaseURL returns the URL a local client uses to reach the server.
func (c Config) BaseURL() string {
	host := c.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Server.Port))
}

// ClassifierTimeout returns the parsed classifier timeout, falling back to the
// default for unparsable values. Validate reports those.
func (c Config) ClassifierTimeout() time.Duration {
	d, err := time.ParseDuration(c.Classifier.Timeout)
	if err != nil || d <= 0 {
		return classifier.DefaultTimeout
	}
	return d
}

// Labels returns the topic vocabulary.
func (c Config) Labels() ([]string, error) {
	return classifier.ParseLabels(c.Analysis.Labels)
}

// CORSOrigins returns the allowed browser origins.
func (c Config) CORSOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.Server.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// LogLevel maps log.level to a slog level, defaulting to info.
func (c Config) LogLevel() slog.Level {
	l, err := parseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown level %q", s)
	}
}
