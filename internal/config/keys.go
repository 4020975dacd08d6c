package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "REVIEWLENS_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "REVIEWLENS_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.max_conns", typ: kInt, env: "REVIEWLENS_SERVER_MAX_CONNS",
		apply:   func(cfg *Config, v any) { cfg.Server.MaxConns = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MaxConns },
	},
	{
		key: "server.cors_origins", typ: kString, env: "REVIEWLENS_SERVER_CORS_ORIGINS",
		apply:   func(cfg *Config, v any) { cfg.Server.CORSOrigins = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.CORSOrigins },
	},
	{
		key: "server.admin_token", typ: kString, env: "REVIEWLENS_SERVER_ADMIN_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.AdminToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.AdminToken },
	},
	{
		key: "classifier.base_url", typ: kString, env: "REVIEWLENS_CLASSIFIER_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Classifier.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Classifier.BaseURL },
	},
	{
		key: "classifier.model", typ: kString, env: "REVIEWLENS_CLASSIFIER_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Classifier.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Classifier.Model },
	},
	{
		key: "classifier.timeout", typ: kString, env: "REVIEWLENS_CLASSIFIER_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Classifier.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Classifier.Timeout },
	},
	{
		key: "classifier.warmup", typ: kBool, env: "REVIEWLENS_CLASSIFIER_WARMUP",
		apply:   func(cfg *Config, v any) { cfg.Classifier.WarmUp = v.(bool) },
		extract: func(cfg Config) any { return cfg.Classifier.WarmUp },
	},
	{
		key: "classifier.api_key", typ: kString, env: "REVIEWLENS_CLASSIFIER_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Classifier.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Classifier.APIKey },
	},
	{
		key: "analysis.max_reviews", typ: kInt, env: "REVIEWLENS_ANALYSIS_MAX_REVIEWS",
		apply:   func(cfg *Config, v any) { cfg.Analysis.MaxReviews = v.(int) },
		extract: func(cfg Config) any { return cfg.Analysis.MaxReviews },
	},
	{
		key: "analysis.cache_size", typ: kInt, env: "REVIEWLENS_ANALYSIS_CACHE_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Analysis.CacheSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Analysis.CacheSize },
	},
	{
		key: "analysis.menu_size", typ: kInt, env: "REVIEWLENS_ANALYSIS_MENU_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Analysis.MenuSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Analysis.MenuSize },
	},
	{
		key: "analysis.menu_min_reviews", typ: kInt, env: "REVIEWLENS_ANALYSIS_MENU_MIN_REVIEWS",
		apply:   func(cfg *Config, v any) { cfg.Analysis.MenuMinReviews = v.(int) },
		extract: func(cfg Config) any { return cfg.Analysis.MenuMinReviews },
	},
	{
		key: "analysis.labels", typ: kString, env: "REVIEWLENS_ANALYSIS_LABELS",
		apply:   func(cfg *Config, v any) { cfg.Analysis.Labels = v.(string) },
		extract: func(cfg Config) any { return cfg.Analysis.Labels },
	},
	{
		key: "storage.data_dir", typ: kString, env: "REVIEWLENS_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "REVIEWLENS_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
