package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	kfile "github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	alertDomain "github.com/cwmonitor/fraud-monitor-bot/internal/modules/alert/domain"
	"github.com/cwmonitor/fraud-monitor-bot/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

const minBotTokenLength = 40

// AlertRuleConfig is the raw, unnormalized shape of one alert rule. Either
// a single canonical keyword or a legacy list of casing variants may be
// given; variants are collapsed at load time.
type AlertRuleConfig struct {
	Keyword       string   `koanf:"keyword"`
	Keywords      []string `koanf:"keywords"`
	CaseSensitive bool     `koanf:"case_sensitive"`
	WholeWordOnly bool     `koanf:"whole_word_only"`
	Description   string   `koanf:"description"`
}

type Config struct {
	TelegramBotToken   string            `koanf:"telegram_bot_token"`
	DatabasePath       string            `koanf:"database_path"`
	HTTPPort           string            `koanf:"http_port"`
	AllowedSources     []string          `koanf:"allowed_sources"`
	MaxMessageLength   int               `koanf:"max_message_length"`
	RateLimitPerMinute int               `koanf:"rate_limit_per_minute"`
	RateIdleTTLSeconds int               `koanf:"rate_idle_ttl_seconds"`
	MaxImageSizeMB     int               `koanf:"max_image_size_mb"`
	OCRLanguages       string            `koanf:"ocr_languages"`
	OCRMaxTextLength   int               `koanf:"ocr_max_text_length"`
	AlertRules         []AlertRuleConfig `koanf:"alert_rules"`
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try to load config file from various formats
	configFiles := []string{
		"config.yaml",
		"config.yml",
		"config.json",
		"config.toml",
	}

	configFile, found := lo.Find(configFiles, func(file string) bool {
		_, err := os.Stat(file)
		return err == nil
	})

	if found {
		var parser koanf.Parser
		ext := filepath.Ext(configFile)

		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		case ".toml":
			parser = toml.Parser()
		default:
			return nil, oops.Errorf("unsupported config file extension: %s", ext)
		}

		if err := k.Load(kfile.Provider(configFile), parser); err != nil {
			return nil, oops.With("config_file", configFile).Wrap(err)
		}
	}

	// Environment variables override config file values
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(s)
	}), nil); err != nil {
		return nil, oops.With("context", "loading environment variables").Wrap(err)
	}

	// Set defaults
	if !k.Exists("database_path") {
		k.Set("database_path", "./data/messages.db")
	}
	if !k.Exists("http_port") {
		k.Set("http_port", "8080")
	}
	if !k.Exists("max_message_length") {
		k.Set("max_message_length", 5000)
	}
	if !k.Exists("rate_limit_per_minute") {
		k.Set("rate_limit_per_minute", 30)
	}
	if !k.Exists("rate_idle_ttl_seconds") {
		k.Set("rate_idle_ttl_seconds", 300)
	}
	if !k.Exists("max_image_size_mb") {
		k.Set("max_image_size_mb", 10)
	}
	if !k.Exists("ocr_languages") {
		k.Set("ocr_languages", "eng+por")
	}
	if !k.Exists("ocr_max_text_length") {
		k.Set("ocr_max_text_length", 2000)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.With("context", "unmarshaling config").Wrap(err)
	}

	// Parse AllowedSources from a comma-separated string if it's a string
	if allowed := k.Get("allowed_sources"); allowed != nil {
		switch v := allowed.(type) {
		case string:
			cfg.AllowedSources = ParseAllowedSources(v)
		case []interface{}:
			cfg.AllowedSources = lo.FilterMap(v, func(item interface{}, _ int) (string, bool) {
				s, ok := item.(string)
				s = strings.TrimSpace(s)
				return s, ok && s != ""
			})
		}
	}

	if len(cfg.AlertRules) == 0 {
		cfg.AlertRules = defaultAlertRules()
	}

	// Validate required fields
	if cfg.TelegramBotToken == "" {
		return nil, errors.ErrMissingBotToken
	}
	if len(cfg.TelegramBotToken) < minBotTokenLength {
		return nil, errors.ErrBotTokenTooShort
	}

	return &cfg, nil
}

// ParseAllowedSources parses a comma-separated source-key string.
func ParseAllowedSources(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	return lo.FilterMap(parts, func(part string, _ int) (string, bool) {
		part = strings.TrimSpace(part)
		return part, part != ""
	})
}

// Rules converts the raw rule configs into normalized alert rules. A rule
// listing several casing variants of one keyword collapses into a single
// case-insensitive rule per distinct folded keyword; case-sensitive
// variant lists keep one rule per distinct variant.
func (c *Config) Rules() []alertDomain.Rule {
	var rules []alertDomain.Rule
	for _, rc := range c.AlertRules {
		for _, keyword := range canonicalKeywords(rc) {
			rules = append(rules, alertDomain.Rule{
				Keyword:       keyword,
				CaseSensitive: rc.CaseSensitive,
				WholeWordOnly: rc.WholeWordOnly,
				Description:   rc.Description,
			})
		}
	}
	return rules
}

func canonicalKeywords(rc AlertRuleConfig) []string {
	if keyword := strings.TrimSpace(rc.Keyword); keyword != "" {
		return []string{keyword}
	}
	variants := lo.FilterMap(rc.Keywords, func(k string, _ int) (string, bool) {
		k = strings.TrimSpace(k)
		if k == "" {
			return "", false
		}
		if !rc.CaseSensitive {
			k = strings.ToLower(k)
		}
		return k, true
	})
	return lo.Uniq(variants)
}

func defaultAlertRules() []AlertRuleConfig {
	return []AlertRuleConfig{
		{
			Keyword:       "cloudwalk",
			CaseSensitive: false,
			WholeWordOnly: true,
			Description:   "Cloudwalk enterprise mention",
		},
	}
}
