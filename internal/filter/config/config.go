package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigFileEnv names an optional YAML, TOML or JSON file applied between the
// defaults and the environment.
const ConfigFileEnv = "BLOCK_CONFIG_FILE"

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	Log     LogConfig     `koanf:"log"`
	Lists   ListsConfig   `koanf:"lists"`
	State   StateConfig   `koanf:"state"`
	Matcher MatcherConfig `koanf:"matcher"`
	Badge   BadgeConfig   `koanf:"badge"`
	HTTP    HTTPConfig    `koanf:"http"`
	Fetch   FetchConfig   `koanf:"fetch"`
}

type LogConfig struct {
	// Level controls log verbosity: "debug", "info", "warn", or "error".
	Level string `koanf:"level" validate:"required,oneof=debug info warn error"`
}

// ListsConfig names the three block-list sources. Each is a local path or an
// http(s) URL.
type ListsConfig struct {
	Domains   string `koanf:"domains" validate:"required,list_source"`
	Patterns  string `koanf:"patterns" validate:"required,list_source"`
	Selectors string `koanf:"selectors" validate:"required,list_source"`

	// Watch reloads the rule set when a local list file changes.
	Watch bool `koanf:"watch"`
}

type StateConfig struct {
	// DB is the bbolt file holding isEnabled and stats.
	DB string `koanf:"db" validate:"required"`

	// PersistEvery bounds how many blocks may go unpersisted.
	PersistEvery uint64 `koanf:"persist_every" validate:"required,gte=1"`

	// FlushInterval is the period of the background stats flush.
	FlushInterval time.Duration `koanf:"flush_interval" validate:"required,gte=1s"`
}

type MatcherConfig struct {
	// CacheSize is the hostname decision cache capacity; 0 disables it.
	CacheSize int `koanf:"cache_size" validate:"gte=0"`

	// BloomFPRate is the target false-positive rate of the domain prefilter.
	BloomFPRate float64 `koanf:"bloom_fp_rate" validate:"gt=0,lt=1"`
}

type BadgeConfig struct {
	Interval time.Duration `koanf:"interval" validate:"required,gte=100ms"`
	Color    string        `koanf:"color" validate:"required,hexcolor"`
}

type HTTPConfig struct {
	Host string `koanf:"host" validate:"required,ip"`
	Port int    `koanf:"port" validate:"required,gte=1,lte=65535"`

	// AllowedOrigins lists browser origins, such as the extension's
	// "chrome-extension://<id>", allowed to send an Origin header.
	AllowedOrigins []string `koanf:"allowed_origins" validate:"dive,required"`
}

type FetchConfig struct {
	Timeout time.Duration `koanf:"timeout" validate:"required"`
	Retries int           `koanf:"retries" validate:"gte=1,lte=10"`
}

// DEFAULT_APP_CONFIG defines the defaults applied before environment overrides.
var DEFAULT_APP_CONFIG = AppConfig{
	Env: "prod",
	Log: LogConfig{Level: "info"},
	Lists: ListsConfig{
		Domains:   "/etc/rr-block/filters/domains.json",
		Patterns:  "/etc/rr-block/filters/patterns.json",
		Selectors: "/etc/rr-block/filters/selectors.json",
		Watch:     true,
	},
	State: StateConfig{
		DB:            "/var/lib/rr-block/state.db",
		PersistEvery:  10,
		FlushInterval: 30 * time.Second,
	},
	Matcher: MatcherConfig{
		CacheSize:   4096,
		BloomFPRate: 0.01,
	},
	Badge: BadgeConfig{
		Interval: time.Second,
		Color:    "#FF6B6B",
	},
	HTTP: HTTPConfig{
		Host: "127.0.0.1",
		Port: 8053,
	},
	Fetch: FetchConfig{
		Timeout: 30 * time.Second,
		Retries: 3,
	},
}

// envKeys maps supported environment variables to koanf paths. Variables with
// the prefix that are not listed here are ignored.
var envKeys = map[string]string{
	"BLOCK_ENV":                  "env",
	"BLOCK_LOG_LEVEL":            "log.level",
	"BLOCK_LISTS_DOMAINS":        "lists.domains",
	"BLOCK_LISTS_PATTERNS":       "lists.patterns",
	"BLOCK_LISTS_SELECTORS":      "lists.selectors",
	"BLOCK_LISTS_WATCH":          "lists.watch",
	"BLOCK_STATE_DB":             "state.db",
	"BLOCK_STATE_PERSIST_EVERY":  "state.persist_every",
	"BLOCK_STATE_FLUSH_INTERVAL": "state.flush_interval",
	"BLOCK_MATCHER_CACHE_SIZE":   "matcher.cache_size",
	"BLOCK_MATCHER_BLOOM_FP":     "matcher.bloom_fp_rate",
	"BLOCK_BADGE_INTERVAL":       "badge.interval",
	"BLOCK_BADGE_COLOR":          "badge.color",
	"BLOCK_HTTP_HOST":            "http.host",
	"BLOCK_HTTP_PORT":            "http.port",
	"BLOCK_HTTP_ALLOWED_ORIGINS": "http.allowed_origins",
	"BLOCK_FETCH_TIMEOUT":        "fetch.timeout",
	"BLOCK_FETCH_RETRIES":        "fetch.retries",
}

// validListSource accepts a non-empty local path or an http(s) URL with a host.
func validListSource(fl validator.FieldLevel) bool {
	src := strings.TrimSpace(fl.Field().String())
	if src == "" {
		return false
	}
	if !strings.Contains(src, "://") {
		return true
	}
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// envLoader loads environment variables with the prefix "BLOCK_" and maps
// them onto nested koanf keys. It can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "BLOCK_",
		TransformFunc: func(key, value string) (string, any) {
			path, ok := envKeys[strings.ToUpper(key)]
			if !ok {
				return "", nil
			}
			if path == "http.allowed_origins" {
				return path, splitList(value)
			}
			return path, strings.TrimSpace(value)
		},
	}), nil)
}

// splitList splits a comma or whitespace separated list.
func splitList(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

// defaultLoader loads DEFAULT_APP_CONFIG into k.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// fileLoader loads the config file at path, choosing a parser by extension.
var fileLoader = func(k *koanf.Koanf, path string) error {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	case ".toml":
		parser = toml.Parser()
	default:
		return fmt.Errorf("unsupported config file type %q", filepath.Ext(path))
	}
	return k.Load(file.Provider(path), parser)
}

// registerValidation registers the custom "list_source" rule.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("list_source", validListSource)
}

// Load builds an AppConfig from defaults, the optional config file, and
// environment variables, each layer overriding the last, then validates it.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if path := strings.TrimSpace(os.Getenv(ConfigFileEnv)); path != "" {
		if err := fileLoader(k, path); err != nil {
			return nil, fmt.Errorf("error loading config file %s: %w", path, err)
		}
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
