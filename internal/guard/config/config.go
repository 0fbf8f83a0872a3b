package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds configuration values parsed from defaults and environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	Log         LogConfig         `koanf:"log"`
	Server      ServerConfig      `koanf:"server"`
	Reputation  ReputationConfig  `koanf:"reputation"`
	Broker      BrokerConfig      `koanf:"broker"`
	Sites       SitesConfig       `koanf:"sites"`
	Interceptor InterceptorConfig `koanf:"interceptor"`
	Presenter   PresenterConfig   `koanf:"presenter"`
	Browser     BrowserConfig     `koanf:"browser"`
}

type LogConfig struct {
	// Level controls log verbosity: "debug", "info", "warn", or "error".
	Level string `koanf:"level" validate:"required,oneof=debug info warn error"`
}

// ServerConfig is the listen address of the HTTP API (reputation endpoints,
// navigation endpoint and prompt WebSocket).
type ServerConfig struct {
	Host string `koanf:"host" validate:"required,hostname|ip"`
	Port int    `koanf:"port" validate:"required,gte=1,lt=65535"`
}

// ReputationConfig points the classifier gateway at the lookup service.
type ReputationConfig struct {
	BaseURL string        `koanf:"base_url" validate:"required,url"`
	Timeout time.Duration `koanf:"timeout" validate:"required"`
}

type BrokerConfig struct {
	// Timeout bounds how long a prompt may stay pending before it resolves to deny.
	Timeout time.Duration `koanf:"timeout" validate:"required"`
	// BlockedPage is the landing page denied sessions are redirected to.
	BlockedPage string `koanf:"blocked_page" validate:"required,url"`
}

type SitesConfig struct {
	DB              string        `koanf:"db" validate:"required"`
	CacheSize       int           `koanf:"cache_size" validate:"gte=0"`
	CacheTTL        time.Duration `koanf:"cache_ttl" validate:"gte=0"`
	FPRate          float64       `koanf:"fp_rate" validate:"gt=0,lt=1"`
	LegitimateLists []string      `koanf:"legitimate_lists" validate:"dive,required"`
	SuspiciousLists []string      `koanf:"suspicious_lists" validate:"dive,required"`
}

type InterceptorConfig struct {
	SkipSchemes  []string `koanf:"skip_schemes" validate:"dive,scheme_prefix"`
	SkipPatterns []string `koanf:"skip_patterns" validate:"dive,required"`
}

type PresenterConfig struct {
	Kind string `koanf:"kind" validate:"required,oneof=websocket terminal"`
}

// BrowserConfig attaches the guard to a Chrome remote debugging endpoint.
// An empty DevToolsURL leaves navigation reporting to the HTTP API.
type BrowserConfig struct {
	DevToolsURL  string        `koanf:"devtools_url" validate:"omitempty,url"`
	PollInterval time.Duration `koanf:"poll_interval" validate:"gte=0"`
}

// DEFAULT_APP_CONFIG targets a local lookup service with a 20 second prompt
// window, skipping Chrome internal schemes and common search result pages.
var DEFAULT_APP_CONFIG = AppConfig{
	Env: "prod",
	Log: LogConfig{Level: "info"},
	Server: ServerConfig{
		Host: "127.0.0.1",
		Port: 5000,
	},
	Reputation: ReputationConfig{
		BaseURL: "http://localhost:5000/api",
		Timeout: 5 * time.Second,
	},
	Broker: BrokerConfig{
		Timeout:     20 * time.Second,
		BlockedPage: "http://localhost:5000/blocked.html",
	},
	Sites: SitesConfig{
		DB:        "/var/lib/navguard/sites.db",
		CacheSize: 1000,
		CacheTTL:  10 * time.Minute,
		FPRate:    0.01,
	},
	Interceptor: InterceptorConfig{
		SkipSchemes:  []string{"chrome://", "chrome-extension://", "about:"},
		SkipPatterns: []string{"google.com/search", "yandex.ru/search"},
	},
	Presenter: PresenterConfig{Kind: "websocket"},
	Browser:   BrowserConfig{PollInterval: 2 * time.Second},
}

// envKeys maps environment variable names (without the NAVGUARD_ prefix)
// onto koanf paths.
var envKeys = map[string]string{
	"ENV":                   "env",
	"LOG_LEVEL":             "log.level",
	"SERVER_HOST":           "server.host",
	"SERVER_PORT":           "server.port",
	"REPUTATION_URL":        "reputation.base_url",
	"REPUTATION_TIMEOUT":    "reputation.timeout",
	"BROKER_TIMEOUT":        "broker.timeout",
	"BROKER_BLOCKED_PAGE":   "broker.blocked_page",
	"SITES_DB":              "sites.db",
	"SITES_CACHE_SIZE":      "sites.cache_size",
	"SITES_CACHE_TTL":       "sites.cache_ttl",
	"SITES_FP_RATE":         "sites.fp_rate",
	"SITES_LEGITIMATE":      "sites.legitimate_lists",
	"SITES_SUSPICIOUS":      "sites.suspicious_lists",
	"SKIP_SCHEMES":          "interceptor.skip_schemes",
	"SKIP_PATTERNS":         "interceptor.skip_patterns",
	"PRESENTER":             "presenter.kind",
	"BROWSER_DEVTOOLS_URL":  "browser.devtools_url",
	"BROWSER_POLL_INTERVAL": "browser.poll_interval",
}

// listKeys are split on commas and spaces.
var listKeys = map[string]bool{
	"sites.legitimate_lists":    true,
	"sites.suspicious_lists":    true,
	"interceptor.skip_schemes":  true,
	"interceptor.skip_patterns": true,
}

// validSchemePrefix accepts values like "chrome://" or "about:".
func validSchemePrefix(fl validator.FieldLevel) bool {
	v := fl.Field().String()
	i := strings.IndexByte(v, ':')
	if i <= 0 {
		return false
	}
	for j, r := range v[:i] {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if j == 0 && !isAlpha {
			return false
		}
		if !isAlpha && !(r >= '0' && r <= '9') && r != '+' && r != '-' && r != '.' {
			return false
		}
	}
	rest := v[i+1:]
	return rest == "" || rest == "//"
}

// envLoader loads NAVGUARD_ environment variables. It can be replaced in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "NAVGUARD_",
		TransformFunc: func(key, value string) (string, any) {
			path, ok := envKeys[strings.TrimPrefix(key, "NAVGUARD_")]
			if !ok {
				return "", nil
			}
			value = strings.TrimSpace(value)

			if listKeys[path] {
				if value == "" {
					return path, []string{}
				}
				return path, strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
			}
			return path, value
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG into k.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the custom "scheme_prefix" tag.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("scheme_prefix", validSchemePrefix)
}

// Load builds an AppConfig from defaults and the environment, then validates it.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
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
