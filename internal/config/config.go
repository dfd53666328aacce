package config

import (
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv  = "CONTENT_LOCALIZER_CONFIG"
	backendURLEnv  = "LOCALIZER_BACKEND_URL"
	apiTokenEnv    = "LOCALIZER_API_TOKEN"
	dbPathEnv      = "LOCALIZER_DB_PATH"
	redisAddrEnv   = "LOCALIZER_REDIS_ADDR"
	logLevelEnv    = "LOCALIZER_LOG_LEVEL"
	listenAddrEnv  = "LOCALIZER_LISTEN_ADDR"
	defaultSession = ".contentlocalizer/session.json"
)

// Session drivers.
const (
	SessionFile  = "file"
	SessionRedis = "redis"
)

// Config holds high-level settings required across the application.
type Config struct {
	Backend      BackendConfig      `yaml:"backend"`
	Polling      PollingConfig      `yaml:"polling"`
	Ledger       LedgerConfig       `yaml:"ledger"`
	Session      SessionConfig      `yaml:"session"`
	Server       ServerConfig       `yaml:"server"`
	Localization LocalizationConfig `yaml:"localization"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// BackendConfig describes how to reach the localization service.
type BackendConfig struct {
	BaseURL   string        `yaml:"baseUrl"`
	APIToken  string        `yaml:"apiToken"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rateLimit"`
	RateBurst int           `yaml:"rateBurst"`
	UserAgent string        `yaml:"userAgent"`
}

// PollingConfig bounds the status poller.
type PollingConfig struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	Interval    time.Duration `yaml:"interval"`
}

// LedgerConfig points at the local SQLite job ledger. An empty path disables it.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// SessionConfig selects where the authenticated session lives.
type SessionConfig struct {
	Driver        string `yaml:"driver"`
	Path          string `yaml:"path"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDb"`
	RedisKey      string `yaml:"redisKey"`
}

// ServerConfig configures serve mode.
type ServerConfig struct {
	ListenAddr        string `yaml:"listenAddr"`
	RequestsPerMinute int    `yaml:"requestsPerMinute"`
}

// LocalizationConfig carries workflow defaults.
type LocalizationConfig struct {
	SourceLanguage string `yaml:"sourceLanguage"`
	Concurrency    int    `yaml:"concurrency"`
	ContentPageURL string `yaml:"contentPageUrl"`
}

// LoggingConfig selects level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.sanitize()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(backendURLEnv); v != "" {
		c.Backend.BaseURL = v
	}

	if v := os.Getenv(apiTokenEnv); v != "" {
		c.Backend.APIToken = v
	}

	if v := os.Getenv(dbPathEnv); v != "" {
		c.Ledger.Path = v
	}

	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Session.Driver = SessionRedis
		c.Session.RedisAddr = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(listenAddrEnv); v != "" {
		c.Server.ListenAddr = v
	}
}

func (c *Config) sanitize() {
	def := defaultConfig()

	c.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(c.Backend.BaseURL), "/")
	if c.Backend.BaseURL == "" {
		log.Printf("config: empty backend url, reverting to %s", def.Backend.BaseURL)
		c.Backend.BaseURL = def.Backend.BaseURL
	}
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = def.Backend.Timeout
	}
	if c.Backend.RateLimit <= 0 {
		c.Backend.RateLimit = def.Backend.RateLimit
	}
	if c.Backend.RateBurst <= 0 {
		c.Backend.RateBurst = def.Backend.RateBurst
	}

	if c.Polling.MaxAttempts <= 0 {
		log.Printf("config: invalid polling.maxAttempts %d, reverting to %d", c.Polling.MaxAttempts, def.Polling.MaxAttempts)
		c.Polling.MaxAttempts = def.Polling.MaxAttempts
	}
	if c.Polling.Interval <= 0 {
		log.Printf("config: invalid polling.interval %s, reverting to %s", c.Polling.Interval, def.Polling.Interval)
		c.Polling.Interval = def.Polling.Interval
	}

	switch c.Session.Driver {
	case SessionFile, SessionRedis:
	default:
		log.Printf("config: unknown session driver %q, reverting to %s", c.Session.Driver, SessionFile)
		c.Session.Driver = SessionFile
	}

	if c.Server.RequestsPerMinute <= 0 {
		c.Server.RequestsPerMinute = def.Server.RequestsPerMinute
	}

	c.Localization.SourceLanguage = strings.ToLower(strings.TrimSpace(c.Localization.SourceLanguage))
	if c.Localization.SourceLanguage == "" {
		log.Printf("config: empty localization.sourceLanguage, reverting to %s", def.Localization.SourceLanguage)
		c.Localization.SourceLanguage = def.Localization.SourceLanguage
	}
	if c.Localization.Concurrency <= 0 {
		c.Localization.Concurrency = def.Localization.Concurrency
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
		c.Logging.Format = strings.ToLower(c.Logging.Format)
	default:
		log.Printf("config: unknown log format %q, reverting to text", c.Logging.Format)
		c.Logging.Format = "text"
	}
}

func mergeConfig(base, override Config) Config {
	if override.Backend.BaseURL != "" {
		base.Backend.BaseURL = override.Backend.BaseURL
	}
	if override.Backend.APIToken != "" {
		base.Backend.APIToken = override.Backend.APIToken
	}
	if override.Backend.Timeout != 0 {
		base.Backend.Timeout = override.Backend.Timeout
	}
	if override.Backend.RateLimit != 0 {
		base.Backend.RateLimit = override.Backend.RateLimit
	}
	if override.Backend.RateBurst != 0 {
		base.Backend.RateBurst = override.Backend.RateBurst
	}
	if override.Backend.UserAgent != "" {
		base.Backend.UserAgent = override.Backend.UserAgent
	}

	if override.Polling.MaxAttempts != 0 {
		base.Polling.MaxAttempts = override.Polling.MaxAttempts
	}
	if override.Polling.Interval != 0 {
		base.Polling.Interval = override.Polling.Interval
	}

	if override.Ledger.Path != "" {
		base.Ledger = override.Ledger
	}

	if override.Session.Driver != "" {
		base.Session.Driver = override.Session.Driver
	}
	if override.Session.Path != "" {
		base.Session.Path = override.Session.Path
	}
	if override.Session.RedisAddr != "" {
		base.Session.RedisAddr = override.Session.RedisAddr
	}
	if override.Session.RedisPassword != "" {
		base.Session.RedisPassword = override.Session.RedisPassword
	}
	if override.Session.RedisDB != 0 {
		base.Session.RedisDB = override.Session.RedisDB
	}
	if override.Session.RedisKey != "" {
		base.Session.RedisKey = override.Session.RedisKey
	}

	if override.Server.ListenAddr != "" {
		base.Server.ListenAddr = override.Server.ListenAddr
	}
	if override.Server.RequestsPerMinute != 0 {
		base.Server.RequestsPerMinute = override.Server.RequestsPerMinute
	}

	if override.Localization.SourceLanguage != "" {
		base.Localization.SourceLanguage = override.Localization.SourceLanguage
	}
	if override.Localization.Concurrency != 0 {
		base.Localization.Concurrency = override.Localization.Concurrency
	}
	if override.Localization.ContentPageURL != "" {
		base.Localization.ContentPageURL = override.Localization.ContentPageURL
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL:   "http://localhost:8080",
			Timeout:   15 * time.Second,
			RateLimit: 5,
			RateBurst: 5,
			UserAgent: "ContentLocalizer/1.0",
		},
		Polling: PollingConfig{MaxAttempts: 120, Interval: 3 * time.Second},
		Session: SessionConfig{
			Driver:   SessionFile,
			Path:     defaultSession,
			RedisKey: "contentlocalizer:session",
		},
		Server:       ServerConfig{ListenAddr: ":8090", RequestsPerMinute: 120},
		Localization: LocalizationConfig{SourceLanguage: "en", Concurrency: 3},
		Logging:      LoggingConfig{Level: "info", Format: "text"},
	}
}
