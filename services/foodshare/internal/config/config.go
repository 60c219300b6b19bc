package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"foodshare/internal/util"
)

// ConfigPath is the default config location, overridable with FOODSHARE_CONFIG.
const ConfigPath = "config.yaml"

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	SessionsMemory = "memory"
	SessionsRedis  = "redis"
	SessionsJWT    = "jwt"

	EventsNone  = "none"
	EventsRedis = "redis"
	EventsAMQP  = "amqp"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                     string   `yaml:"port"`
	LogLevel                 string   `yaml:"logLevel"`
	LogFormat                string   `yaml:"logFormat"`
	DatabaseDriver           string   `yaml:"databaseDriver"`
	DatabaseURL              string   `yaml:"databaseURL"`
	RedisAddr                string   `yaml:"redisAddr"`
	RedisPassword            string   `yaml:"redisPassword"`
	SessionStore             string   `yaml:"sessionStore"`
	SessionTTL               string   `yaml:"sessionTTL"`
	JWTSecret                string   `yaml:"jwtSecret"`
	CookieName               string   `yaml:"cookieName"`
	CookieSecure             bool     `yaml:"cookieSecure"`
	CORSAllowedOrigins       []string `yaml:"corsAllowedOrigins"`
	EventsBackend            string   `yaml:"eventsBackend"`
	EventsStream             string   `yaml:"eventsStream"`
	AMQPURL                  string   `yaml:"amqpURL"`
	AMQPExchange             string   `yaml:"amqpExchange"`
	LoginRateLimitPerMinute  int      `yaml:"loginRateLimitPerMinute"`
	SignupRateLimitPerMinute int      `yaml:"signupRateLimitPerMinute"`
	TrustedProxyCIDRs        []string `yaml:"trustedProxyCidrs"`
	EnrichConcurrency        int      `yaml:"enrichConcurrency"`
}

// Load reads config from path (defaults to ConfigPath), applies environment
// overrides and fills defaults. A missing file is fine when the environment
// supplies everything required.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString("FOODSHARE_PORT", &cfg.Port)
	setString("FOODSHARE_LOG_LEVEL", &cfg.LogLevel)
	setString("FOODSHARE_LOG_FORMAT", &cfg.LogFormat)
	setString("FOODSHARE_DATABASE_DRIVER", &cfg.DatabaseDriver)
	setString("DATABASE_URL", &cfg.DatabaseURL)
	setString("REDIS_ADDR", &cfg.RedisAddr)
	setString("REDIS_PASSWORD", &cfg.RedisPassword)
	setString("FOODSHARE_SESSION_STORE", &cfg.SessionStore)
	setString("FOODSHARE_SESSION_TTL", &cfg.SessionTTL)
	setString("FOODSHARE_JWT_SECRET", &cfg.JWTSecret)
	setString("FOODSHARE_COOKIE_NAME", &cfg.CookieName)
	if v := strings.TrimSpace(os.Getenv("FOODSHARE_COOKIE_SECURE")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.CookieSecure = b
		}
	}
	if v := os.Getenv("FOODSHARE_CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = splitCSV(v)
	}
	setString("FOODSHARE_EVENTS_BACKEND", &cfg.EventsBackend)
	setString("FOODSHARE_EVENTS_STREAM", &cfg.EventsStream)
	setString("AMQP_URL", &cfg.AMQPURL)
	setString("FOODSHARE_AMQP_EXCHANGE", &cfg.AMQPExchange)
	setInt("FOODSHARE_LOGIN_RATE_LIMIT_PER_MINUTE", &cfg.LoginRateLimitPerMinute)
	setInt("FOODSHARE_SIGNUP_RATE_LIMIT_PER_MINUTE", &cfg.SignupRateLimitPerMinute)
	if v := os.Getenv("FOODSHARE_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	setInt("FOODSHARE_ENRICH_CONCURRENCY", &cfg.EnrichConcurrency)
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.DatabaseDriver == "" {
		cfg.DatabaseDriver = DriverMemory
	}
	if cfg.SessionStore == "" {
		cfg.SessionStore = SessionsMemory
	}
	if cfg.SessionTTL == "" {
		cfg.SessionTTL = "24h"
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "sid"
	}
	if cfg.EventsBackend == "" {
		cfg.EventsBackend = EventsNone
	}
	if cfg.EventsStream == "" {
		cfg.EventsStream = "foodshare:events"
	}
	if cfg.AMQPExchange == "" {
		cfg.AMQPExchange = "foodshare.events"
	}
	if cfg.LoginRateLimitPerMinute == 0 {
		cfg.LoginRateLimitPerMinute = 10
	}
	if cfg.SignupRateLimitPerMinute == 0 {
		cfg.SignupRateLimitPerMinute = 5
	}
	if cfg.EnrichConcurrency == 0 {
		cfg.EnrichConcurrency = 8
	}
}

func validateConfig(cfg FileConfig) error {
	switch cfg.DatabaseDriver {
	case DriverMemory:
	case DriverPostgres, DriverSQLite:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return fmt.Errorf("config: databaseURL is required for the %s driver (set in config.yaml or DATABASE_URL)", cfg.DatabaseDriver)
		}
	default:
		return fmt.Errorf("config: unknown databaseDriver %q (memory, postgres or sqlite)", cfg.DatabaseDriver)
	}

	switch cfg.SessionStore {
	case SessionsMemory:
	case SessionsRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required for the redis session store")
		}
	case SessionsJWT:
		if len(strings.TrimSpace(cfg.JWTSecret)) < 16 {
			return errors.New("config: jwtSecret of at least 16 characters is required for the jwt session store")
		}
	default:
		return fmt.Errorf("config: unknown sessionStore %q (memory, redis or jwt)", cfg.SessionStore)
	}
	if ttl, err := ParseSessionTTL(cfg.SessionTTL); err != nil {
		return err
	} else if ttl <= 0 {
		return errors.New("config: sessionTTL must be positive")
	}

	switch cfg.EventsBackend {
	case EventsNone:
	case EventsRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required for the redis events backend")
		}
	case EventsAMQP:
		if strings.TrimSpace(cfg.AMQPURL) == "" {
			return errors.New("config: amqpURL is required for the amqp events backend")
		}
	default:
		return fmt.Errorf("config: unknown eventsBackend %q (none, redis or amqp)", cfg.EventsBackend)
	}

	if cfg.LoginRateLimitPerMinute < 0 || cfg.SignupRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if cfg.EnrichConcurrency < 0 {
		return errors.New("config: enrichConcurrency must be >= 0")
	}
	if _, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs); err != nil {
		return fmt.Errorf("config: invalid trustedProxyCidrs: %w", err)
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// ParseSessionTTL parses the sessionTTL duration string.
func ParseSessionTTL(ttlStr string) (time.Duration, error) {
	dur, err := time.ParseDuration(ttlStr)
	if err != nil {
		return 0, fmt.Errorf("invalid sessionTTL duration: %w", err)
	}
	return dur, nil
}
