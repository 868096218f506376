package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

type AppConfig struct {
	Port string
	Env  string
}

// IsDevelopment: в dev-режиме маршруты событий доступны без сессии
func (c AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

type MongoConfig struct {
	URI                string
	Database           string
	EventsCollection   string
	MappingsCollection string
	TrafficDatabase    string
	TrafficCollection  string
	UsersDatabase      string
	Timeout            time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	CacheTTL time.Duration
}

// Enabled сообщает, настроен ли Redis; без него кэш не используется
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type AuthConfig struct {
	SessionSecret string
	SessionMaxAge time.Duration
	APIKeys       map[string]string // API key -> name/description
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultSessionSecret подходит только для локальной разработки
const DefaultSessionSecret = "timewatch-admin-dev-secret"

// ErrInsecureSessionSecret: вне development секрет сессии нужно задать явно
var ErrInsecureSessionSecret = errors.New("SESSION_SECRET must be set outside development")

func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile читает конфиг из файла (если он есть) и переменных окружения
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, err
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	var cfg Config
	cfg.App.Port = v.GetString("APP_PORT")
	cfg.App.Env = strings.ToLower(v.GetString("APP_ENV"))

	cfg.Mongo.URI = v.GetString("MONGO_URI")
	cfg.Mongo.Database = v.GetString("MONGO_DATABASE")
	cfg.Mongo.EventsCollection = v.GetString("MONGO_EVENTS_COLLECTION")
	cfg.Mongo.MappingsCollection = v.GetString("MONGO_MAPPINGS_COLLECTION")
	cfg.Mongo.TrafficDatabase = v.GetString("MONGO_TRAFFIC_DATABASE")
	cfg.Mongo.TrafficCollection = v.GetString("MONGO_TRAFFIC_COLLECTION")
	cfg.Mongo.UsersDatabase = v.GetString("MONGO_USERS_DATABASE")
	cfg.Mongo.Timeout = v.GetDuration("MONGO_TIMEOUT")

	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetString("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.CacheTTL = v.GetDuration("CACHE_TTL")

	cfg.Auth.SessionSecret = v.GetString("SESSION_SECRET")
	cfg.Auth.SessionMaxAge = v.GetDuration("SESSION_MAX_AGE")
	// Format: key1:name1,key2:name2
	cfg.Auth.APIKeys = parseAPIKeys(v.GetString("API_KEYS"))

	cfg.RateLimit.RequestsPerSecond = v.GetFloat64("RATE_LIMIT_RPS")
	if cfg.RateLimit.RequestsPerSecond <= 0 {
		cfg.RateLimit.RequestsPerSecond = 10
	}
	cfg.RateLimit.BurstSize = v.GetInt("RATE_LIMIT_BURST")
	if cfg.RateLimit.BurstSize <= 0 {
		cfg.RateLimit.BurstSize = 20
	}

	cfg.Log.Level = strings.ToLower(v.GetString("LOG_LEVEL"))
	cfg.Log.File = v.GetString("LOG_FILE")
	cfg.Log.MaxSizeMB = v.GetInt("LOG_MAX_SIZE_MB")
	cfg.Log.MaxBackups = v.GetInt("LOG_MAX_BACKUPS")
	cfg.Log.MaxAgeDays = v.GetInt("LOG_MAX_AGE_DAYS")
	cfg.Log.Compress = v.GetBool("LOG_COMPRESS")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	secret := strings.TrimSpace(c.Auth.SessionSecret)
	if !c.App.IsDevelopment() && (secret == "" || secret == DefaultSessionSecret) {
		return ErrInsecureSessionSecret
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_ENV", "production")

	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "timewatch")
	v.SetDefault("MONGO_EVENTS_COLLECTION", "events")
	v.SetDefault("MONGO_MAPPINGS_COLLECTION", "mappings")
	v.SetDefault("MONGO_TRAFFIC_DATABASE", "servertime")
	v.SetDefault("MONGO_TRAFFIC_COLLECTION", "urlVisits")
	v.SetDefault("MONGO_USERS_DATABASE", "user_data")
	v.SetDefault("MONGO_TIMEOUT", 10*time.Second)

	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("CACHE_TTL", 5*time.Minute)

	v.SetDefault("SESSION_SECRET", DefaultSessionSecret)
	v.SetDefault("SESSION_MAX_AGE", 30*24*time.Hour)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_MAX_SIZE_MB", 100)
	v.SetDefault("LOG_MAX_BACKUPS", 7)
	v.SetDefault("LOG_MAX_AGE_DAYS", 7)
	v.SetDefault("LOG_COMPRESS", true)
}

// parseAPIKeys parses comma-separated API keys in format "key1:name1,key2:name2"
func parseAPIKeys(raw string) map[string]string {
	keys := make(map[string]string)
	if raw == "" {
		return keys
	}

	pairs := strings.Split(raw, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) == 2 {
			keys[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}

	return keys
}
