package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ModeServer = "server"
	ModeWorker = "worker"
)

type Config struct {
	AppMode           string        `mapstructure:"APP_MODE"`
	ServerPort        string        `mapstructure:"SERVER_PORT"`
	MongoURL          string        `mapstructure:"MONGO_URL"`
	MongoDBName       string        `mapstructure:"MONGO_DBNAME"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	BrokerURL         string        `mapstructure:"BROKER_URL"`
	JWTSecret         string        `mapstructure:"JWT_SECRET"`
	TokenTTL          time.Duration `mapstructure:"TOKEN_TTL"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	CacheTTL          time.Duration `mapstructure:"CACHE_TTL"`
	FanOutConcurrency int           `mapstructure:"FANOUT_CONCURRENCY"`
	FanOutRetries     int           `mapstructure:"FANOUT_RETRIES"`
	ReadConcurrency   int           `mapstructure:"READ_CONCURRENCY"`
	WorkerConcurrency int           `mapstructure:"WORKER_CONCURRENCY"`
	CompensateAccept  bool          `mapstructure:"COMPENSATE_ACCEPT"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
}

// Flags declares the command-line overrides. Flag values win over the
// environment, which wins over the config file.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("mini-social", pflag.ContinueOnError)
	fs.String("mode", "", "run mode: server or worker")
	fs.String("port", "", "HTTP port to listen on")
	fs.String("config", "", "optional config file")
	fs.String("log-level", "", "debug, info, warn or error")
	return fs
}

func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("APP_MODE", ModeServer)
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("MONGO_URL", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DBNAME", "minisocial")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("BROKER_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("REQUEST_TIMEOUT", "10s")
	v.SetDefault("CACHE_TTL", "1h")
	v.SetDefault("FANOUT_CONCURRENCY", 8)
	v.SetDefault("FANOUT_RETRIES", 5)
	v.SetDefault("READ_CONCURRENCY", 16)
	v.SetDefault("WORKER_CONCURRENCY", 10)
	v.SetDefault("COMPENSATE_ACCEPT", true)
	v.SetDefault("LOG_LEVEL", "info")

	if fs != nil {
		for key, flag := range map[string]string{
			"APP_MODE":    "mode",
			"SERVER_PORT": "port",
			"LOG_LEVEL":   "log-level",
		} {
			if f := fs.Lookup(flag); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, err
				}
			}
		}
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.AppMode = strings.ToLower(cfg.AppMode)
	if cfg.AppMode != ModeServer && cfg.AppMode != ModeWorker {
		return Config{}, fmt.Errorf("unknown APP_MODE %q", cfg.AppMode)
	}
	if cfg.AppMode == ModeWorker && cfg.BrokerURL == "" {
		return Config{}, fmt.Errorf("worker mode needs BROKER_URL")
	}
	if cfg.AppMode == ModeServer && cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("server mode needs JWT_SECRET")
	}
	return cfg, nil
}

func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
