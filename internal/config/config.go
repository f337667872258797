package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

type Config struct {
	LogLevel string  `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort string  `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	BasePath string  `yaml:"base-path" env:"BASE_PATH" env-default:"/game"`
	Storage  string  `yaml:"storage" env:"STORAGE" env-default:"redis"`
	Redis    Redis   `yaml:"redis"`
	Session  Session `yaml:"session"`
	HTTP     HTTP    `yaml:"http"`
}

type Redis struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Session struct {
	CookieName    string        `yaml:"cookie-name" env:"SESSION_COOKIE_NAME" env-default:"memory_session"`
	TTL           time.Duration `yaml:"ttl" env:"SESSION_TTL" env-default:"30m"`
	SecureCookie  bool          `yaml:"secure-cookie" env:"SESSION_SECURE_COOKIE" env-default:"false"`
	JanitorPeriod time.Duration `yaml:"janitor-period" env:"SESSION_JANITOR_PERIOD" env-default:"1m"`
}

type HTTP struct {
	ReadTimeout    time.Duration `yaml:"read-timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout   time.Duration `yaml:"write-timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	IdleTimeout    time.Duration `yaml:"idle-timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"30s"`
	HandlerTimeout time.Duration `yaml:"handler-timeout" env:"HTTP_HANDLER_TIMEOUT" env-default:"5s"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

// Load - reads path and applies environment overrides; an empty path reads the environment only.
func Load(path string) (*Config, error) {
	config := &Config{}

	var err error
	if path == "" {
		err = cleanenv.ReadEnv(config)
	} else {
		err = cleanenv.ReadConfig(path, config)
	}

	if err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	if err = config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (that *Config) Validate() error {
	switch that.Storage {
	case StorageRedis, StorageMemory:
	default:
		return fmt.Errorf("unknown storage %q, expected %q or %q", that.Storage, StorageRedis, StorageMemory)
	}

	if that.Session.CookieName == "" {
		return fmt.Errorf("session cookie name must not be empty")
	}

	if that.Session.TTL < 0 {
		return fmt.Errorf("session ttl must not be negative, got %s", that.Session.TTL)
	}

	return nil
}

func (that *Redis) GetRedisAddr() string {
	if that.Host == "" {
		return ""
	}

	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
