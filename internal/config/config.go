package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
)

const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
}

type AMQPConfig struct {
	// Пустой URL отключает публикацию событий.
	URL      string
	Exchange string
}

type EngineConfig struct {
	DefaultDurationMin int
	// Часовой пояс ресторана: в нём считаются даты броней.
	TimeZone    string
	LockBackend string
	// Срок ключа в Redis; держатель продлевает его, пока жив.
	LockTTL     time.Duration
}

type Config struct {
	ServiceName string
	GRPCAddr    string
	LogLevel    string

	DB     *DBConfig
	Redis  RedisConfig
	AMQP   AMQPConfig
	Engine EngineConfig
}

// Load reads an optional .env file and then the process environment.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	dbCfg, err := LoadDBConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "restaurant-core"),
		GRPCAddr:    getEnv("CORE_GRPC_ADDR", ":50051"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DB:          dbCfg,
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TLS:      getEnvBool("REDIS_TLS", false),
		},
		AMQP: AMQPConfig{
			URL:      getEnv("RABBITMQ_URL", ""),
			Exchange: getEnv("RABBITMQ_EXCHANGE", "restaurant.events"),
		},
		Engine: EngineConfig{
			DefaultDurationMin: getEnvInt("RESERVATION_DEFAULT_DURATION_MIN", 60),
			TimeZone:           getEnv("RESTAURANT_TIMEZONE", "UTC"),
			LockBackend:        getEnv("LOCK_BACKEND", LockBackendLocal),
			LockTTL:            getEnvDuration("LOCK_TTL", 10*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Engine.DefaultDurationMin <= 0 {
		return fmt.Errorf("invalid engine config: RESERVATION_DEFAULT_DURATION_MIN must be positive")
	}
	if _, err := time.LoadLocation(c.Engine.TimeZone); err != nil {
		return fmt.Errorf("invalid engine config: timezone %q: %w", c.Engine.TimeZone, err)
	}
	switch c.Engine.LockBackend {
	case LockBackendLocal:
	case LockBackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("invalid redis config: REDIS_ADDR is required for the redis lock backend")
		}
	default:
		return fmt.Errorf("invalid engine config: unknown lock backend %q", c.Engine.LockBackend)
	}
	if c.Engine.LockTTL <= 0 {
		return fmt.Errorf("invalid engine config: LOCK_TTL must be positive")
	}
	return nil
}

// Location returns the restaurant time zone. Load has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Engine.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
