package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"
	BusRedis     = "redis"
)

type Config struct {
	Port             string `env:"PORT,default=8081" validate:"required"`
	JWTSecret        string `env:"JWT_SECRET,default=dev-super-secret-change-me" validate:"required"`
	JWTExpiry        int    `env:"JWT_EXPIRY,default=24" validate:"gt=0"` // in hours
	LogLevel         string `env:"LOG_LEVEL,default=INFO"`
	MaxMessageLength int    `env:"MAX_MESSAGE_LENGTH,default=1000" validate:"gt=0"`

	DBDriver     string        `env:"DB_DRIVER,default=memory" validate:"oneof=memory sqlite3 mysql"`
	DBDSN        string        `env:"DB_DSN" validate:"required_unless=DBDriver memory"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT,default=5s" validate:"gt=0"`

	SubscriberBuffer   int    `env:"SUBSCRIBER_BUFFER,default=64" validate:"gt=0"`
	BusDriver          string `env:"BUS_DRIVER,default=memory" validate:"oneof=memory redis"`
	RedisAddr          string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisChannelPrefix string `env:"REDIS_CHANNEL_PREFIX,default=chat:"`
}

// Load reads the optional dotenv files (".env" when none are given) and then
// the process environment. Variables already set in the environment win.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("dotenv: %w", err)
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTExpiry) * time.Hour
}
