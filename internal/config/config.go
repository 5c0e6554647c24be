package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode     string `mapstructure:"mode"`
	LogLevel string `mapstructure:"log_level"`

	// WSBase is the websocket origin of the platform, e.g. wss://app.example.com.
	WSBase string `mapstructure:"ws_base" validate:"required"`

	// Token is the user's access JWT; channels check its expiry before dialing.
	Token  string `mapstructure:"token" validate:"required"`
	UserID string `mapstructure:"user_id" validate:"required"`

	// Courses to watch on the course-notify stream.
	Courses []string `mapstructure:"courses"`

	// StatusPort serves the local observability API.
	StatusPort int `mapstructure:"status_port" validate:"gte=0,lte=65535"`

	ReconnectBase time.Duration `mapstructure:"reconnect_base"`
	ReconnectMax  time.Duration `mapstructure:"reconnect_max"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
}

// Load reads config/config.<env>.yaml (env from CONFIG_ENV, default dev),
// then applies pflag overrides.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("status_port", 8099)
	v.SetDefault("reconnect_base", "1s")
	v.SetDefault("reconnect_max", "30s")
	v.SetDefault("max_attempts", 5)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
