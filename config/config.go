package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

/* Config holds the process settings of the receiver
 * Read from an optional .env TOML file, overridden by environment variables
 */

const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

type Config struct {
	Port            string `mapstructure:"PORT"`
	StoreBackend    string `mapstructure:"STORE_BACKEND"`
	AppsFile        string `mapstructure:"APPS_FILE"`
	WebhooksFile    string `mapstructure:"WEBHOOKS_FILE"`
	RedisAddr       string `mapstructure:"REDIS_ADDR"`
	RedisPassword   string `mapstructure:"REDIS_PASSWORD"`
	RedisDB         int    `mapstructure:"REDIS_DB"`
	LogFile         string `mapstructure:"LOG_FILE"`
	HomeRoot        string `mapstructure:"HOME_ROOT"`
	DeployScript    string `mapstructure:"DEPLOY_SCRIPT"`
	SudoPath        string `mapstructure:"SUDO_PATH"`
	ShutdownTimeout int    `mapstructure:"SHUTDOWN_TIMEOUT_SECONDS"`
}

var defaults = map[string]any{
	"PORT":                     "8080",
	"STORE_BACKEND":            BackendFile,
	"APPS_FILE":                "/etc/deployhook/apps.json",
	"WEBHOOKS_FILE":            "/etc/deployhook/webhooks.json",
	"REDIS_ADDR":               "localhost:6379",
	"REDIS_PASSWORD":           "",
	"REDIS_DB":                 0,
	"LOG_FILE":                 "/var/log/deployhook/webhook.log",
	"HOME_ROOT":                "/home",
	"DEPLOY_SCRIPT":            "deploy.sh",
	"SUDO_PATH":                "sudo",
	"SHUTDOWN_TIMEOUT_SECONDS": 30,
}

func GetConfig() (*Config, error) {
	return load(viper.New(), ".")
}

func load(v *viper.Viper, dir string) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetConfigName(".env")
	v.SetConfigType("toml")
	v.AddConfigPath(dir)
	v.AutomaticEnv()

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	err = v.Unmarshal(&config)
	if err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the settings that would otherwise fail on the first request
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendFile, BackendRedis:
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q: must be %q or %q", c.StoreBackend, BackendFile, BackendRedis)
	}
	if c.DeployScript == "" {
		return errors.New("DEPLOY_SCRIPT must not be empty")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid SHUTDOWN_TIMEOUT_SECONDS %d: must be positive", c.ShutdownTimeout)
	}
	return nil
}

// ShutdownTimeoutDuration is ShutdownTimeout as a time.Duration
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	return time.Duration(c.ShutdownTimeout) * time.Second
}
