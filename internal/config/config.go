package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the Agent Hub backend
type Config struct {
	Server struct {
		Port string
	}
	Database struct {
		Driver string // "postgres" or "sqlite"
		URL    string
	}
	Redis struct {
		Host     string
		Port     string
		Password string
	}
	Auth struct {
		JWTSecret        string
		OTPExpireMinutes int
		TokenExpireHours int
		DevExposeOTP     bool // echo the OTP in the login response (no email backend)
	}
	Email struct {
		Enabled     bool
		Region      string
		FromAddress string
		FromName    string
	}
	Telemetry struct {
		Enabled      bool
		Endpoint     string
		SamplingRate float64
	}
	Log struct {
		Level string
		File  string
	}
}

// Load reads config.yaml (optional) and environment variables into a Config.
// Environment variables override file values: AGENTHUB_SERVER_PORT, etc.
// JWT_SECRET is always taken from the environment and never from the file.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("agenthub")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.port", "8788")
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.url", "host=localhost port=5432 user=postgres dbname=agenthub sslmode=disable")
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("auth.otp_expire_minutes", 5)
	viper.SetDefault("auth.token_expire_hours", 24)
	viper.SetDefault("auth.dev_expose_otp", false)
	viper.SetDefault("email.enabled", false)
	viper.SetDefault("email.region", "us-east-1")
	viper.SetDefault("email.from_name", "AI Agent Hub")
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.endpoint", "localhost:4318")
	viper.SetDefault("telemetry.sampling_rate", 0.1)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file", "server.log")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	cfg.Server.Port = viper.GetString("server.port")
	cfg.Database.Driver = viper.GetString("database.driver")
	cfg.Database.URL = viper.GetString("database.url")
	cfg.Redis.Host = viper.GetString("redis.host")
	cfg.Redis.Port = viper.GetString("redis.port")
	cfg.Redis.Password = viper.GetString("redis.password")
	cfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.Auth.OTPExpireMinutes = viper.GetInt("auth.otp_expire_minutes")
	cfg.Auth.TokenExpireHours = viper.GetInt("auth.token_expire_hours")
	cfg.Auth.DevExposeOTP = viper.GetBool("auth.dev_expose_otp")
	cfg.Email.Enabled = viper.GetBool("email.enabled")
	cfg.Email.Region = viper.GetString("email.region")
	cfg.Email.FromAddress = viper.GetString("email.from_address")
	cfg.Email.FromName = viper.GetString("email.from_name")
	cfg.Telemetry.Enabled = viper.GetBool("telemetry.enabled")
	cfg.Telemetry.Endpoint = viper.GetString("telemetry.endpoint")
	cfg.Telemetry.SamplingRate = viper.GetFloat64("telemetry.sampling_rate")
	cfg.Log.Level = viper.GetString("log.level")
	cfg.Log.File = viper.GetString("log.file")

	return &cfg, nil
}

// Validate checks that required settings are present
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Email.Enabled && c.Email.FromAddress == "" {
		return fmt.Errorf("email.from_address is required when email is enabled")
	}
	return nil
}
