// Package config reads the service settings from the environment, after
// loading an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/balakodigital/crm-notifier/internal/apperr"
)

type Config struct {
	AppName  string
	Server   ServerConfig
	Database DatabaseConfig
	Cron     CronConfig
	WhatsApp WhatsAppConfig
	Email    EmailConfig
	Events   EventsConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Path string
}

type CronConfig struct {
	Secret string
	// Timezone decides where "today" starts and ends for the dispatcher.
	Timezone string
}

type WhatsAppConfig struct {
	BaseURL       string
	APIKey        string
	Instance      string
	Timeout       time.Duration
	StatusTimeout time.Duration
	RatePerMinute int
}

type EmailConfig struct {
	Transport     string
	From          string
	ResendAPIKey  string
	ResendBaseURL string
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	Timeout       time.Duration
}

type EventsConfig struct {
	AMQPURL  string
	Exchange string
}

type LogConfig struct {
	Level       string
	Development bool
}

// Load reads envFile when it exists and then the process environment.
// Values already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		AppName: v.GetString("APP_NAME"),
		Server: ServerConfig{
			Port:            v.GetInt("PORT"),
			ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("DATABASE_PATH"),
		},
		Cron: CronConfig{
			Secret:   v.GetString("CRON_SECRET"),
			Timezone: v.GetString("APP_TIMEZONE"),
		},
		WhatsApp: WhatsAppConfig{
			BaseURL:       v.GetString("EVOLUTION_API_URL"),
			APIKey:        v.GetString("EVOLUTION_API_KEY"),
			Instance:      v.GetString("EVOLUTION_INSTANCE_NAME"),
			Timeout:       v.GetDuration("WHATSAPP_TIMEOUT"),
			StatusTimeout: v.GetDuration("WHATSAPP_STATUS_TIMEOUT"),
			RatePerMinute: v.GetInt("WHATSAPP_RATE_PER_MINUTE"),
		},
		Email: EmailConfig{
			Transport:     strings.ToLower(v.GetString("EMAIL_TRANSPORT")),
			From:          v.GetString("EMAIL_FROM"),
			ResendAPIKey:  v.GetString("RESEND_API_KEY"),
			ResendBaseURL: v.GetString("RESEND_BASE_URL"),
			SMTPHost:      v.GetString("SMTP_HOST"),
			SMTPPort:      v.GetInt("SMTP_PORT"),
			SMTPUsername:  v.GetString("SMTP_USERNAME"),
			SMTPPassword:  v.GetString("SMTP_PASSWORD"),
			Timeout:       v.GetDuration("EMAIL_TIMEOUT"),
		},
		Events: EventsConfig{
			AMQPURL:  v.GetString("AMQP_URL"),
			Exchange: v.GetString("EVENTS_EXCHANGE"),
		},
		Log: LogConfig{
			Level:       v.GetString("LOG_LEVEL"),
			Development: v.GetBool("LOG_DEVELOPMENT"),
		},
	}

	if _, err := time.LoadLocation(cfg.Cron.Timezone); err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", cfg.Cron.Timezone, err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "Balako Digital CRM")
	v.SetDefault("PORT", 8080)
	v.SetDefault("SHUTDOWN_TIMEOUT", 10*time.Second)
	v.SetDefault("DATABASE_PATH", "./crm.db")
	v.SetDefault("APP_TIMEZONE", "America/Sao_Paulo")
	v.SetDefault("WHATSAPP_TIMEOUT", 30*time.Second)
	v.SetDefault("WHATSAPP_STATUS_TIMEOUT", 10*time.Second)
	v.SetDefault("WHATSAPP_RATE_PER_MINUTE", 0)
	v.SetDefault("EMAIL_TRANSPORT", "resend")
	v.SetDefault("EMAIL_FROM", "")
	v.SetDefault("RESEND_BASE_URL", "https://api.resend.com")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("EMAIL_TIMEOUT", 30*time.Second)
	v.SetDefault("EVENTS_EXCHANGE", "notification.internal")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DEVELOPMENT", false)
}

// Location returns the dispatcher's time zone. Load already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Cron.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate lists every required setting that is empty.
func (c *Config) Validate() error {
	var missing []string
	require := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}

	require("CRON_SECRET", c.Cron.Secret)
	require("EVOLUTION_API_URL", c.WhatsApp.BaseURL)
	require("EVOLUTION_API_KEY", c.WhatsApp.APIKey)
	require("EVOLUTION_INSTANCE_NAME", c.WhatsApp.Instance)
	require("EMAIL_FROM", c.Email.From)
	switch c.Email.Transport {
	case "smtp":
		require("SMTP_HOST", c.Email.SMTPHost)
	case "resend", "":
		require("RESEND_API_KEY", c.Email.ResendAPIKey)
	default:
		missing = append(missing, "EMAIL_TRANSPORT (resend|smtp)")
	}

	if len(missing) > 0 {
		return &apperr.ConfigurationError{Missing: missing}
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
