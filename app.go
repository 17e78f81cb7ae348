package main

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/balakodigital/crm-notifier/internal/client/email"
	"github.com/balakodigital/crm-notifier/internal/client/whatsapp"
	"github.com/balakodigital/crm-notifier/internal/config"
	"github.com/balakodigital/crm-notifier/internal/events"
	"github.com/balakodigital/crm-notifier/internal/notification"
	"github.com/balakodigital/crm-notifier/internal/observability"
	"github.com/balakodigital/crm-notifier/internal/repository"
	"github.com/balakodigital/crm-notifier/internal/service"
)

// app is everything a command needs once configuration is loaded.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	db         *sqlx.DB
	whatsapp   *whatsapp.Client
	publisher  events.Publisher
	dispatcher *service.Dispatcher
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, logger, nil
}

func newWhatsAppClient(cfg *config.Config, logger *zap.Logger) (*whatsapp.Client, error) {
	return whatsapp.NewClient(whatsapp.Config{
		BaseURL:       cfg.WhatsApp.BaseURL,
		APIKey:        cfg.WhatsApp.APIKey,
		Instance:      cfg.WhatsApp.Instance,
		Timeout:       cfg.WhatsApp.Timeout,
		StatusTimeout: cfg.WhatsApp.StatusTimeout,
		RatePerMinute: cfg.WhatsApp.RatePerMinute,
	}, logger)
}

func newApp() (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	wa, err := newWhatsAppClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	mailer, err := email.NewSender(email.Config{
		Transport:     cfg.Email.Transport,
		From:          cfg.Email.From,
		AppName:       cfg.AppName,
		ResendAPIKey:  cfg.Email.ResendAPIKey,
		ResendBaseURL: cfg.Email.ResendBaseURL,
		SMTPHost:      cfg.Email.SMTPHost,
		SMTPPort:      cfg.Email.SMTPPort,
		SMTPUsername:  cfg.Email.SMTPUsername,
		SMTPPassword:  cfg.Email.SMTPPassword,
		Timeout:       cfg.Email.Timeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.Events.AMQPURL != "" {
		publisher, err = events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
		if err != nil {
			return nil, fmt.Errorf("connecting to broker: %w", err)
		}
	}

	db, err := repository.InitDB(cfg.Database.Path)
	if err != nil {
		publisher.Close()
		return nil, fmt.Errorf("initializing database: %w", err)
	}

	dispatcher := service.NewDispatcher(
		cfg.Cron.Secret,
		cfg.Location(),
		repository.NewTaskRepository(db),
		wa,
		mailer,
		notification.NewFormatter(cfg.AppName, cfg.Location()),
		publisher,
		logger,
	)

	return &app{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		whatsapp:   wa,
		publisher:  publisher,
		dispatcher: dispatcher,
	}, nil
}

func (a *app) Close() {
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn("closing publisher", zap.Error(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("closing database", zap.Error(err))
	}
	a.logger.Sync()
}
