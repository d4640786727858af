package main

import (
	"context"
	"fmt"
	"time"

	"notification_mailer/internal/app"
	"notification_mailer/internal/infra/config"
	idb "notification_mailer/internal/infra/database"
	imail "notification_mailer/internal/infra/mail"
	"notification_mailer/internal/infra/telegram"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const checkTimeout = 30 * time.Second

// components holds everything a command needs, built from explicit configuration.
type components struct {
	cfg        *config.AppConfig
	logger     *logrus.Logger
	db         *sqlx.DB
	notifRepo  *idb.SQLNotificationRepository
	sender     *imail.SMTPSender
	dispatcher *app.DispatchService

	bot   *telebot.Bot      // nil when Telegram is not configured
	admin *app.AdminService // set only when the bot polls for commands
}

// buildComponents wires the store, mailer and dispatch service. With withCommands set the
// Telegram bot also answers operator commands.
func buildComponents(cfg *config.AppConfig, logger *logrus.Logger, withCommands bool) (*components, error) {
	// Initialize Database Connection
	db, err := idb.NewConnection(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	logger.Info("Database connection established successfully.")

	notifRepo, err := idb.NewSQLNotificationRepository(db, cfg.Database.PendingSource, cfg.Database.RecordsTable)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not initialize notification repository: %w", err)
	}

	sender := imail.NewSMTPSender(cfg.SMTP, cfg.Mail, logger)
	renderer := imail.NewRenderer(cfg.Mail.SubjectPrefix)

	c := &components{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		notifRepo: notifRepo,
		sender:    sender,
	}

	var reporters []app.RunReporter
	if cfg.Telegram.Token != "" {
		// Telegram is optional; a bot that cannot start does not stop the mailer.
		b, err := telegram.NewBot(cfg.Telegram.Token, withCommands)
		if err != nil {
			logger.WithError(err).Error("Telegram alerts disabled")
		} else {
			c.bot = b
			reporters = append(reporters, app.NewAlertService(telegram.NewTelebotAdapter(b), cfg.Telegram.AdminChatID, logger))
			logger.Infof("Run alerts enabled for Telegram chat %d", cfg.Telegram.AdminChatID)
			if withCommands {
				c.admin = app.NewAdminService(cfg.Telegram.AdminChatID)
				reporters = append(reporters, c.admin)
				telegram.RegisterAdminHandlers(b, c.admin, cfg.Telegram.AdminChatID, logger.WithField("component", "telegram"))
			}
		}
	}

	c.dispatcher = app.NewDispatchService(notifRepo, sender, renderer, cfg.Mail.Cc, logger, reporters...)
	logger.Infof("Dispatch service initialized with %d secondary recipient(s).", len(cfg.Mail.Cc))
	return c, nil
}

// checkConnectivity verifies the store and the mail transport before any work is scheduled.
func (c *components) checkConnectivity(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := c.notifRepo.Ping(ctx); err != nil {
		return fmt.Errorf("database check failed: %w", err)
	}
	c.logger.Info("✓ Database connection OK")

	if err := c.sender.Verify(ctx); err != nil {
		return fmt.Errorf("mail transport check failed: %w", err)
	}
	c.logger.Info("✓ Mail transport configuration verified")
	return nil
}

func (c *components) Close() {
	if err := c.db.Close(); err != nil {
		c.logger.WithError(err).Warn("Error closing database")
	}
}
