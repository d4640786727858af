package telegram

import (
	"errors"
	"strings"

	"notification_mailer/internal/app"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterAdminHandlers registers the operator commands.
// Only the configured admin chat gets answers; everyone else is told they are not allowed.
func RegisterAdminHandlers(b *telebot.Bot, adminService *app.AdminService, adminTelegramID int64, baseLogger logrus.FieldLogger) {
	unauthorized := func(c telebot.Context, log logrus.FieldLogger) error {
		log.Warn("Unauthorized access attempt")
		return c.Send("Error: you are not allowed to use this bot.")
	}

	b.Handle("/start", func(c telebot.Context) error {
		log := baseLogger.WithFields(logrus.Fields{"handler": "/start", "sender_id": c.Sender().ID})
		log.Info("Command received")
		if c.Sender().ID != adminTelegramID {
			return unauthorized(c, log)
		}
		return c.Send("Hello! I report failed notification dispatch runs. Use /help for the command list.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		log := baseLogger.WithFields(logrus.Fields{"handler": "/help", "sender_id": c.Sender().ID})
		if c.Sender().ID != adminTelegramID {
			return unauthorized(c, log)
		}
		var helpText strings.Builder
		helpText.WriteString("Available commands:\n\n")
		helpText.WriteString("`/status`\n - Show the result of the last dispatch run.\n\n")
		helpText.WriteString("`/run`\n - Start a dispatch run now, unless one is in progress.\n\n")
		helpText.WriteString("`/help`\n - Show this message.")
		return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})

	b.Handle("/status", func(c telebot.Context) error {
		log := baseLogger.WithFields(logrus.Fields{"handler": "/status", "sender_id": c.Sender().ID})
		log.Info("Command received")

		text, err := adminService.Status(c.Sender().ID)
		if errors.Is(err, app.ErrAdminNotAuthorized) {
			return unauthorized(c, log)
		}
		if err != nil {
			log.WithError(err).Error("Failed to build status")
			return c.Send("An error occurred while reading the status: " + err.Error())
		}
		return c.Send(text)
	})

	b.Handle("/run", func(c telebot.Context) error {
		log := baseLogger.WithFields(logrus.Fields{"handler": "/run", "sender_id": c.Sender().ID})
		log.Info("Command received")

		started, err := adminService.TriggerRun(c.Sender().ID)
		switch {
		case errors.Is(err, app.ErrAdminNotAuthorized):
			return unauthorized(c, log)
		case err != nil:
			log.WithError(err).Warn("Manual run refused")
			return c.Send("Manual runs are not available right now.")
		case !started:
			log.Info("Manual run skipped, a run is in progress")
			return c.Send("A dispatch run is already in progress. Use /status once it finishes.")
		}
		log.Info("Manual run started")
		return c.Send("Dispatch run started. Use /status to see the result.")
	})
}
