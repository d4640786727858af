// internal/app/alert_service.go
package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	domainTelegram "notification_mailer/internal/domain/telegram"

	"github.com/sirupsen/logrus"
)

// maxListedFailures caps how many failed records are spelled out in one alert.
const maxListedFailures = 10

// AlertService posts a Telegram message to the admin chat when a run leaves records pending.
// Identical consecutive failures are reported once.
type AlertService struct {
	telegramClient domainTelegram.Client
	adminChatID    int64
	logger         logrus.FieldLogger

	mu            sync.Mutex
	lastSignature string
}

func NewAlertService(tc domainTelegram.Client, adminChatID int64, logger logrus.FieldLogger) *AlertService {
	return &AlertService{
		telegramClient: tc,
		adminChatID:    adminChatID,
		logger:         logger.WithField("component", "alerts"),
	}
}

// Report implements RunReporter.
func (s *AlertService) Report(_ context.Context, summary RunSummary) {
	failed := summary.Failed()
	sig := failureSignature(summary, failed)

	s.mu.Lock()
	if sig == s.lastSignature {
		s.mu.Unlock()
		return
	}
	s.lastSignature = sig
	s.mu.Unlock()

	if sig == "" {
		// Recovered: the previous alert is no longer current.
		return
	}

	text := formatAlert(summary, failed)
	if err := s.telegramClient.SendMessage(s.adminChatID, text); err != nil {
		s.logger.WithError(err).Errorf("Failed to send run alert to admin chat %d", s.adminChatID)
		s.mu.Lock()
		s.lastSignature = "" // Try again on the next failing run
		s.mu.Unlock()
		return
	}
	s.logger.WithField("run_id", summary.RunID).Info("Run alert sent to admin chat")
}

// failureSignature identifies the set of problems of a run, empty when there are none.
func failureSignature(summary RunSummary, failed []RecordResult) string {
	if summary.FetchErr != nil {
		return "fetch:" + summary.FetchErr.Error()
	}
	if len(failed) == 0 {
		return ""
	}
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, fmt.Sprintf("%d:%s", r.RecordID, r.Outcome))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func formatAlert(summary RunSummary, failed []RecordResult) string {
	var b strings.Builder
	if summary.FetchErr != nil {
		fmt.Fprintf(&b, "Dispatch run %s could not read pending notifications: %v", summary.RunID, summary.FetchErr)
		return b.String()
	}
	fmt.Fprintf(&b, "Dispatch run %s: %d of %d notification(s) still pending.", summary.RunID, len(failed), summary.Pending)
	for i, r := range failed {
		if i == maxListedFailures {
			fmt.Fprintf(&b, "\n... and %d more", len(failed)-maxListedFailures)
			break
		}
		fmt.Fprintf(&b, "\n- #%d %s: %s", r.RecordID, r.Recipient, r.Outcome)
		if r.Err != nil {
			fmt.Fprintf(&b, " (%v)", r.Err)
		}
	}
	return b.String()
}
