package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"notification_mailer/internal/domain/notification"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = errors.New("performing user is not authorized as an admin")
var ErrNoTrigger = errors.New("manual runs are not available")

// RunTrigger starts a dispatch run outside the schedule.
type RunTrigger interface {
	// Claim takes the single-flight flag; run must then be called exactly once.
	Claim() (run func(), ok bool)
	Busy() bool
}

// AdminService answers operator commands. It remembers the last finished run.
type AdminService struct {
	adminTelegramID int64

	mu      sync.Mutex
	trigger RunTrigger
	last    *RunSummary
}

func NewAdminService(adminID int64) *AdminService {
	return &AdminService{adminTelegramID: adminID}
}

// AttachTrigger sets the trigger used by TriggerRun. The scheduler is built after the
// dispatch service, so it is attached late.
func (s *AdminService) AttachTrigger(t RunTrigger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trigger = t
}

// Report implements RunReporter.
func (s *AdminService) Report(_ context.Context, summary RunSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &summary
}

// Status describes the last finished run and whether one is in progress.
func (s *AdminService) Status(performingAdminID int64) (string, error) {
	if performingAdminID != s.adminTelegramID {
		return "", ErrAdminNotAuthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	if s.trigger != nil && s.trigger.Busy() {
		b.WriteString("A dispatch run is in progress.\n")
	}
	if s.last == nil {
		b.WriteString("No dispatch run has finished yet.")
		return b.String(), nil
	}

	last := s.last
	fmt.Fprintf(&b, "Last run %s finished %s (took %s).\n",
		last.RunID, last.FinishedAt.Format(time.RFC3339), last.Duration().Round(time.Millisecond))
	if last.FetchErr != nil {
		fmt.Fprintf(&b, "Pending notifications could not be read: %v", last.FetchErr)
		return b.String(), nil
	}
	fmt.Fprintf(&b, "Pending: %d, sent: %d, send failed: %d, mark failed: %d, render failed: %d",
		last.Pending,
		last.Count(notification.OutcomeSent),
		last.Count(notification.OutcomeSendFailed),
		last.Count(notification.OutcomeMarkFailed),
		last.Count(notification.OutcomeRenderFailed))
	return b.String(), nil
}

// TriggerRun starts a run in the background. It returns false when a run is already active.
func (s *AdminService) TriggerRun(performingAdminID int64) (bool, error) {
	if performingAdminID != s.adminTelegramID {
		return false, ErrAdminNotAuthorized
	}
	s.mu.Lock()
	t := s.trigger
	s.mu.Unlock()
	if t == nil {
		return false, ErrNoTrigger
	}
	run, ok := t.Claim()
	if !ok {
		return false, nil
	}
	go run()
	return true, nil
}
