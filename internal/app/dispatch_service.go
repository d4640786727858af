// internal/app/dispatch_service.go
package app

import (
	"context"
	"fmt"
	"time"

	"notification_mailer/internal/domain/mail"
	"notification_mailer/internal/domain/notification"
	"notification_mailer/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// markTimeout bounds the mark-sent write issued after a confirmed send.
const markTimeout = 10 * time.Second

// Dispatcher drains the pending notification set once per call.
type Dispatcher interface {
	// Run never returns an error: per-record and fetch failures are reported in the summary.
	Run(ctx context.Context) RunSummary
}

// RunReporter receives the summary of every finished run.
type RunReporter interface {
	Report(ctx context.Context, summary RunSummary)
}

// RecordResult is the outcome of one record within a run.
type RecordResult struct {
	RecordID  int64
	Recipient string
	Outcome   notification.Outcome
	Err       error
}

// RunSummary collects what happened during one invocation.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Pending    int   // Size of the snapshot read at the start of the run
	FetchErr   error // Set when the pending set could not be read; nothing else happened
	Results    []RecordResult
}

// Count returns how many results ended with the given outcome.
func (s RunSummary) Count(o notification.Outcome) int {
	n := 0
	for _, r := range s.Results {
		if r.Outcome == o {
			n++
		}
	}
	return n
}

// Failed returns the results that left their record pending.
func (s RunSummary) Failed() []RecordResult {
	var out []RecordResult
	for _, r := range s.Results {
		if r.Outcome != notification.OutcomeSent {
			out = append(out, r)
		}
	}
	return out
}

func (s RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// DispatchService sends pending notifications by email and marks them sent.
type DispatchService struct {
	notifRepo notification.Repository
	sender    mail.Sender
	renderer  mail.Renderer
	cc        []string // Static secondary recipients added to every message
	reporters []RunReporter
	logger    logrus.FieldLogger
	now       func() time.Time
}

func NewDispatchService(
	nr notification.Repository,
	sender mail.Sender,
	renderer mail.Renderer,
	cc []string,
	logger logrus.FieldLogger,
	reporters ...RunReporter,
) *DispatchService {
	return &DispatchService{
		notifRepo: nr,
		sender:    sender,
		renderer:  renderer,
		cc:        append([]string(nil), cc...),
		reporters: reporters,
		logger:    logger.WithField("component", "dispatch"),
		now:       time.Now,
	}
}

// Run fetches a snapshot of pending records and gives each exactly one send attempt.
// A record is marked sent only after its own send succeeded.
func (s *DispatchService) Run(ctx context.Context) RunSummary {
	summary := RunSummary{RunID: uuid.NewString(), StartedAt: s.now()}
	log := s.logger.WithField("run_id", summary.RunID)
	log.Info("Starting dispatch run")

	records, err := s.listPendingSafely(ctx)
	if err != nil {
		summary.FetchErr = fmt.Errorf("failed to list pending records: %w", err)
		log.WithError(err).Error("Could not fetch pending records, skipping this run")
		return s.finish(ctx, log, summary)
	}

	pending := make([]*notification.Record, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			log.Warn("Store returned a nil record, ignoring it")
			continue
		}
		pending = append(pending, rec)
	}

	summary.Pending = len(pending)
	if len(pending) == 0 {
		log.Info("No pending records to send")
		return s.finish(ctx, log, summary)
	}
	log.Infof("Found %d pending record(s)", len(pending))

	summary.Results = make([]RecordResult, 0, len(pending))
	for _, rec := range pending {
		summary.Results = append(summary.Results, s.dispatchRecord(ctx, log, rec))
	}

	return s.finish(ctx, log, summary)
}

func (s *DispatchService) dispatchRecord(ctx context.Context, log logrus.FieldLogger, rec *notification.Record) (res RecordResult) {
	res = RecordResult{RecordID: rec.ID, Recipient: rec.Email}
	log = log.WithFields(logrus.Fields{"record_id": rec.ID, "recipient": rec.Email})
	log.Debugf("Processing record: %s", rec.Title)

	// A panic counts against the step in progress; the record stays pending.
	failStep := notification.OutcomeSendFailed
	defer func() {
		if r := recover(); r != nil {
			res.Outcome, res.Err = failStep, fmt.Errorf("panic while processing record %d: %v", rec.ID, r)
			log.WithField("panic", r).Error("Recovered from panic, record stays pending")
		}
	}()

	content, err := s.renderSafely(rec)
	if err != nil {
		res.Outcome, res.Err = notification.OutcomeRenderFailed, err
		log.WithError(err).Error("Could not render record, it stays pending")
		return res
	}

	if rec.Email == "" {
		res.Outcome, res.Err = notification.OutcomeSendFailed, mail.ErrNoRecipient
		log.Error("Record has no recipient address, it stays pending")
		return res
	}

	msg := mail.Message{
		To:       rec.Email,
		Cc:       s.cc,
		Subject:  content.Subject,
		HTMLBody: content.HTMLBody,
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		res.Outcome, res.Err = notification.OutcomeSendFailed, err
		log.WithError(err).Error("Failed to send email, will retry on the next run")
		return res
	}

	failStep = notification.OutcomeMarkFailed

	// The email is out; finish the write even if the run context is ending.
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markTimeout)
	defer cancel()
	if err := s.notifRepo.MarkSent(markCtx, rec.ID); err != nil {
		res.Outcome, res.Err = notification.OutcomeMarkFailed, err
		log.WithError(err).Error("Email sent but record could not be marked, it may be sent again")
		return res
	}

	res.Outcome = notification.OutcomeSent
	log.Info("Email sent and record marked as sent")
	return res
}

func (s *DispatchService) listPendingSafely(ctx context.Context) (records []*notification.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("store panicked while listing pending records: %v", r)
		}
	}()
	return s.notifRepo.ListPending(ctx)
}

// renderSafely keeps a misbehaving renderer from taking the run down.
func (s *DispatchService) renderSafely(rec *notification.Record) (content mail.Content, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("renderer panicked on record %d: %v", rec.ID, r)
		}
	}()
	return s.renderer.Render(rec)
}

func (s *DispatchService) finish(ctx context.Context, log logrus.FieldLogger, summary RunSummary) RunSummary {
	summary.FinishedAt = s.now()
	metrics.DispatchRunDuration.Observe(summary.Duration().Seconds())
	if summary.FetchErr != nil {
		metrics.DispatchRuns.WithLabelValues("fetch_failed").Inc()
	} else {
		metrics.DispatchRuns.WithLabelValues("completed").Inc()
	}
	for _, r := range summary.Results {
		metrics.DispatchRecords.WithLabelValues(string(r.Outcome)).Inc()
	}

	log.WithFields(logrus.Fields{
		"pending":       summary.Pending,
		"sent":          summary.Count(notification.OutcomeSent),
		"send_failed":   summary.Count(notification.OutcomeSendFailed),
		"mark_failed":   summary.Count(notification.OutcomeMarkFailed),
		"render_failed": summary.Count(notification.OutcomeRenderFailed),
		"elapsed":       summary.Duration().String(),
	}).Info("Dispatch run completed")

	for _, r := range s.reporters {
		s.report(ctx, log, r, summary)
	}
	return summary
}

func (s *DispatchService) report(ctx context.Context, log logrus.FieldLogger, r RunReporter, summary RunSummary) {
	defer func() {
		if p := recover(); p != nil {
			log.WithField("panic", p).Error("Run reporter panicked")
		}
	}()
	r.Report(ctx, summary)
}
