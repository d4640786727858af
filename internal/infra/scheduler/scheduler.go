package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"notification_mailer/internal/app" // For Dispatcher interface
	"notification_mailer/internal/infra/metrics"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// State is the single-flight state of the scheduler.
type State int32

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

// DispatchScheduler triggers the dispatcher on a cron cadence.
// At most one run is active at a time; a tick that finds a run in progress is dropped.
type DispatchScheduler struct {
	cronEngine *cron.Cron
	dispatcher app.Dispatcher
	logger     logrus.FieldLogger
	cronSpec   string // e.g., "* * * * *" (every minute)
	runTimeout time.Duration

	state atomic.Int32 // Only this type changes it
}

func NewDispatchScheduler(
	dispatcher app.Dispatcher,
	logger logrus.FieldLogger,
	cronSpec string,
	runTimeout time.Duration,
) *DispatchScheduler {
	return &DispatchScheduler{
		cronEngine: cron.New(
			cron.WithLocation(time.Local), // Use server's local time for cron
			cron.WithChain(cron.Recover(cron.PrintfLogger(logger))),
		),
		dispatcher: dispatcher,
		logger:     logger.WithField("component", "scheduler"),
		cronSpec:   cronSpec,
		runTimeout: runTimeout,
	}
}

// Start performs one immediate run and then arms the periodic cadence.
func (s *DispatchScheduler) Start() error {
	s.logger.Info("Starting dispatch scheduler...")

	if _, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		s.TryRun()
	}); err != nil {
		return fmt.Errorf("could not add dispatch cron job %q: %w", s.cronSpec, err)
	}

	s.logger.Info("Executing first dispatch run before arming the schedule")
	s.TryRun()

	s.cronEngine.Start()
	s.logger.Infof("Dispatch scheduler started with spec %q", s.cronSpec)
	return nil
}

// TryRun executes one dispatch run unless one is already active.
// It reports whether a run was executed.
func (s *DispatchScheduler) TryRun() bool {
	run, ok := s.Claim()
	if !ok {
		return false
	}
	run()
	return true
}

// Claim takes the single-flight flag. On success the caller must call run exactly once;
// run performs the dispatch and releases the flag. A tick that finds the flag taken is skipped.
func (s *DispatchScheduler) Claim() (run func(), ok bool) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		metrics.SchedulerSkippedTicks.Inc()
		s.logger.Warn("Previous dispatch run still in progress, skipping this tick")
		return nil, false
	}
	return s.execute, true
}

func (s *DispatchScheduler) execute() {
	defer s.state.Store(int32(StateIdle))
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("panic", r).Error("Dispatch run panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	started := time.Now()
	summary := s.dispatcher.Run(ctx)
	s.logger.WithFields(logrus.Fields{
		"run_id":  summary.RunID,
		"pending": summary.Pending,
		"elapsed": time.Since(started).String(),
	}).Debug("Dispatch tick finished")
}

// State returns the current single-flight state.
func (s *DispatchScheduler) State() State {
	return State(s.state.Load())
}

// Busy reports whether a run is in progress.
func (s *DispatchScheduler) Busy() bool {
	return s.State() == StateRunning
}

// Stop prevents further ticks. A run already in progress is not waited for;
// the returned context is done once it finishes.
func (s *DispatchScheduler) Stop() context.Context {
	s.logger.Info("Stopping dispatch scheduler...")
	return s.cronEngine.Stop()
}
