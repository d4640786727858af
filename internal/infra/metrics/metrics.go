package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Dispatch metrics
	DispatchRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_mailer_dispatch_runs_total",
		Help: "Total number of dispatch runs by result (completed, fetch_failed)",
	}, []string{"result"})
	DispatchRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_mailer_dispatch_records_total",
		Help: "Total number of records processed by outcome",
	}, []string{"outcome"})
	DispatchRunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "notification_mailer_dispatch_run_duration_seconds",
		Help:    "Duration of dispatch runs",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})
	SchedulerSkippedTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notification_mailer_scheduler_skipped_ticks_total",
		Help: "Total number of scheduler ticks skipped because a run was still in progress",
	})

	// Mail metrics
	MailSendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_mailer_mail_send_success_total",
		Help: "Total number of successful mail sends",
	}, []string{"host"})
	MailSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_mailer_mail_send_failure_total",
		Help: "Total number of failed mail sends",
	}, []string{"host"})
)

func init() {
	prometheus.MustRegister(DispatchRuns)
	prometheus.MustRegister(DispatchRecords)
	prometheus.MustRegister(DispatchRunDuration)
	prometheus.MustRegister(SchedulerSkippedTicks)
	prometheus.MustRegister(MailSendSuccess)
	prometheus.MustRegister(MailSendFailure)
}

// Server exposes the default registry on /metrics.
type Server struct {
	srv *http.Server
}

func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// ListenAndServe blocks until the server fails or is shut down.
func (s *Server) ListenAndServe() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
