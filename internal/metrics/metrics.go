// Package metrics exports daemon counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"breaktime/internal/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "breaktime"

// Recorder captures reminder, sync and break telemetry. A nil *Recorder
// records nothing.
type Recorder struct {
	registry *prometheus.Registry

	fired       *prometheus.CounterVec
	shown       prometheus.Counter
	suppressed  *prometheus.CounterVec
	responses   *prometheus.CounterVec
	syncs       *prometheus.CounterVec
	usageSent   prometheus.Counter
	breaks      *prometheus.CounterVec
	breakActive prometheus.Gauge
}

// New creates a recorder with its own registry.
func New() (*Recorder, error) {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		fired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timer_fired_total",
			Help:      "Timer firings by timer name.",
		}, []string{"timer"}),
		shown: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_shown_total",
			Help:      "Reminders that passed the gate and were shown.",
		}),
		suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_suppressed_total",
			Help:      "Reminders suppressed by the gate, by reason.",
		}, []string{"reason"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prompt_responses_total",
			Help:      "Answers to reminder prompts, by action.",
		}, []string{"action"}),
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "syncs_total",
			Help:      "Schedule syncs by result.",
		}, []string{"result"}),
		usageSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_sent_seconds_total",
			Help:      "Break seconds appended to the remote usage log.",
		}),
		breaks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "break_transitions_total",
			Help:      "Break session transitions by event.",
		}, []string{"event"}),
		breakActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "break_active",
			Help:      "1 while a break is in progress.",
		}),
	}

	for _, c := range []prometheus.Collector{
		r.fired, r.shown, r.suppressed, r.responses, r.syncs, r.usageSent, r.breaks, r.breakActive,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return r, nil
}

// Fired counts a timer firing.
func (r *Recorder) Fired(timer string) {
	if r == nil {
		return
	}
	r.fired.WithLabelValues(timer).Inc()
}

// Shown counts a reminder that reached the user.
func (r *Recorder) Shown() {
	if r == nil {
		return
	}
	r.shown.Inc()
}

// Suppressed counts a gated reminder.
func (r *Recorder) Suppressed(reason string) {
	if r == nil {
		return
	}
	r.suppressed.WithLabelValues(reason).Inc()
}

// Response counts a prompt answer.
func (r *Recorder) Response(action string) {
	if r == nil {
		return
	}
	r.responses.WithLabelValues(action).Inc()
}

// Sync counts a sync and the usage it sent.
func (r *Recorder) Sync(result string, usageSeconds int64) {
	if r == nil {
		return
	}
	r.syncs.WithLabelValues(result).Inc()
	if usageSeconds > 0 {
		r.usageSent.Add(float64(usageSeconds))
	}
}

// Break counts a transition and updates the active gauge.
func (r *Recorder) Break(event string, active bool) {
	if r == nil {
		return
	}
	r.breaks.WithLabelValues(event).Inc()
	r.BreakActive(active)
}

// BreakActive sets the active gauge without counting a transition.
func (r *Recorder) BreakActive(active bool) {
	if r == nil {
		return
	}
	if active {
		r.breakActive.Set(1)
	} else {
		r.breakActive.Set(0)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	logger = logging.Component(logger, "metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
