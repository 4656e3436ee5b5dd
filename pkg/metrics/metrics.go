// Package metrics exposes engine execution counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zurustar/mission-vm/pkg/logger"
	"github.com/zurustar/mission-vm/pkg/opcode"
	"github.com/zurustar/mission-vm/pkg/vm"
)

const namespace = "mission_vm"

const (
	defaultTimeout  = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Collector implements vm.Observer and records into its own registry.
type Collector struct {
	registry *prometheus.Registry

	threadsStarted  prometheus.Counter
	threadsFinished prometheus.Counter
	activeThreads   prometheus.Gauge
	commands        *prometheus.CounterVec
	anomalies       *prometheus.CounterVec
	ticks           prometheus.Counter
	tickDuration    prometheus.Histogram
}

var _ vm.Observer = (*Collector)(nil)

// NewCollector creates a collector registered on a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		threadsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threads_started_total",
			Help:      "Script threads started",
		}),
		threadsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threads_finished_total",
			Help:      "Script threads terminated",
		}),
		activeThreads: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_threads",
			Help:      "Threads alive after the last tick",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Command lines executed",
		}, []string{"opcode"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_total",
			Help:      "Script anomalies by type",
		}, []string{"type"}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Completed engine updates",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_elapsed_seconds",
			Help:      "Elapsed game time passed to each update",
			Buckets:   []float64{0.005, 0.01, 0.02, 0.034, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
	c.registry.MustRegister(
		c.threadsStarted,
		c.threadsFinished,
		c.activeThreads,
		c.commands,
		c.anomalies,
		c.ticks,
		c.tickDuration,
	)
	return c
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) ThreadStarted(int) { c.threadsStarted.Inc() }

func (c *Collector) ThreadFinished(int) { c.threadsFinished.Inc() }

func (c *Collector) CommandExecuted(cmd opcode.Cmd) {
	c.commands.WithLabelValues(string(cmd)).Inc()
}

func (c *Collector) Anomaly(t vm.ErrorType) {
	c.anomalies.WithLabelValues(string(t)).Inc()
}

func (c *Collector) TickCompleted(active int, elapsed time.Duration) {
	c.ticks.Inc()
	c.activeThreads.Set(float64(active))
	c.tickDuration.Observe(elapsed.Seconds())
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve runs a /metrics server on addr until ctx is cancelled.
// The returned channel is closed once the server has shut down.
func (c *Collector) Serve(ctx context.Context, addr string, log *slog.Logger) <-chan struct{} {
	if log == nil {
		log = logger.GetLogger()
	}
	h := http.NewServeMux()
	h.Handle("/metrics", c.Handler())
	s := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: defaultTimeout,
		ReadTimeout:       defaultTimeout,
	}
	s.RegisterOnShutdown(func() {
		log.Info("Metrics server is shutting down")
	})
	go func() {
		log.Info("Starting metrics server", "address", addr)
		err := s.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Failed to start metrics server", "error", err)
		}
	}()
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			log.Error("Failed to shutdown metrics server", "error", err)
		}
	}()
	return done
}
