package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	catalogDuration  *prom.HistogramVec
	downloadDuration *prom.HistogramVec
	downloadOutcome  *prom.CounterVec
	rejected         prom.Counter
	active           prom.Gauge
}

// NewPrometheusRecorder constructs and registers the session metrics on reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		catalogDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "vhdget",
			Name:      "catalog_load_duration_seconds",
			Help:      "Duration of server and image list requests",
			Buckets:   prom.DefBuckets,
		}, []string{"kind", "result"}),
		downloadDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "vhdget",
			Name:      "download_duration_seconds",
			Help:      "Duration of download attempts by outcome",
			Buckets:   prom.ExponentialBuckets(1, 4, 8),
		}, []string{"outcome"}),
		downloadOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "vhdget",
			Name:      "download_outcomes_total",
			Help:      "Download attempts by terminal status",
		}, []string{"outcome"}),
		rejected: prom.NewCounter(prom.CounterOpts{
			Namespace: "vhdget",
			Name:      "download_rejected_total",
			Help:      "Downloads rejected because the file was already active",
		}),
		active: prom.NewGauge(prom.GaugeOpts{
			Namespace: "vhdget",
			Name:      "active_downloads",
			Help:      "Downloads currently in flight",
		}),
	}
	reg.MustRegister(pr.catalogDuration, pr.downloadDuration, pr.downloadOutcome, pr.rejected, pr.active)
	return pr
}

func (p *PrometheusRecorder) ObserveCatalogLoad(kind string, d time.Duration, success bool) {
	if p == nil || p.catalogDuration == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.catalogDuration.WithLabelValues(kind, res).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveDownload(outcome Outcome, d time.Duration) {
	if p == nil || p.downloadOutcome == nil {
		return
	}
	p.downloadOutcome.WithLabelValues(string(outcome)).Inc()
	p.downloadDuration.WithLabelValues(string(outcome)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncDownloadRejected() {
	if p == nil || p.rejected == nil {
		return
	}
	p.rejected.Inc()
}

func (p *PrometheusRecorder) SetActiveDownloads(n int) {
	if p == nil || p.active == nil {
		return
	}
	p.active.Set(float64(n))
}

// Serve exposes reg on addr at /metrics until ctx is done.
func Serve(ctx context.Context, addr string, reg *prom.Registry, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
