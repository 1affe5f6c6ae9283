// Package metrics exposes session observability hooks. The Prometheus
// implementation is optional; NoopRecorder is used when metrics are disabled.
package metrics

import "time"

// Outcome enumerates terminal download results for counters.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Recorder defines observability hooks for catalog loads and downloads.
type Recorder interface {
	ObserveCatalogLoad(kind string, d time.Duration, success bool) // kind: servers|images
	ObserveDownload(outcome Outcome, d time.Duration)
	IncDownloadRejected()
	SetActiveDownloads(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveCatalogLoad(string, time.Duration, bool) {}
func (NoopRecorder) ObserveDownload(Outcome, time.Duration)         {}
func (NoopRecorder) IncDownloadRejected()                           {}
func (NoopRecorder) SetActiveDownloads(int)                         {}
