package domain

// EventKind identifies what part of the session changed
type EventKind string

const (
	EventServersChanged   EventKind = "servers"
	EventServerSelected   EventKind = "server_selected"
	EventCatalogChanged   EventKind = "catalog"
	EventFilterChanged    EventKind = "filter"
	EventImageSelected    EventKind = "image_selected"
	EventLoadingChanged   EventKind = "loading"
	EventDownloadStarted  EventKind = "download_started"
	EventDownloadProgress EventKind = "download_progress"
	EventDownloadFinished EventKind = "download_finished"
	EventDownloadRemoved  EventKind = "download_removed"
	EventHistoryChanged   EventKind = "history"
)

// SessionEvent reports a mutation of session state.
// Task is set for download events.
type SessionEvent struct {
	Kind EventKind
	Task *DownloadTask
	Err  error
}

// SessionObserver receives events after session state changes.
// OnEvent is called outside the session lock and must not block for long.
type SessionObserver interface {
	OnEvent(event SessionEvent)
}

// NoOpObserver discards events (for testing/batch operations).
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(SessionEvent) {}

// ObserverFunc adapts a plain function to SessionObserver
type ObserverFunc func(SessionEvent)

func (f ObserverFunc) OnEvent(event SessionEvent) { f(event) }
