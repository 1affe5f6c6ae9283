// Package session owns the state of one image-download session: the server
// list and selection, the catalog of the selected server with its filtered
// view, and the active and historical download tasks.
//
// All state lives in a Manager guarded by a single mutex. Calls into the
// catalog and transfer clients happen outside the lock, and observers are
// notified after the lock is released.
package session

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sysreinstaller/vhdget/internal/domain"
	"github.com/sysreinstaller/vhdget/internal/metrics"
)

// Options tunes Manager behaviour
type Options struct {
	// ArchiveCancelled records cancelled tasks in history with status
	// cancelled. When false they are discarded.
	ArchiveCancelled bool

	// PreferredServerID is auto-selected by LoadServers when present in the
	// list. Otherwise the first server is used.
	PreferredServerID string

	// HistoryLimit caps the history length (0 = unlimited)
	HistoryLimit int

	// Recorder receives session metrics (nil = no-op)
	Recorder metrics.Recorder
}

// State is a point-in-time copy of everything the UI layer renders
type State struct {
	Servers        []domain.Server
	SelectedServer *domain.Server
	Catalog        []domain.ImageEntry
	Filtered       []domain.ImageEntry
	SelectedImage  *domain.ImageEntry
	Filter         domain.Filter
	Active         []domain.DownloadTask
	History        []domain.DownloadTask
	LoadingServers bool
	LoadingCatalog bool
}

// activeTask pairs an in-flight task with the cancel func of its transfer
type activeTask struct {
	task   domain.DownloadTask
	cancel context.CancelFunc
}

// Manager is the download session state machine.
type Manager struct {
	catalog  domain.CatalogClient
	transfer domain.TransferClient
	store    domain.Store
	recorder metrics.Recorder
	logger   *slog.Logger
	opts     Options

	newID func() string
	now   func() time.Time

	mu             sync.Mutex
	servers        []domain.Server
	selectedServer *domain.Server
	entries        []domain.ImageEntry
	filtered       []domain.ImageEntry
	selectedImage  *domain.ImageEntry
	filter         domain.Filter
	active         []*activeTask
	history        []domain.DownloadTask
	loadingServers int
	loadingCatalog int
	generation     uint64

	// persistMu orders history writes to the store
	persistMu sync.Mutex

	obsMu     sync.RWMutex
	observers map[int]domain.SessionObserver
	nextObs   int
}

// NewManager creates a session manager. store may be nil for a memory-only
// session; when set, history is restored from it.
func NewManager(
	catalog domain.CatalogClient,
	transfer domain.TransferClient,
	store domain.Store,
	logger *slog.Logger,
	opts Options,
) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}

	m := &Manager{
		catalog:   catalog,
		transfer:  transfer,
		store:     store,
		recorder:  recorder,
		logger:    logger,
		opts:      opts,
		newID:     uuid.NewString,
		now:       time.Now,
		filter:    domain.DefaultFilter(),
		observers: make(map[int]domain.SessionObserver),
	}

	if store != nil {
		if history, ok := store.GetHistory(); ok {
			m.history = history
			m.logger.Debug("restored download history", "count", len(history))
		}
	}

	return m
}

// Subscribe registers an observer and returns a func that removes it
func (m *Manager) Subscribe(observer domain.SessionObserver) func() {
	m.obsMu.Lock()
	id := m.nextObs
	m.nextObs++
	m.observers[id] = observer
	m.obsMu.Unlock()

	return func() {
		m.obsMu.Lock()
		delete(m.observers, id)
		m.obsMu.Unlock()
	}
}

// notify delivers event to observers in subscription order
func (m *Manager) notify(event domain.SessionEvent) {
	m.obsMu.RLock()
	observers := make([]domain.SessionObserver, 0, len(m.observers))
	for _, id := range slices.Sorted(maps.Keys(m.observers)) {
		observers = append(observers, m.observers[id])
	}
	m.obsMu.RUnlock()

	for _, o := range observers {
		o.OnEvent(event)
	}
}

// State returns a deep copy of the session state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := State{
		Servers:        append([]domain.Server(nil), m.servers...),
		Catalog:        append([]domain.ImageEntry(nil), m.entries...),
		Filtered:       append([]domain.ImageEntry(nil), m.filtered...),
		Filter:         m.filter,
		Active:         m.activeSnapshot(),
		History:        append([]domain.DownloadTask(nil), m.history...),
		LoadingServers: m.loadingServers > 0,
		LoadingCatalog: m.loadingCatalog > 0,
	}
	if m.selectedServer != nil {
		s := *m.selectedServer
		st.SelectedServer = &s
	}
	if m.selectedImage != nil {
		e := *m.selectedImage
		st.SelectedImage = &e
	}
	return st
}

// HasSelectedServer reports whether a server is selected
func (m *Manager) HasSelectedServer() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectedServer != nil
}

// HasSelectedImage reports whether an image is selected
func (m *Manager) HasSelectedImage() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectedImage != nil
}

// IsDownloading reports whether any task is in flight
func (m *Manager) IsDownloading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active) > 0
}

// Filtered returns the current filtered view
func (m *Manager) Filtered() []domain.ImageEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ImageEntry(nil), m.filtered...)
}

// ActiveTasks returns the in-flight tasks in submission order
func (m *Manager) ActiveTasks() []domain.DownloadTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeSnapshot()
}

// History returns terminal tasks, most recent first
func (m *Manager) History() []domain.DownloadTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.DownloadTask(nil), m.history...)
}

// activeSnapshot must be called with mu held
func (m *Manager) activeSnapshot() []domain.DownloadTask {
	tasks := make([]domain.DownloadTask, len(m.active))
	for i, a := range m.active {
		tasks[i] = a.task
	}
	return tasks
}
