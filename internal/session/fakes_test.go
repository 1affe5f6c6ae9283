package session

import (
	"context"
	"sync"

	"github.com/sysreinstaller/vhdget/internal/adapter"
	"github.com/sysreinstaller/vhdget/internal/domain"
)

// fakeCatalog serves fixed servers and per-server images. A gate registered
// for a server blocks ListImages until it is closed.
type fakeCatalog struct {
	mu         sync.Mutex
	servers    []domain.Server
	images     map[string][]domain.ImageEntry
	serversErr error
	imagesErr  error
	gates      map[string]chan struct{}
	imageCalls []string
}

func newFakeCatalog(servers []domain.Server, images map[string][]domain.ImageEntry) *fakeCatalog {
	return &fakeCatalog{
		servers: servers,
		images:  images,
		gates:   make(map[string]chan struct{}),
	}
}

func (f *fakeCatalog) block(serverID string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[serverID] = ch
	return ch
}

func (f *fakeCatalog) setImagesErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imagesErr = err
}

func (f *fakeCatalog) setImages(serverID string, images ...domain.ImageEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[serverID] = images
}

func (f *fakeCatalog) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.imageCalls)
}

func (f *fakeCatalog) ListServers(ctx context.Context) ([]domain.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.serversErr != nil {
		return nil, f.serversErr
	}
	return append([]domain.Server(nil), f.servers...), nil
}

func (f *fakeCatalog) ListImages(ctx context.Context, server domain.Server) ([]domain.ImageEntry, error) {
	f.mu.Lock()
	f.imageCalls = append(f.imageCalls, server.ID)
	gate := f.gates[server.ID]
	delete(f.gates, server.ID)
	err := f.imagesErr
	images := append([]domain.ImageEntry(nil), f.images[server.ID]...)
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return images, nil
}

// fakeTransfer completes immediately unless a gate is registered for the
// filename. Sending an error on the gate fails the transfer, closing it
// succeeds.
type fakeTransfer struct {
	mu    sync.Mutex
	gates map[string]chan error
	calls []string
	size  int64
}

func newFakeTransfer() *fakeTransfer {
	return &fakeTransfer{gates: make(map[string]chan error)}
}

func (f *fakeTransfer) block(filename string) chan error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan error, 1)
	f.gates[filename] = ch
	return ch
}

func (f *fakeTransfer) Download(ctx context.Context, entry domain.ImageEntry, progress domain.ProgressFunc) (domain.DownloadResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, entry.Filename)
	gate := f.gates[entry.Filename]
	delete(f.gates, entry.Filename)
	size := f.size
	f.mu.Unlock()

	if progress != nil && size > 0 {
		progress(size/2, size)
		progress(size, size)
	}
	if gate != nil {
		select {
		case err := <-gate:
			if err != nil {
				return domain.DownloadResult{}, err
			}
		case <-ctx.Done():
			return domain.DownloadResult{}, ctx.Err()
		}
	}
	return domain.DownloadResult{Path: "/downloads/" + entry.Filename, Bytes: size}, nil
}

// memStore is an in-memory domain.Store
type memStore struct {
	mu         sync.Mutex
	prefs      *domain.Preferences
	lastServer string
	history    []domain.DownloadTask
	saves      int
}

func (s *memStore) GetPreferences() (domain.Preferences, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prefs == nil {
		return domain.Preferences{}, false
	}
	return *s.prefs, true
}

func (s *memStore) SavePreferences(prefs domain.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = &prefs
	return nil
}

func (s *memStore) GetLastServer() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastServer, s.lastServer != ""
}

func (s *memStore) SaveLastServer(serverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastServer = serverID
	return nil
}

func (s *memStore) GetHistory() ([]domain.DownloadTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history == nil {
		return nil, false
	}
	return append([]domain.DownloadTask(nil), s.history...), true
}

func (s *memStore) SaveHistory(history []domain.DownloadTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append([]domain.DownloadTask(nil), history...)
	s.saves++
	return nil
}

func (s *memStore) Remove(string) error { return nil }
func (s *memStore) InvalidateAll()      {}
func (s *memStore) Close() error        { return nil }

// slowStore blocks the first SaveHistory until release is closed
type slowStore struct {
	*memStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newSlowStore() *slowStore {
	return &slowStore{
		memStore: &memStore{},
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
}

func (s *slowStore) SaveHistory(history []domain.DownloadTask) error {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.release
	}
	return s.memStore.SaveHistory(history)
}

// panicTransfer panics on its first download and succeeds afterwards
type panicTransfer struct {
	mu       sync.Mutex
	panicked bool
}

func (p *panicTransfer) Download(ctx context.Context, entry domain.ImageEntry, progress domain.ProgressFunc) (domain.DownloadResult, error) {
	p.mu.Lock()
	first := !p.panicked
	p.panicked = true
	p.mu.Unlock()

	if first {
		panic("transfer crashed")
	}
	return domain.DownloadResult{Path: "/downloads/" + entry.Filename}, nil
}

// eventLog records every event an observer receives
type eventLog struct {
	mu     sync.Mutex
	events []domain.SessionEvent
}

func (l *eventLog) OnEvent(e domain.SessionEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) kinds() []domain.EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	kinds := make([]domain.EventKind, len(l.events))
	for i, e := range l.events {
		kinds[i] = e.Kind
	}
	return kinds
}

func (l *eventLog) ofKind(kind domain.EventKind) []domain.SessionEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.SessionEvent
	for _, e := range l.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

var (
	serverA = domain.Server{ID: "a", Name: "Server A", Status: domain.ServerStatusOnline}
	serverB = domain.Server{ID: "b", Name: "Server B", Status: domain.ServerStatusOnline}

	win10 = domain.ImageEntry{
		Filename: "win10.vhd", DisplayName: "Windows 10 Pro", System: "Windows",
		Language: "中文(zh-cn)", BootMode: "UEFI", DownloadURL: "https://example.test/win10.vhd",
	}
	win11 = domain.ImageEntry{
		Filename: "win11.vhd", DisplayName: "Windows 11 Pro", System: "Windows",
		Language: "英文(en-us)", BootMode: "UEFI", DownloadURL: "https://example.test/win11.vhd",
	}
	server2022 = domain.ImageEntry{
		Filename: "server2022.vhd", DisplayName: "Windows Server 2022 Datacenter", System: "Windows Server",
		Language: "中文(zh-cn)", BootMode: "Legacy", DownloadURL: "https://example.test/server2022.vhd",
	}
)

func newTestManager(t interface{ Helper() }, catalog *fakeCatalog, transfer *fakeTransfer, store domain.Store, opts Options) *Manager {
	t.Helper()
	return NewManager(catalog, transfer, store, adapter.NullLogger(), opts)
}
