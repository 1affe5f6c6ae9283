package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sysreinstaller/vhdget/internal/domain"
)

// LoadServers fetches the server list and replaces the current one. If no
// server is selected yet, the preferred server (or the first) is selected and
// its catalog loaded.
func (m *Manager) LoadServers(ctx context.Context) ([]domain.Server, error) {
	m.mu.Lock()
	m.loadingServers++
	m.mu.Unlock()
	m.notify(domain.SessionEvent{Kind: domain.EventLoadingChanged})

	defer func() {
		m.mu.Lock()
		m.loadingServers--
		m.mu.Unlock()
		m.notify(domain.SessionEvent{Kind: domain.EventLoadingChanged})
	}()

	start := time.Now()
	servers, err := m.catalog.ListServers(ctx)
	m.recorder.ObserveCatalogLoad("servers", time.Since(start), err == nil)
	if err != nil {
		m.logger.Error("failed to load servers", "error", err)
		return nil, catalogError(err)
	}

	m.mu.Lock()
	m.servers = append([]domain.Server(nil), servers...)
	var pick *domain.Server
	if m.selectedServer == nil && len(m.servers) > 0 {
		pick = m.preferredServer()
	}
	m.mu.Unlock()

	m.logger.Info("loaded servers", "count", len(servers))
	m.notify(domain.SessionEvent{Kind: domain.EventServersChanged})

	if pick != nil {
		if err := m.SelectServer(ctx, *pick); err != nil {
			return servers, err
		}
	}
	return servers, nil
}

// preferredServer must be called with mu held and a non-empty server list
func (m *Manager) preferredServer() *domain.Server {
	if id := m.opts.PreferredServerID; id != "" {
		for i := range m.servers {
			if m.servers[i].ID == id {
				s := m.servers[i]
				return &s
			}
		}
	}
	s := m.servers[0]
	return &s
}

// SelectServer makes server current, drops the previous catalog and image
// selection, then loads the new catalog. Responses for earlier selections
// that arrive late are discarded.
func (m *Manager) SelectServer(ctx context.Context, server domain.Server) error {
	m.mu.Lock()
	s := server
	m.selectedServer = &s
	m.entries = nil
	m.filtered = nil
	m.selectedImage = nil
	m.generation++
	m.mu.Unlock()

	m.logger.Debug("selected server", "serverID", server.ID, "name", server.Name)
	m.notify(domain.SessionEvent{Kind: domain.EventServerSelected})

	if m.store != nil {
		if err := m.store.SaveLastServer(server.ID); err != nil {
			m.logger.Error("failed to save last server", "error", err, "serverID", server.ID)
		}
	}

	return m.LoadCatalog(ctx)
}

// SelectServerByID selects a server from the loaded list
func (m *Manager) SelectServerByID(ctx context.Context, serverID string) error {
	m.mu.Lock()
	var found *domain.Server
	for i := range m.servers {
		if m.servers[i].ID == serverID {
			s := m.servers[i]
			found = &s
			break
		}
	}
	m.mu.Unlock()

	if found == nil {
		return fmt.Errorf("%w: %s", domain.ErrServerNotFound, serverID)
	}
	return m.SelectServer(ctx, *found)
}

// LoadCatalog fetches the images of the selected server and re-derives the
// filtered view. It is a no-op when no server is selected. On failure the
// last good catalog is kept.
func (m *Manager) LoadCatalog(ctx context.Context) error {
	m.mu.Lock()
	if m.selectedServer == nil {
		m.mu.Unlock()
		return nil
	}
	server := *m.selectedServer
	generation := m.generation
	m.loadingCatalog++
	m.mu.Unlock()
	m.notify(domain.SessionEvent{Kind: domain.EventLoadingChanged})

	defer func() {
		m.mu.Lock()
		m.loadingCatalog--
		m.mu.Unlock()
		m.notify(domain.SessionEvent{Kind: domain.EventLoadingChanged})
	}()

	start := time.Now()
	entries, err := m.catalog.ListImages(ctx, server)
	m.recorder.ObserveCatalogLoad("images", time.Since(start), err == nil)
	if err != nil {
		m.logger.Error("failed to load catalog", "error", err, "serverID", server.ID)
		return catalogError(err)
	}

	m.mu.Lock()
	if generation != m.generation {
		m.mu.Unlock()
		m.logger.Debug("discarding stale catalog", "serverID", server.ID, "generation", generation)
		return nil
	}
	m.entries = append([]domain.ImageEntry(nil), entries...)
	cleared := m.applyFiltersLocked()
	m.mu.Unlock()

	m.logger.Info("loaded catalog", "serverID", server.ID, "count", len(entries))
	m.notify(domain.SessionEvent{Kind: domain.EventCatalogChanged})
	if cleared {
		m.notify(domain.SessionEvent{Kind: domain.EventImageSelected})
	}
	return nil
}

// catalogError tags err as ErrCatalogUnavailable while keeping the cause
func catalogError(err error) error {
	if errors.Is(err, domain.ErrCatalogUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
}
