package session

import (
	"fmt"

	"github.com/sysreinstaller/vhdget/internal/domain"
)

// ApplyFilters re-derives the filtered view from the full catalog and drops
// the image selection if the selected entry no longer passes.
func (m *Manager) ApplyFilters() {
	m.mu.Lock()
	cleared := m.applyFiltersLocked()
	m.mu.Unlock()

	m.notify(domain.SessionEvent{Kind: domain.EventCatalogChanged})
	if cleared {
		m.notify(domain.SessionEvent{Kind: domain.EventImageSelected})
	}
}

// applyFiltersLocked must be called with mu held. It reports whether the
// image selection was cleared.
func (m *Manager) applyFiltersLocked() bool {
	filtered := make([]domain.ImageEntry, 0, len(m.entries))
	for _, e := range m.entries {
		if m.filter.Matches(e) {
			filtered = append(filtered, e)
		}
	}
	m.filtered = filtered

	if m.selectedImage != nil && indexOfFilename(filtered, m.selectedImage.Filename) < 0 {
		m.selectedImage = nil
		return true
	}
	return false
}

// SetFilter sets one predicate and re-derives the filtered view
func (m *Manager) SetFilter(key domain.FilterKey, value string) error {
	m.mu.Lock()
	switch key {
	case domain.FilterSystemType:
		m.filter.SystemType = value
	case domain.FilterLanguage:
		m.filter.Language = value
	case domain.FilterBootMode:
		m.filter.BootMode = value
	default:
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", domain.ErrUnknownFilter, key)
	}
	cleared := m.applyFiltersLocked()
	m.mu.Unlock()

	m.notify(domain.SessionEvent{Kind: domain.EventFilterChanged})
	m.notify(domain.SessionEvent{Kind: domain.EventCatalogChanged})
	if cleared {
		m.notify(domain.SessionEvent{Kind: domain.EventImageSelected})
	}
	return nil
}

// SetFilters replaces all three predicates at once. Empty values mean wildcard.
func (m *Manager) SetFilters(filter domain.Filter) {
	if filter.SystemType == "" {
		filter.SystemType = domain.FilterAll
	}
	if filter.Language == "" {
		filter.Language = domain.FilterAll
	}
	if filter.BootMode == "" {
		filter.BootMode = domain.BootModeAuto
	}

	m.mu.Lock()
	m.filter = filter
	cleared := m.applyFiltersLocked()
	m.mu.Unlock()

	m.notify(domain.SessionEvent{Kind: domain.EventFilterChanged})
	m.notify(domain.SessionEvent{Kind: domain.EventCatalogChanged})
	if cleared {
		m.notify(domain.SessionEvent{Kind: domain.EventImageSelected})
	}
}

// Filter returns the active predicates
func (m *Manager) Filter() domain.Filter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter
}

// SelectImage selects an entry of the filtered view by filename
func (m *Manager) SelectImage(filename string) error {
	m.mu.Lock()
	idx := indexOfFilename(m.filtered, filename)
	if idx < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrImageNotFound, filename)
	}
	e := m.filtered[idx]
	m.selectedImage = &e
	m.mu.Unlock()

	m.notify(domain.SessionEvent{Kind: domain.EventImageSelected})
	return nil
}

// SystemTypeOptions lists the wildcard followed by every distinct system tag
// in catalog order
func (m *Manager) SystemTypeOptions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return distinctTags(m.entries, func(e domain.ImageEntry) string { return e.System })
}

// LanguageOptions lists the wildcard followed by every distinct language tag
// in catalog order
func (m *Manager) LanguageOptions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return distinctTags(m.entries, func(e domain.ImageEntry) string { return e.Language })
}

// BootModeOptions is fixed
func (m *Manager) BootModeOptions() []string {
	return []string{domain.BootModeAuto, domain.BootModeUEFI, domain.BootModeLegacy}
}

func distinctTags(entries []domain.ImageEntry, tag func(domain.ImageEntry) string) []string {
	seen := map[string]bool{domain.FilterAll: true}
	options := []string{domain.FilterAll}
	for _, e := range entries {
		v := tag(e)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		options = append(options, v)
	}
	return options
}

func indexOfFilename(entries []domain.ImageEntry, filename string) int {
	for i, e := range entries {
		if e.Filename == filename {
			return i
		}
	}
	return -1
}
