// Package settings manages persisted user preferences: the UI theme and the
// driver backup configuration.
package settings

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sysreinstaller/vhdget/internal/domain"
)

// Keys accepted by Set
const (
	KeyTheme             = "theme"
	KeyBackupCompression = "backup.enable_compression"
	KeyBackupLocation    = "backup.location"
	KeyBackupAutoCleanup = "backup.auto_cleanup"
	KeyBackupMaxBackups  = "backup.max_backups"
)

// Service orchestrates preference reads and writes against the store.
type Service struct {
	store  domain.Store
	logger *slog.Logger

	mu    sync.RWMutex
	prefs domain.Preferences
}

// NewService creates a settings service holding the defaults until Load is called.
func NewService(store domain.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger, prefs: domain.DefaultPreferences()}
}

// Load reads preferences from the store. Missing or partial records are
// filled from the defaults.
func (s *Service) Load() domain.Preferences {
	prefs := domain.DefaultPreferences()
	if stored, ok := s.store.GetPreferences(); ok {
		prefs = mergeDefaults(stored)
		s.logger.Debug("loaded preferences", "theme", prefs.Theme)
	} else {
		s.logger.Debug("no stored preferences, using defaults")
	}

	s.mu.Lock()
	s.prefs = prefs
	s.mu.Unlock()
	return prefs
}

func mergeDefaults(p domain.Preferences) domain.Preferences {
	def := domain.DefaultPreferences()
	if p.Theme != domain.ThemeLight && p.Theme != domain.ThemeDark {
		p.Theme = def.Theme
	}
	if p.Backup.BackupLocation == "" {
		p.Backup.BackupLocation = def.Backup.BackupLocation
	}
	if p.Backup.MaxBackups < 1 {
		p.Backup.MaxBackups = def.Backup.MaxBackups
	}
	return p
}

// Preferences returns the current preferences
func (s *Service) Preferences() domain.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

func (s *Service) Theme() domain.Theme {
	return s.Preferences().Theme
}

func (s *Service) Backup() domain.BackupConfig {
	return s.Preferences().Backup
}

// SetTheme persists a new theme
func (s *Service) SetTheme(theme domain.Theme) error {
	if err := validateTheme(theme); err != nil {
		return err
	}
	return s.update(func(p *domain.Preferences) error {
		p.Theme = theme
		return nil
	})
}

// UpdateBackup validates and persists the backup configuration
func (s *Service) UpdateBackup(cfg domain.BackupConfig) error {
	if err := validateBackup(cfg); err != nil {
		return err
	}
	return s.update(func(p *domain.Preferences) error {
		p.Backup = cfg
		return nil
	})
}

// Set updates one preference from its string form, as typed on the command
// line. The current value is read and replaced in one step.
func (s *Service) Set(key, value string) error {
	switch key {
	case KeyTheme:
		return s.SetTheme(domain.Theme(strings.ToLower(value)))
	case KeyBackupLocation:
		return s.updateBackup(func(b *domain.BackupConfig) { b.BackupLocation = value })
	case KeyBackupCompression, KeyBackupAutoCleanup:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", domain.ErrInvalidSetting, key, err)
		}
		if key == KeyBackupCompression {
			return s.updateBackup(func(b *domain.BackupConfig) { b.EnableCompression = v })
		}
		return s.updateBackup(func(b *domain.BackupConfig) { b.AutoCleanup = v })
	case KeyBackupMaxBackups:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", domain.ErrInvalidSetting, key, err)
		}
		return s.updateBackup(func(b *domain.BackupConfig) { b.MaxBackups = n })
	default:
		return fmt.Errorf("%w: unknown key %q (valid: %s)", domain.ErrInvalidSetting, key, strings.Join(Keys(), ", "))
	}
}

// Reset restores the default preferences and persists them
func (s *Service) Reset() error {
	return s.update(func(p *domain.Preferences) error {
		*p = domain.DefaultPreferences()
		return nil
	})
}

// ResetAll wipes everything the store holds (preferences, last server and
// download history) and falls back to the default preferences.
func (s *Service) ResetAll() {
	s.mu.Lock()
	s.store.InvalidateAll()
	s.prefs = domain.DefaultPreferences()
	s.mu.Unlock()

	s.logger.Info("all stored state cleared")
}

// Keys lists the keys accepted by Set
func Keys() []string {
	keys := []string{KeyTheme, KeyBackupCompression, KeyBackupLocation, KeyBackupAutoCleanup, KeyBackupMaxBackups}
	sort.Strings(keys)
	return keys
}

// update applies mutate to a copy of the preferences and persists the
// result. The read, the change and the write happen under one lock.
func (s *Service) update(mutate func(*domain.Preferences) error) error {
	s.mu.Lock()
	next := s.prefs
	if err := mutate(&next); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.store.SavePreferences(next); err != nil {
		s.mu.Unlock()
		s.logger.Error("failed to save preferences", "error", err)
		return err
	}
	s.prefs = next
	s.mu.Unlock()

	s.logger.Info("preferences updated", "theme", next.Theme, "backupLocation", next.Backup.BackupLocation)
	return nil
}

func (s *Service) updateBackup(change func(*domain.BackupConfig)) error {
	return s.update(func(p *domain.Preferences) error {
		b := p.Backup
		change(&b)
		if err := validateBackup(b); err != nil {
			return err
		}
		p.Backup = b
		return nil
	})
}

func validateTheme(theme domain.Theme) error {
	if theme != domain.ThemeLight && theme != domain.ThemeDark {
		return fmt.Errorf("%w: theme %q", domain.ErrInvalidSetting, theme)
	}
	return nil
}

func validateBackup(cfg domain.BackupConfig) error {
	if strings.TrimSpace(cfg.BackupLocation) == "" {
		return fmt.Errorf("%w: backup location is empty", domain.ErrInvalidSetting)
	}
	if cfg.MaxBackups < 1 {
		return fmt.Errorf("%w: max backups must be at least 1, got %d", domain.ErrInvalidSetting, cfg.MaxBackups)
	}
	return nil
}
