package domain

import (
	"time"

	"github.com/dustin/go-humanize"
)

// Wildcard filter values. A predicate set to its wildcard matches every entry.
const (
	FilterAll      = "全部"
	BootModeAuto   = "自动检测"
	BootModeUEFI   = "UEFI"
	BootModeLegacy = "Legacy"
)

// ServerStatus is the reachability of a catalog server
type ServerStatus string

const (
	ServerStatusOnline  ServerStatus = "online"
	ServerStatusOffline ServerStatus = "offline"
	ServerStatusUnknown ServerStatus = ""
)

// Server is a catalog source the user can pick images from.
// Servers are replaced wholesale whenever the list is refreshed.
type Server struct {
	ID       string       `json:"id" yaml:"id"`
	Name     string       `json:"name" yaml:"name"`
	Endpoint string       `json:"endpoint" yaml:"endpoint"`
	Location string       `json:"location,omitempty" yaml:"location"`
	Status   ServerStatus `json:"status" yaml:"status"`
}

// IsOnline reports whether the server was reachable when listed
func (s Server) IsOnline() bool {
	return s.Status == ServerStatusOnline
}

// ImageEntry is a downloadable VHD/ISO record. Filename is unique within a catalog.
type ImageEntry struct {
	Filename    string `json:"filename" yaml:"filename"`
	DisplayName string `json:"displayName" yaml:"displayName"`
	System      string `json:"system" yaml:"system"`
	Version     string `json:"version,omitempty" yaml:"version"`
	Language    string `json:"language" yaml:"language"`
	BootMode    string `json:"bootMode" yaml:"bootMode"`
	DownloadURL string `json:"downloadURL" yaml:"downloadURL"`
	Size        int64  `json:"size" yaml:"size"` // bytes, 0 if unknown
}

// Title returns the display name, falling back to the filename
func (e ImageEntry) Title() string {
	if e.DisplayName != "" {
		return e.DisplayName
	}
	return e.Filename
}

// FormattedSize renders Size for humans ("4.2 GB"), or "未知" when unknown
func (e ImageEntry) FormattedSize() string {
	if e.Size <= 0 {
		return "未知"
	}
	return humanize.Bytes(uint64(e.Size))
}

// FilterKey names one of the three catalog predicates
type FilterKey string

const (
	FilterSystemType FilterKey = "systemType"
	FilterLanguage   FilterKey = "language"
	FilterBootMode   FilterKey = "bootMode"
)

// Filter holds the active catalog predicates
type Filter struct {
	SystemType string `json:"systemType"`
	Language   string `json:"language"`
	BootMode   string `json:"bootMode"`
}

// DefaultFilter returns a filter that matches every entry
func DefaultFilter() Filter {
	return Filter{
		SystemType: FilterAll,
		Language:   FilterAll,
		BootMode:   BootModeAuto,
	}
}

// Matches reports whether entry satisfies all three predicates
func (f Filter) Matches(entry ImageEntry) bool {
	if f.SystemType != FilterAll && f.SystemType != "" && entry.System != f.SystemType {
		return false
	}
	if f.Language != FilterAll && f.Language != "" && entry.Language != f.Language {
		return false
	}
	if f.BootMode != BootModeAuto && f.BootMode != "" && entry.BootMode != f.BootMode {
		return false
	}
	return true
}

// TaskStatus is the lifecycle state of a download attempt
type TaskStatus string

const (
	TaskStatusQueued      TaskStatus = "queued"
	TaskStatusDownloading TaskStatus = "downloading"
	TaskStatusCompleted   TaskStatus = "completed"
	TaskStatusFailed      TaskStatus = "failed"
	TaskStatusCancelled   TaskStatus = "cancelled"
)

// String returns the string representation of TaskStatus
func (ts TaskStatus) String() string {
	return string(ts)
}

// IsActive returns true while the task occupies its filename slot
func (ts TaskStatus) IsActive() bool {
	return ts == TaskStatusQueued || ts == TaskStatusDownloading
}

// IsTerminal returns true once the task can no longer change
func (ts TaskStatus) IsTerminal() bool {
	return ts == TaskStatusCompleted || ts == TaskStatusFailed || ts == TaskStatusCancelled
}

// DownloadTask tracks a single download attempt
type DownloadTask struct {
	ID          string     `json:"id"`
	Filename    string     `json:"filename"`
	DisplayName string     `json:"displayName"`
	DownloadURL string     `json:"downloadURL"`
	Status      TaskStatus `json:"status"`
	Progress    int        `json:"progress"`        // 0 to 100
	Error       string     `json:"error,omitempty"` // set iff Status == failed
	StartedAt   time.Time  `json:"startedAt"`
	FinishedAt  time.Time  `json:"finishedAt,omitzero"` // set iff terminal
	OutputPath  string     `json:"outputPath,omitempty"`
	Bytes       int64      `json:"bytes,omitempty"`
}

// Entry rebuilds the minimal image reference needed to download this task again
func (t DownloadTask) Entry() ImageEntry {
	return ImageEntry{
		Filename:    t.Filename,
		DisplayName: t.DisplayName,
		DownloadURL: t.DownloadURL,
	}
}

// Duration returns how long the task ran, or time since start if still active
func (t DownloadTask) Duration() time.Duration {
	if t.FinishedAt.IsZero() {
		return time.Since(t.StartedAt)
	}
	return t.FinishedAt.Sub(t.StartedAt)
}

// DownloadResult is what a transfer reports on success
type DownloadResult struct {
	Path  string
	Bytes int64
}

// LocalImage is an image file already present in the download directory
type LocalImage struct {
	Filename string
	Path     string
	Size     int64
	ModTime  time.Time
}

// ProgressFunc reports transfer progress: (downloaded, total). total is 0 when unknown.
type ProgressFunc func(downloaded, total int64)

// Theme is the UI colour scheme preference
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// BackupConfig configures the driver backup tool
type BackupConfig struct {
	EnableCompression bool   `json:"enableCompression"`
	BackupLocation    string `json:"backupLocation"`
	AutoCleanup       bool   `json:"autoCleanup"`
	MaxBackups        int    `json:"maxBackups"`
}

// Preferences is the persisted user configuration
type Preferences struct {
	Theme  Theme        `json:"theme"`
	Backup BackupConfig `json:"backup"`
}

// DefaultPreferences returns the preferences used before anything is saved
func DefaultPreferences() Preferences {
	return Preferences{
		Theme: ThemeLight,
		Backup: BackupConfig{
			EnableCompression: true,
			BackupLocation:    "driver_backup",
			AutoCleanup:       false,
			MaxBackups:        10,
		},
	}
}
