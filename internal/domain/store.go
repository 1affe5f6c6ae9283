package domain

// Store persists preferences and session state (BoltDB + memory).
// Values are opaque serialized records; callers only see typed accessors.
type Store interface {
	// === Preferences ===
	GetPreferences() (Preferences, bool)
	SavePreferences(prefs Preferences) error

	// === Session ===
	GetLastServer() (string, bool)
	SaveLastServer(serverID string) error

	// === History (most recent first) ===
	GetHistory() ([]DownloadTask, bool)
	SaveHistory(history []DownloadTask) error

	// === Invalidation ===
	Remove(key string) error
	InvalidateAll()

	Close() error
}
