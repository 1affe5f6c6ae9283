package settings

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysreinstaller/vhdget/internal/adapter"
	"github.com/sysreinstaller/vhdget/internal/domain"
	"github.com/sysreinstaller/vhdget/internal/store"
)

func newService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st, err := store.New("", "")
	require.NoError(t, err)
	return NewService(st, adapter.NullLogger()), st
}

func TestLoadDefaults(t *testing.T) {
	svc, _ := newService(t)

	prefs := svc.Load()
	assert.Equal(t, domain.DefaultPreferences(), prefs)
	assert.Equal(t, domain.ThemeLight, svc.Theme())
	assert.Equal(t, "driver_backup", svc.Backup().BackupLocation)
	assert.Equal(t, 10, svc.Backup().MaxBackups)
	assert.True(t, svc.Backup().EnableCompression)
	assert.False(t, svc.Backup().AutoCleanup)
}

func TestLoadFillsMissingFields(t *testing.T) {
	svc, st := newService(t)
	require.NoError(t, st.SavePreferences(domain.Preferences{Theme: domain.ThemeDark}))

	prefs := svc.Load()
	assert.Equal(t, domain.ThemeDark, prefs.Theme)
	assert.Equal(t, "driver_backup", prefs.Backup.BackupLocation)
	assert.Equal(t, 10, prefs.Backup.MaxBackups)
}

func TestSetThemePersists(t *testing.T) {
	svc, st := newService(t)
	svc.Load()

	require.NoError(t, svc.SetTheme(domain.ThemeDark))
	stored, ok := st.GetPreferences()
	require.True(t, ok)
	assert.Equal(t, domain.ThemeDark, stored.Theme)

	err := svc.SetTheme("solarized")
	assert.ErrorIs(t, err, domain.ErrInvalidSetting)
	assert.Equal(t, domain.ThemeDark, svc.Theme())
}

func TestUpdateBackupValidates(t *testing.T) {
	svc, _ := newService(t)
	svc.Load()

	err := svc.UpdateBackup(domain.BackupConfig{BackupLocation: "", MaxBackups: 3})
	assert.ErrorIs(t, err, domain.ErrInvalidSetting)

	err = svc.UpdateBackup(domain.BackupConfig{BackupLocation: "x", MaxBackups: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidSetting)

	cfg := domain.BackupConfig{BackupLocation: "D:/backup", MaxBackups: 5, AutoCleanup: true}
	require.NoError(t, svc.UpdateBackup(cfg))
	assert.Equal(t, cfg, svc.Backup())
}

func TestSetFromStrings(t *testing.T) {
	svc, _ := newService(t)
	svc.Load()

	require.NoError(t, svc.Set(KeyTheme, "DARK"))
	require.NoError(t, svc.Set(KeyBackupCompression, "false"))
	require.NoError(t, svc.Set(KeyBackupAutoCleanup, "true"))
	require.NoError(t, svc.Set(KeyBackupMaxBackups, "4"))
	require.NoError(t, svc.Set(KeyBackupLocation, "backups"))

	prefs := svc.Preferences()
	assert.Equal(t, domain.ThemeDark, prefs.Theme)
	assert.Equal(t, domain.BackupConfig{
		EnableCompression: false,
		BackupLocation:    "backups",
		AutoCleanup:       true,
		MaxBackups:        4,
	}, prefs.Backup)

	assert.ErrorIs(t, svc.Set(KeyBackupMaxBackups, "many"), domain.ErrInvalidSetting)
	assert.ErrorIs(t, svc.Set(KeyBackupAutoCleanup, "perhaps"), domain.ErrInvalidSetting)
	assert.ErrorIs(t, svc.Set("font", "mono"), domain.ErrInvalidSetting)
}

func TestReset(t *testing.T) {
	svc, _ := newService(t)
	svc.Load()
	require.NoError(t, svc.SetTheme(domain.ThemeDark))

	require.NoError(t, svc.Reset())
	assert.Equal(t, domain.DefaultPreferences(), svc.Preferences())
}

func TestConcurrentSetKeepsEveryChange(t *testing.T) {
	svc, st := newService(t)
	svc.Load()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.Set(KeyBackupMaxBackups, "7"))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.Set(KeyBackupLocation, "E:/drivers"))
		}()
	}
	wg.Wait()

	backup := svc.Backup()
	assert.Equal(t, 7, backup.MaxBackups)
	assert.Equal(t, "E:/drivers", backup.BackupLocation)

	stored, ok := st.GetPreferences()
	require.True(t, ok)
	assert.Equal(t, backup, stored.Backup)
}

func TestSetRejectsInvalidBackupWithoutSaving(t *testing.T) {
	svc, st := newService(t)
	svc.Load()
	require.NoError(t, svc.Set(KeyBackupMaxBackups, "3"))

	assert.ErrorIs(t, svc.Set(KeyBackupMaxBackups, "0"), domain.ErrInvalidSetting)
	assert.ErrorIs(t, svc.Set(KeyBackupLocation, "  "), domain.ErrInvalidSetting)

	assert.Equal(t, 3, svc.Backup().MaxBackups)
	stored, ok := st.GetPreferences()
	require.True(t, ok)
	assert.Equal(t, 3, stored.Backup.MaxBackups)
	assert.Equal(t, "driver_backup", stored.Backup.BackupLocation)
}

func TestResetAllClearsStore(t *testing.T) {
	svc, st := newService(t)
	svc.Load()
	require.NoError(t, svc.SetTheme(domain.ThemeDark))
	require.NoError(t, st.SaveLastServer("cn"))
	require.NoError(t, st.SaveHistory([]domain.DownloadTask{{ID: "1", Filename: "win10.vhd"}}))

	svc.ResetAll()

	assert.Equal(t, domain.DefaultPreferences(), svc.Preferences())
	_, ok := st.GetPreferences()
	assert.False(t, ok)
	_, ok = st.GetLastServer()
	assert.False(t, ok)
	_, ok = st.GetHistory()
	assert.False(t, ok)
}
