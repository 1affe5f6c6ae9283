package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysreinstaller/vhdget/internal/domain"
)

func sampleHistory() []domain.DownloadTask {
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return []domain.DownloadTask{
		{
			ID: "t2", Filename: "win11.vhd", Status: domain.TaskStatusFailed,
			Error: "unexpected EOF", StartedAt: started, FinishedAt: started.Add(time.Minute),
		},
		{
			ID: "t1", Filename: "win10.vhd", Status: domain.TaskStatusCompleted, Progress: 100,
			StartedAt: started, FinishedAt: started.Add(2 * time.Minute), OutputPath: "/d/win10.vhd", Bytes: 42,
		},
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	const src = "https://autoinstaller.example/api"

	s, err := New(dir, src)
	require.NoError(t, err)

	prefs := domain.DefaultPreferences()
	prefs.Theme = domain.ThemeDark
	require.NoError(t, s.SavePreferences(prefs))
	require.NoError(t, s.SaveLastServer("hk-1"))
	require.NoError(t, s.SaveHistory(sampleHistory()))
	require.NoError(t, s.Close())

	reopened, err := New(dir, src+"/")
	require.NoError(t, err)
	defer reopened.Close()

	got, ok := reopened.GetPreferences()
	require.True(t, ok)
	assert.Equal(t, prefs, got)

	id, ok := reopened.GetLastServer()
	require.True(t, ok)
	assert.Equal(t, "hk-1", id)

	history, ok := reopened.GetHistory()
	require.True(t, ok)
	require.Len(t, history, 2)
	assert.Equal(t, "t2", history[0].ID)
	assert.True(t, history[1].FinishedAt.Equal(sampleHistory()[1].FinishedAt))
}

func TestSourcesAreIsolated(t *testing.T) {
	dir := t.TempDir()

	a, err := New(dir, "https://a.example")
	require.NoError(t, err)
	defer a.Close()
	b, err := New(dir, "https://b.example")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.SaveLastServer("s1"))
	_, ok := b.GetLastServer()
	assert.False(t, ok)
	assert.NotEqual(t, a.Path(), b.Path())
}

func TestMemoryOnly(t *testing.T) {
	s, err := New("", "")
	require.NoError(t, err)
	assert.Empty(t, s.Path())

	_, ok := s.GetPreferences()
	assert.False(t, ok)

	require.NoError(t, s.SaveHistory(sampleHistory()))
	history, ok := s.GetHistory()
	require.True(t, ok)
	assert.Len(t, history, 2)
	assert.NoError(t, s.Close())
}

func TestSaveNilHistoryClears(t *testing.T) {
	s, err := New(t.TempDir(), "")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveHistory(sampleHistory()))
	require.NoError(t, s.SaveHistory(nil))

	_, ok := s.GetHistory()
	assert.False(t, ok)
}

func TestRemove(t *testing.T) {
	s, err := New(t.TempDir(), "")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveLastServer("hk-1"))
	require.NoError(t, s.SavePreferences(domain.DefaultPreferences()))

	require.NoError(t, s.Remove(KeyLastServer))
	_, ok := s.GetLastServer()
	assert.False(t, ok)

	_, ok = s.GetPreferences()
	assert.True(t, ok, "other keys untouched")

	assert.Error(t, s.Remove("bogus"))
}

func TestInvalidateAll(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, "")
	require.NoError(t, err)

	require.NoError(t, s.SavePreferences(domain.DefaultPreferences()))
	require.NoError(t, s.SaveHistory(sampleHistory()))
	s.InvalidateAll()

	_, ok := s.GetPreferences()
	assert.False(t, ok)
	_, ok = s.GetHistory()
	assert.False(t, ok)
	require.NoError(t, s.Close())

	reopened, err := New(dir, "")
	require.NoError(t, err)
	defer reopened.Close()
	_, ok = reopened.GetHistory()
	assert.False(t, ok, "invalidation reaches disk")
}
