package mock

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysreinstaller/vhdget/internal/adapter"
	"github.com/sysreinstaller/vhdget/internal/domain"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	return NewClient(DefaultFixtures(), t.TempDir(), adapter.NullLogger(), WithStepDelay(time.Millisecond))
}

func TestDefaultCatalog(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	servers, err := c.ListServers(ctx)
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, "官方服务器", servers[0].Name)

	images, err := c.ListImages(ctx, servers[1])
	require.NoError(t, err)
	require.Len(t, images, 3)
	assert.Equal(t, "4.2 GB", images[0].FormattedSize())
	assert.Equal(t, "mock://2/windows10_pro_x64_22h2.vhd", images[0].DownloadURL)

	_, err = c.ListImages(ctx, domain.Server{ID: "9"})
	assert.ErrorIs(t, err, domain.ErrServerNotFound)
}

func TestDownloadSimulatesProgress(t *testing.T) {
	c := newTestClient(t)
	entry := DefaultFixtures().Images[AllServers][0]

	var reports []int64
	res, err := c.Download(context.Background(), entry, func(d, total int64) {
		assert.Equal(t, entry.Size, total)
		reports = append(reports, d)
	})
	require.NoError(t, err)

	assert.Len(t, reports, defaultSteps)
	assert.Equal(t, entry.Size, reports[len(reports)-1])
	assert.Equal(t, entry.Size, res.Bytes)
	assert.FileExists(t, res.Path)

	_, err = c.Download(context.Background(), entry, nil)
	assert.ErrorIs(t, err, domain.ErrFileExists)
}

func TestDownloadFailure(t *testing.T) {
	c := newTestClient(t)
	_, err := c.Download(context.Background(), domain.ImageEntry{
		Filename: "broken.vhd", DownloadURL: FailPrefix + "broken.vhd",
	}, nil)
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(c.dir, "broken.vhd"))
}

func TestDownloadCancelled(t *testing.T) {
	c := NewClient(DefaultFixtures(), t.TempDir(), adapter.NullLogger(), WithStepDelay(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Download(ctx, domain.ImageEntry{Filename: "a.vhd"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	doc := `
servers:
  - id: lab
    name: Lab mirror
    status: online
images:
  lab:
    - filename: debian12.vhd
      displayName: Debian 12
      system: Linux
      language: 英文(en-us)
      bootMode: Legacy
      size: 1073741824
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	f, err := LoadFixtures(path)
	require.NoError(t, err)

	c := NewClient(f, t.TempDir(), nil)
	images, err := c.ListImages(context.Background(), domain.Server{ID: "lab"})
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "Debian 12", images[0].DisplayName)
	assert.Equal(t, domain.BootModeLegacy, images[0].BootMode)
	assert.EqualValues(t, 1<<30, images[0].Size)
}

func TestLoadFixturesErrors(t *testing.T) {
	_, err := LoadFixtures(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("images: {}\n"), 0644))
	_, err = LoadFixtures(path)
	assert.Error(t, err)
}
