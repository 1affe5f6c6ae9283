package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysreinstaller/vhdget/internal/adapter"
	"github.com/sysreinstaller/vhdget/internal/adapter/source/mock"
)

func TestNewClientMock(t *testing.T) {
	cfg := adapter.DefaultConfig()
	cfg.Source.Type = adapter.SourceTypeMock
	cfg.Download.Dir = t.TempDir()

	src, err := NewClient(cfg, adapter.NullLogger())
	require.NoError(t, err)
	assert.IsType(t, &mock.Client{}, src)

	servers, err := src.ListServers(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, servers)
}

func TestNewClientHTTP(t *testing.T) {
	cfg := adapter.DefaultConfig()
	cfg.Download.Dir = t.TempDir()

	src, err := NewClient(cfg, nil)
	require.NoError(t, err)
	hs, ok := src.(*httpSource)
	require.True(t, ok)
	assert.NotNil(t, hs.CatalogClient)
	assert.NotNil(t, hs.TransferClient)
}

func TestNewClientErrors(t *testing.T) {
	_, err := NewClient(nil, nil)
	assert.Error(t, err)

	cfg := adapter.DefaultConfig()
	cfg.Source.Type = "ftp"
	_, err = NewClient(cfg, nil)
	assert.Error(t, err)

	cfg = adapter.DefaultConfig()
	cfg.Source.BaseURL = ""
	_, err = NewClient(cfg, nil)
	assert.Error(t, err)

	cfg = adapter.DefaultConfig()
	cfg.Source.Type = adapter.SourceTypeMock
	cfg.Source.Fixtures = "/nonexistent/fixtures.yaml"
	_, err = NewClient(cfg, nil)
	assert.Error(t, err)
}
