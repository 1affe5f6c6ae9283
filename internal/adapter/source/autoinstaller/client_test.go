package autoinstaller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysreinstaller/vhdget/internal/domain"
)

const listing = `{
  "success": true,
  "data": {
    "servers": [
      {
        "id": "bj",
        "name": "官方服务器",
        "location": "北京",
        "download_urls": {
          "win11_pro_x64_23h2_zh-cn_uefi_20240101_120000.vhd": "https://dl.example/bj/win11.vhd",
          "windows_server_2022_datacenter_en-us_legacy.iso": {"url": "https://dl.example/bj/ws2022.iso", "size": 4187593113}
        }
      },
      {
        "id": "sh",
        "name": "镜像服务器",
        "location": "上海",
        "status": "offline",
        "download_urls": {}
      }
    ]
  }
}`

func newTestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/autoinstaller/iso-download/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestListServers(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, listing)
	c := NewClient(srv.URL+"/api/autoinstaller/", 0, nil)

	servers, err := c.ListServers(context.Background())
	require.NoError(t, err)
	require.Len(t, servers, 2)

	assert.Equal(t, domain.Server{
		ID:       "bj",
		Name:     "官方服务器",
		Endpoint: srv.URL + "/api/autoinstaller",
		Location: "北京",
		Status:   domain.ServerStatusOnline,
	}, servers[0])
	assert.False(t, servers[1].IsOnline())
}

func TestListImages(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, listing)
	c := NewClient(srv.URL+"/api/autoinstaller", 0, nil)

	entries, err := c.ListImages(context.Background(), domain.Server{ID: "bj"})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	win := entries[0]
	assert.Equal(t, "win11_pro_x64_23h2_zh-cn_uefi_20240101_120000.vhd", win.Filename)
	assert.Equal(t, "https://dl.example/bj/win11.vhd", win.DownloadURL)
	assert.Equal(t, SystemWindows, win.System)
	assert.Equal(t, LanguageChinese, win.Language)
	assert.Equal(t, domain.BootModeUEFI, win.BootMode)
	assert.Zero(t, win.Size)

	ws := entries[1]
	assert.Equal(t, SystemWindowsServer, ws.System)
	assert.Equal(t, "2022", ws.Version)
	assert.EqualValues(t, 4187593113, ws.Size)
}

func TestListImagesUnknownServer(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, listing)
	c := NewClient(srv.URL+"/api/autoinstaller", 0, nil)

	_, err := c.ListImages(context.Background(), domain.Server{ID: "gz"})
	assert.ErrorIs(t, err, domain.ErrServerNotFound)
}

func TestEnvelopeFailure(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `{"success": false, "error": "maintenance"}`)
	c := NewClient(srv.URL+"/api/autoinstaller", 0, nil)

	_, err := c.ListServers(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)
	assert.Contains(t, err.Error(), "maintenance")
}

func TestHTTPErrorStatus(t *testing.T) {
	srv := newTestServer(t, http.StatusBadGateway, "upstream down")
	c := NewClient(srv.URL+"/api/autoinstaller", 0, nil)

	_, err := c.ListServers(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)
	assert.Contains(t, err.Error(), "502")
}

func TestMalformedBody(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, "<html>")
	c := NewClient(srv.URL+"/api/autoinstaller", 0, nil)

	_, err := c.ListServers(context.Background())
	assert.Error(t, err)
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, 0, nil)
	_, err := c.ListServers(context.Background())
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)
}
