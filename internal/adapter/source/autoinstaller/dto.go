package autoinstaller

import (
	"encoding/json"
	"fmt"
)

// ServerListResponse is the envelope returned by /iso-download/
type ServerListResponse struct {
	Success bool       `json:"success"`
	Data    ServerData `json:"data"`
	Error   string     `json:"error,omitempty"`
}

// ServerData wraps the server array
type ServerData struct {
	Servers []ServerInfo `json:"servers"`
}

// ServerInfo is one download server with its image links
type ServerInfo struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Location     string                 `json:"location,omitempty"`
	Status       string                 `json:"status,omitempty"`
	DownloadURLs map[string]DownloadURL `json:"download_urls"`
}

// DownloadURL is a download_urls value. The API sends either a bare URL
// string or an object carrying the size as well.
type DownloadURL struct {
	URL  string `json:"url"`
	Size int64  `json:"size,omitempty"`
}

func (d *DownloadURL) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		d.URL = s
		return nil
	}

	type plain DownloadURL
	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("download url must be a string or object: %w", err)
	}
	*d = DownloadURL(obj)
	return nil
}
