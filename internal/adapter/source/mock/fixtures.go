package mock

import (
	"fmt"
	"os"

	"github.com/sysreinstaller/vhdget/internal/domain"
	"gopkg.in/yaml.v3"
)

// AllServers keys images offered by every server
const AllServers = "*"

// Fixtures is the catalog served by the mock source
type Fixtures struct {
	Servers []domain.Server                `yaml:"servers"`
	Images  map[string][]domain.ImageEntry `yaml:"images"` // server id or "*"
}

// DefaultFixtures returns a small built-in catalog
func DefaultFixtures() Fixtures {
	return Fixtures{
		Servers: []domain.Server{
			{ID: "1", Name: "官方服务器", Location: "北京", Status: domain.ServerStatusOnline},
			{ID: "2", Name: "镜像服务器", Location: "上海", Status: domain.ServerStatusOnline},
		},
		Images: map[string][]domain.ImageEntry{
			AllServers: {
				{
					Filename:    "windows10_pro_x64_22h2.vhd",
					DisplayName: "Windows 10 Pro x64 22H2",
					System:      "Windows 10",
					Version:     "22H2",
					Language:    "中文(zh-cn)",
					BootMode:    domain.BootModeUEFI,
					Size:        4_200_000_000,
				},
				{
					Filename:    "windows11_pro_x64_23h2.vhd",
					DisplayName: "Windows 11 Pro x64 23H2",
					System:      "Windows 11",
					Version:     "23H2",
					Language:    "中文(zh-cn)",
					BootMode:    domain.BootModeUEFI,
					Size:        4_800_000_000,
				},
				{
					Filename:    "windows_server_2022_datacenter.vhd",
					DisplayName: "Windows Server 2022 Datacenter",
					System:      "Windows Server",
					Version:     "2022",
					Language:    "英文(en-us)",
					BootMode:    domain.BootModeUEFI,
					Size:        3_900_000_000,
				},
			},
		},
	}
}

// LoadFixtures reads fixtures from a YAML file
func LoadFixtures(path string) (Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixtures{}, fmt.Errorf("failed to read fixtures: %w", err)
	}

	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Fixtures{}, fmt.Errorf("failed to parse fixtures %s: %w", path, err)
	}
	if len(f.Servers) == 0 {
		return Fixtures{}, fmt.Errorf("fixtures %s define no servers", path)
	}
	return f, nil
}

// imagesFor returns the images of serverID, falling back to the shared list.
// Missing download URLs are filled with mock:// links.
func (f Fixtures) imagesFor(serverID string) []domain.ImageEntry {
	images, ok := f.Images[serverID]
	if !ok {
		images = f.Images[AllServers]
	}
	out := make([]domain.ImageEntry, len(images))
	for i, e := range images {
		if e.DownloadURL == "" {
			e.DownloadURL = "mock://" + serverID + "/" + e.Filename
		}
		out[i] = e
	}
	return out
}
