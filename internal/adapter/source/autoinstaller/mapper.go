package autoinstaller

import (
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/sysreinstaller/vhdget/internal/domain"
)

// System tags inferred from image names
const (
	SystemWindows       = "Windows"
	SystemWindowsServer = "Windows Server"
	SystemTinyWindows   = "Tiny Windows"
	SystemLinux         = "Linux"
)

// Language tags inferred from image names
const (
	LanguageChinese  = "中文(zh-cn)"
	LanguageEnglish  = "英文(en-us)"
	LanguageJapanese = "日文(ja-jp)"
)

// imageName splits "<stem>[_YYYYMMDD_HHMMSS].<ext>"
var imageName = regexp.MustCompile(`(?i)^(.+?)(?:_(\d{8}_\d{6}))?\.(vhdx?(?:\.xz)?|xz|iso|img|7z|zip)$`)

var localeToken = regexp.MustCompile(`^[a-z]{2}-[a-z]{2}$`)

var versionToken = regexp.MustCompile(`^(\d{2}h\d|20\d{2}|ltsc\d*|xp|7|10|11)$`)

var linuxTokens = []string{"linux", "ubuntu", "debian", "centos", "rocky", "alma", "fedora", "alpine"}

// MapServers converts API servers to domain servers. Servers listed by the
// API are reported online unless the API says otherwise.
func MapServers(infos []ServerInfo, endpoint string) []domain.Server {
	servers := make([]domain.Server, 0, len(infos))
	for _, s := range infos {
		status := domain.ServerStatusOnline
		if s.Status != "" {
			status = domain.ServerStatus(strings.ToLower(s.Status))
		}
		name := s.Name
		if name == "" {
			name = s.ID
		}
		servers = append(servers, domain.Server{
			ID:       s.ID,
			Name:     name,
			Endpoint: endpoint,
			Location: s.Location,
			Status:   status,
		})
	}
	return servers
}

// MapImages converts a server's download_urls into catalog entries sorted by
// filename. Entries without a URL are skipped.
func MapImages(urls map[string]DownloadURL) []domain.ImageEntry {
	entries := make([]domain.ImageEntry, 0, len(urls))
	for name, u := range urls {
		if u.URL == "" {
			continue
		}
		entry := ParseImageName(filenameFor(name, u.URL))
		entry.DownloadURL = u.URL
		entry.Size = u.Size
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Filename < entries[j].Filename
	})
	return entries
}

// filenameFor prefers the listing key and falls back to the URL path when
// the key carries no extension.
func filenameFor(name, rawURL string) string {
	if path.Ext(name) != "" {
		return name
	}
	if base := path.Base(strings.SplitN(rawURL, "?", 2)[0]); base != "." && base != "/" && path.Ext(base) != "" {
		return base
	}
	return name
}

// ParseImageName infers catalog tags from an image filename such as
// "win11_pro_x64_23h2_zh-cn_uefi_20240101_120000.vhd". Tags it cannot infer
// stay empty.
func ParseImageName(filename string) domain.ImageEntry {
	entry := domain.ImageEntry{Filename: filename}

	stem := filename
	if m := imageName.FindStringSubmatch(filename); m != nil {
		stem = m[1]
	}

	tokens := strings.FieldsFunc(strings.ToLower(stem), func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.'
	})
	has := func(want ...string) bool {
		for _, t := range tokens {
			for _, w := range want {
				if t == w {
					return true
				}
			}
		}
		return false
	}
	hasPrefix := func(prefix string) bool {
		for _, t := range tokens {
			if strings.HasPrefix(t, prefix) {
				return true
			}
		}
		return false
	}

	for _, l := range linuxTokens {
		if hasPrefix(l) {
			entry.System = SystemLinux
			break
		}
	}
	if entry.System == "" {
		switch {
		case has("server") || hasPrefix("srv"):
			entry.System = SystemWindowsServer
		case hasPrefix("tiny"):
			entry.System = SystemTinyWindows
		case hasPrefix("win"):
			entry.System = SystemWindows
		}
	}

	for _, t := range tokens {
		if versionToken.MatchString(t) {
			entry.Version = strings.ToUpper(t)
			break
		}
		if strings.HasPrefix(t, "windows") || strings.HasPrefix(t, "win") {
			if v := strings.TrimLeft(t, "windows"); versionToken.MatchString(v) {
				entry.Version = strings.ToUpper(v)
			}
		}
	}

	switch {
	case has("zh", "cn", "chs", "zhcn"):
		entry.Language = LanguageChinese
	case has("en", "us", "enus", "eng"):
		entry.Language = LanguageEnglish
	case has("ja", "jp", "jajp", "jpn"):
		entry.Language = LanguageJapanese
	}

	switch {
	case has("uefi", "efi", "gpt"):
		entry.BootMode = domain.BootModeUEFI
	case has("legacy", "bios", "mbr"):
		entry.BootMode = domain.BootModeLegacy
	}

	entry.DisplayName = displayName(stem)
	return entry
}

func displayName(stem string) string {
	words := strings.FieldsFunc(stem, func(r rune) bool { return r == '_' || r == ' ' })
	for i, w := range words {
		lw := strings.ToLower(w)
		switch {
		case localeToken.MatchString(lw): // zh-cn
			words[i] = lw
		case versionToken.MatchString(lw), lw == "x64", lw == "x86", lw == "arm64", lw == "uefi":
			words[i] = strings.ToUpper(w)
		case w != "":
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
