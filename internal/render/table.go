package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/sysreinstaller/vhdget/internal/domain"
)

func (s Styles) newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(s.Border).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.Header
			}
			return s.Cell
		})
}

// Servers renders the server list, marking the selected server
func (s Styles) Servers(servers []domain.Server, selectedID string) string {
	if len(servers) == 0 {
		return s.Dim.Render("no servers available")
	}
	t := s.newTable("", "ID", "NAME", "LOCATION", "STATUS")
	for _, srv := range servers {
		mark := ""
		if srv.ID == selectedID {
			mark = GlyphSelected
		}
		status := string(srv.Status)
		if status == "" {
			status = "unknown"
		}
		t.Row(mark, srv.ID, srv.Name, srv.Location, status)
	}
	return t.String()
}

// Images renders catalog entries
func (s Styles) Images(entries []domain.ImageEntry) string {
	if len(entries) == 0 {
		return s.Dim.Render("no images match")
	}
	t := s.newTable("FILENAME", "NAME", "SYSTEM", "VERSION", "LANGUAGE", "BOOT", "SIZE")
	for _, e := range entries {
		t.Row(e.Filename, e.Title(), dash(e.System), dash(e.Version), dash(e.Language), dash(e.BootMode), e.FormattedSize())
	}
	return t.String()
}

// History renders terminal tasks, most recent first
func (s Styles) History(tasks []domain.DownloadTask) string {
	if len(tasks) == 0 {
		return s.Dim.Render("no downloads yet")
	}
	t := s.newTable("ID", "FILENAME", "STATUS", "FINISHED", "DETAIL")
	for _, task := range tasks {
		t.Row(ShortID(task.ID), task.Filename, s.Status(task.Status), finished(task), detail(task))
	}
	return t.String()
}

// Local renders image files found in the download directory
func (s Styles) Local(images []domain.LocalImage) string {
	if len(images) == 0 {
		return s.Dim.Render("no local images")
	}
	t := s.newTable("FILENAME", "SIZE", "MODIFIED")
	var total int64
	for _, img := range images {
		total += img.Size
		t.Row(img.Filename, humanize.Bytes(uint64(img.Size)), humanize.RelTime(img.ModTime, time.Now(), "ago", "from now"))
	}
	return t.String() + "\n" + s.Dim.Render(fmt.Sprintf("%d files, %s", len(images), humanize.Bytes(uint64(total))))
}

// Preferences renders preferences as key/value pairs
func (s Styles) Preferences(p domain.Preferences) string {
	t := s.newTable("KEY", "VALUE")
	t.Row("theme", string(p.Theme))
	t.Row("backup.enable_compression", fmt.Sprint(p.Backup.EnableCompression))
	t.Row("backup.location", p.Backup.BackupLocation)
	t.Row("backup.auto_cleanup", fmt.Sprint(p.Backup.AutoCleanup))
	t.Row("backup.max_backups", fmt.Sprint(p.Backup.MaxBackups))
	return t.String()
}

// FilterOptions renders the values each filter accepts
func (s Styles) FilterOptions(systems, languages, bootModes []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", s.Accent.Render("system:  "), strings.Join(systems, ", "))
	fmt.Fprintf(&b, "%s %s\n", s.Accent.Render("language:"), strings.Join(languages, ", "))
	fmt.Fprintf(&b, "%s %s", s.Accent.Render("boot:    "), strings.Join(bootModes, ", "))
	return b.String()
}

// ShortID shortens a task id for display
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func finished(task domain.DownloadTask) string {
	if task.FinishedAt.IsZero() {
		return "-"
	}
	return humanize.RelTime(task.FinishedAt, time.Now(), "ago", "from now")
}

func detail(task domain.DownloadTask) string {
	switch task.Status {
	case domain.TaskStatusFailed:
		return task.Error
	case domain.TaskStatusCompleted:
		if task.Bytes > 0 {
			return humanize.Bytes(uint64(task.Bytes)) + " in " + task.Duration().Round(time.Second).String()
		}
		return task.OutputPath
	default:
		return ""
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
