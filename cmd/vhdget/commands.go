package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sysreinstaller/vhdget/internal/adapter"
	"github.com/sysreinstaller/vhdget/internal/adapter/transfer"
	"github.com/sysreinstaller/vhdget/internal/domain"
	"github.com/sysreinstaller/vhdget/internal/session"
	"github.com/sysreinstaller/vhdget/internal/settings"
)

// ServersCmd implements the 'servers' command.
type ServersCmd struct{}

func (s *ServersCmd) Run(ctx context.Context, cli *CLI) error {
	app, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	servers, err := app.Session.LoadServers(ctx)
	if len(servers) == 0 && err != nil {
		return err
	}
	if err != nil {
		// The list is usable even when the catalog of the selection failed.
		app.Logger.Warn("failed to load catalog", "error", err)
	}

	selected := ""
	if st := app.Session.State(); st.SelectedServer != nil {
		selected = st.SelectedServer.ID
	}
	app.println(app.Styles.Servers(servers, selected))
	return nil
}

// ImagesCmd implements the 'images' command.
type ImagesCmd struct {
	System   string `help:"Only images of this system type"`
	Language string `short:"l" help:"Only images in this language"`
	Boot     string `short:"b" help:"Only images with this boot mode (UEFI or Legacy)"`
	Options  bool   `help:"List the accepted filter values instead of images"`
	Query    string `arg:"" optional:"" help:"Fuzzy search over image names"`
}

func (i *ImagesCmd) Run(ctx context.Context, cli *CLI) error {
	app, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.loadCatalog(ctx); err != nil {
		return err
	}

	m := app.Session
	if i.Options {
		app.println(app.Styles.FilterOptions(m.SystemTypeOptions(), m.LanguageOptions(), m.BootModeOptions()))
		return nil
	}

	m.SetFilters(domain.Filter{SystemType: i.System, Language: i.Language, BootMode: i.Boot})

	entries := m.Filtered()
	if i.Query != "" {
		results := m.Search(i.Query)
		entries = make([]domain.ImageEntry, len(results))
		for n, r := range results {
			entries[n] = r.Entry
		}
	}

	st := m.State()
	app.println(app.Styles.Images(entries))
	app.println(app.Styles.Dim.Render(fmt.Sprintf("%d of %d images on %s", len(entries), len(st.Catalog), st.SelectedServer.Name)))
	return nil
}

// HistoryCmd groups the history subcommands.
type HistoryCmd struct {
	List  HistoryListCmd  `cmd:"" default:"1" help:"List finished downloads"`
	Clear HistoryClearCmd `cmd:"" help:"Forget all finished downloads"`
	Retry HistoryRetryCmd `cmd:"" help:"Download a history entry again"`
}

// HistoryListCmd implements 'history list'.
type HistoryListCmd struct{}

func (h *HistoryListCmd) Run(ctx context.Context, cli *CLI) error {
	app, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	app.println(app.Styles.History(app.Session.History()))
	return nil
}

// HistoryClearCmd implements 'history clear'.
type HistoryClearCmd struct{}

func (h *HistoryClearCmd) Run(ctx context.Context, cli *CLI) error {
	app, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	n := len(app.Session.History())
	if err := app.Session.ClearHistory(); err != nil {
		return err
	}
	app.printf("cleared %d entries\n", n)
	return nil
}

// HistoryRetryCmd implements 'history retry'.
type HistoryRetryCmd struct {
	ID string `arg:"" help:"Task ID or unique prefix, as shown by 'history'"`
}

func (h *HistoryRetryCmd) Run(ctx context.Context, cli *CLI) error {
	app, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	task, err := findTask(app.Session.History(), h.ID)
	if err != nil {
		return err
	}
	app.Logger.Info("retrying download", "taskID", task.ID, "filename", task.Filename)

	return app.runDownloads(ctx, 1, []job{{
		filename: task.Filename,
		start: func(ctx context.Context, m *session.Manager) (*domain.DownloadTask, error) {
			return m.RetryDownload(ctx, task)
		},
	}})
}

// findTask resolves an id prefix against history
func findTask(history []domain.DownloadTask, prefix string) (domain.DownloadTask, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return domain.DownloadTask{}, errors.New("task id is required")
	}
	var matches []domain.DownloadTask
	for _, t := range history {
		if t.ID == prefix {
			return t, nil
		}
		if strings.HasPrefix(t.ID, prefix) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return domain.DownloadTask{}, fmt.Errorf("no download with id %q in history", prefix)
	case 1:
		return matches[0], nil
	default:
		return domain.DownloadTask{}, fmt.Errorf("id %q is ambiguous (%d matches)", prefix, len(matches))
	}
}

// SettingsCmd groups the settings subcommands.
type SettingsCmd struct {
	Show  SettingsShowCmd  `cmd:"" default:"1" help:"Show preferences"`
	Set   SettingsSetCmd   `cmd:"" help:"Change one preference"`
	Reset SettingsResetCmd `cmd:"" help:"Restore default preferences"`
}

// SettingsShowCmd implements 'settings show'.
type SettingsShowCmd struct{}

func (s *SettingsShowCmd) Run(ctx context.Context, cli *CLI) error {
	app, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	app.println(app.Styles.Preferences(app.Settings.Preferences()))
	return nil
}

// SettingsSetCmd implements 'settings set'.
type SettingsSetCmd struct {
	Key   string `arg:"" help:"Preference key"`
	Value string `arg:"" help:"New value"`
}

func (s *SettingsSetCmd) Help() string {
	return "Keys: " + strings.Join(settings.Keys(), ", ")
}

func (s *SettingsSetCmd) Run(ctx context.Context, cli *CLI) error {
	app, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Settings.Set(s.Key, s.Value); err != nil {
		return err
	}
	app.printf("%s = %s\n", s.Key, s.Value)
	return nil
}

// SettingsResetCmd implements 'settings reset'.
type SettingsResetCmd struct {
	All bool `help:"Also forget the last server and the download history"`
}

func (s *SettingsResetCmd) Run(ctx context.Context, cli *CLI) error {
	app, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if s.All {
		app.Settings.ResetAll()
		app.println("all stored state cleared")
		return nil
	}
	if err := app.Settings.Reset(); err != nil {
		return err
	}
	app.println("preferences reset to defaults")
	return nil
}

// LocalCmd groups the 'local' subcommands.
type LocalCmd struct {
	List   LocalListCmd   `cmd:"" default:"1" help:"List images in the download directory"`
	Delete LocalDeleteCmd `cmd:"" aliases:"rm" help:"Delete downloaded images"`
}

// LocalListCmd implements 'local list'.
type LocalListCmd struct{}

func (l *LocalListCmd) Run(ctx context.Context, cli *CLI) error {
	app, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	dir, err := app.downloadDir()
	if err != nil {
		return err
	}
	images, err := transfer.ListLocal(dir)
	if err != nil {
		return err
	}
	app.println(app.Styles.Local(images))
	return nil
}

// LocalDeleteCmd implements 'local delete'.
type LocalDeleteCmd struct {
	Files []string `arg:"" help:"Image filenames, as listed by 'local'"`
}

func (l *LocalDeleteCmd) Run(ctx context.Context, cli *CLI) error {
	app, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	dir, err := app.downloadDir()
	if err != nil {
		return err
	}
	var errs []error
	for _, name := range l.Files {
		if err := transfer.DeleteLocal(dir, name); err != nil {
			errs = append(errs, err)
			continue
		}
		app.Logger.Info("deleted local image", "filename", name)
		app.printf("deleted %s\n", name)
	}
	return errors.Join(errs...)
}

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite an existing configuration file"`
}

func (i *InitCmd) Run(cli *CLI) error {
	path := adapter.ConfigFile()
	if _, err := os.Stat(path); err == nil && !i.Force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := adapter.DefaultConfig()
	if cli.Mock {
		cfg.Source.Type = adapter.SourceTypeMock
	}
	if cli.Server != "" {
		cfg.Session.PreferredServer = cli.Server
	}

	written, err := adapter.SaveConfig(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.stdout(), "wrote %s\n", written)
	return nil
}
