package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sysreinstaller/vhdget/internal/domain"
	"github.com/sysreinstaller/vhdget/internal/render"
	"github.com/sysreinstaller/vhdget/internal/session"
	"golang.org/x/sync/errgroup"
)

const (
	eventBuffer    = 1024
	maxSuggestions = 3
)

// DownloadCmd implements the 'download' command.
type DownloadCmd struct {
	Files    []string `arg:"" help:"Image filenames, as listed by 'images'"`
	Parallel int      `short:"p" default:"2" help:"Maximum concurrent downloads (0 = unlimited)"`
}

func (d *DownloadCmd) Run(ctx context.Context, cli *CLI) error {
	if d.Parallel < 0 {
		return fmt.Errorf("--parallel must be >= 0, got %d", d.Parallel)
	}

	app, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.loadCatalog(ctx); err != nil {
		return err
	}

	jobs, err := app.resolve(d.Files)
	if err != nil {
		return err
	}
	return app.runDownloads(ctx, d.Parallel, jobs)
}

// job is one download to run
type job struct {
	filename string
	start    func(ctx context.Context, m *session.Manager) (*domain.DownloadTask, error)
}

// resolve maps filenames to catalog entries. Unknown names fail the whole
// request, with close matches as hints.
func (a *App) resolve(filenames []string) ([]job, error) {
	catalog := a.Session.State().Catalog
	byName := make(map[string]domain.ImageEntry, len(catalog))
	for _, e := range catalog {
		byName[e.Filename] = e
	}

	var (
		jobs    []job
		missing []error
		seen    = make(map[string]bool)
	)
	for _, name := range filenames {
		if seen[name] {
			continue
		}
		seen[name] = true

		entry, ok := byName[name]
		if !ok {
			err := fmt.Errorf("%w: %s", domain.ErrImageNotFound, name)
			if hints := a.Session.Suggest(name, maxSuggestions); len(hints) > 0 {
				err = fmt.Errorf("%w (did you mean %s?)", err, strings.Join(hints, ", "))
			}
			missing = append(missing, err)
			continue
		}
		jobs = append(jobs, job{
			filename: name,
			start: func(ctx context.Context, m *session.Manager) (*domain.DownloadTask, error) {
				return m.StartDownload(ctx, &entry)
			},
		})
	}
	if len(missing) > 0 {
		return nil, errors.Join(missing...)
	}
	return jobs, nil
}

// runDownloads runs jobs with at most parallel in flight and renders their
// progress. Interrupting ctx cancels every active task through the session
// so cancellation is recorded as such. A task that registers after the
// interrupt is cancelled as soon as it starts.
func (a *App) runDownloads(ctx context.Context, parallel int, jobs []job) error {
	m := a.Session

	events := make(chan domain.SessionEvent, eventBuffer)
	unsubscribe := m.Subscribe(session.NewChannelObserver(events))

	printer := render.NewProgress(a.Out, a.Styles)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for e := range events {
			printer.Handle(e)
		}
	}()

	// Tasks are active before their start event, so between the watcher
	// and this observer no task escapes the interrupt.
	unwatch := m.Subscribe(domain.ObserverFunc(func(e domain.SessionEvent) {
		if e.Kind == domain.EventDownloadStarted && ctx.Err() != nil {
			m.CancelDownload(e.Task.ID)
		}
	}))

	stopWatch := make(chan struct{})
	var watcher sync.WaitGroup
	watcher.Add(1)
	go func() {
		defer watcher.Done()
		select {
		case <-ctx.Done():
			for _, t := range m.ActiveTasks() {
				m.CancelDownload(t.ID)
			}
		case <-stopWatch:
		}
	}()

	// Transfers outlive ctx so that an interrupt goes through CancelDownload.
	runCtx := context.WithoutCancel(ctx)

	var (
		g         errgroup.Group
		completed atomic.Int32
		failed    atomic.Int32
		skipped   atomic.Int32
	)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for _, j := range jobs {
		g.Go(func() error {
			if ctx.Err() != nil {
				skipped.Add(1)
				return nil
			}
			_, err := j.start(runCtx, m)
			switch {
			case err == nil:
				completed.Add(1)
			case errors.Is(err, domain.ErrDownloadCancelled):
				skipped.Add(1)
			default:
				failed.Add(1)
				a.Logger.Debug("download returned error", "error", err, "filename", j.filename)
			}
			// Failures are reported per task, keep the others running.
			return nil
		})
	}
	_ = g.Wait()

	close(stopWatch)
	watcher.Wait()
	unwatch()
	unsubscribe()
	close(events)
	<-printed
	printer.Done()

	total := len(jobs)
	a.println(a.Styles.Dim.Render(fmt.Sprintf("%d completed, %d failed, %d cancelled", completed.Load(), failed.Load(), skipped.Load())))

	if ctx.Err() != nil {
		return fmt.Errorf("interrupted: %w", ctx.Err())
	}
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d downloads failed", n, total)
	}
	return nil
}
