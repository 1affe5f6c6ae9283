package render

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/sysreinstaller/vhdget/internal/domain"
	"golang.org/x/term"
)

const (
	defaultWidth = 80
	barWidth     = 30
	logStep      = 10 // percent between lines when not on a terminal
)

// Progress prints download events. On a terminal it keeps one live status
// line; otherwise it prints a line every logStep percent.
type Progress struct {
	out    io.Writer
	styles Styles
	tty    bool
	width  int
	bar    progress.Model

	mu      sync.Mutex
	active  map[string]domain.DownloadTask
	printed map[string]int
	drawn   bool
}

// NewProgress creates a printer writing to out
func NewProgress(out io.Writer, styles Styles) *Progress {
	p := &Progress{
		out:     out,
		styles:  styles,
		width:   defaultWidth,
		active:  make(map[string]domain.DownloadTask),
		printed: make(map[string]int),
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.tty = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			p.width = w
		}
	}
	p.bar = progress.New(
		progress.WithGradient(string(styles.Palette.Accent), string(styles.Palette.Green)),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
	return p
}

// Handle renders one session event
func (p *Progress) Handle(e domain.SessionEvent) {
	if e.Task == nil {
		return
	}
	task := *e.Task

	p.mu.Lock()
	defer p.mu.Unlock()

	switch e.Kind {
	case domain.EventDownloadStarted:
		p.active[task.ID] = task
		p.printed[task.ID] = 0
		p.println(fmt.Sprintf("%s %s", p.styles.Accent.Render("↓"), task.Filename))

	case domain.EventDownloadProgress:
		p.active[task.ID] = task
		if p.tty {
			p.redraw()
			return
		}
		if task.Progress >= p.printed[task.ID]+logStep {
			p.printed[task.ID] = task.Progress - task.Progress%logStep
			fmt.Fprintf(p.out, "  %s %3d%%\n", task.Filename, task.Progress)
		}

	case domain.EventDownloadFinished:
		delete(p.active, task.ID)
		delete(p.printed, task.ID)
		if task.Status == domain.TaskStatusCompleted {
			size := ""
			if task.Bytes > 0 {
				size = " (" + humanize.Bytes(uint64(task.Bytes)) + ")"
			}
			p.println(fmt.Sprintf("%s %s%s → %s", p.styles.Success.Render(GlyphDone), task.Filename, size, task.OutputPath))
		} else {
			p.println(fmt.Sprintf("%s %s: %s", p.styles.Error.Render(GlyphFailed), task.Filename, task.Error))
		}

	case domain.EventDownloadRemoved:
		if _, ok := p.active[task.ID]; !ok {
			return
		}
		delete(p.active, task.ID)
		delete(p.printed, task.ID)
		if task.Status == domain.TaskStatusCancelled {
			p.println(fmt.Sprintf("%s %s cancelled", p.styles.Dim.Render(GlyphFailed), task.Filename))
		}
	}
}

// Done clears the live line
func (p *Progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clear()
}

// println prints a permanent line above the live status line.
// Must be called with mu held.
func (p *Progress) println(line string) {
	p.clear()
	fmt.Fprintln(p.out, line)
	if p.tty && len(p.active) > 0 {
		p.redraw()
	}
}

func (p *Progress) clear() {
	if p.drawn {
		fmt.Fprint(p.out, "\r\033[K")
		p.drawn = false
	}
}

// redraw shows the task with the lowest progress and a count of the others
func (p *Progress) redraw() {
	if len(p.active) == 0 {
		p.clear()
		return
	}
	tasks := make([]domain.DownloadTask, 0, len(p.active))
	for _, t := range p.active {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].Progress != tasks[j].Progress {
			return tasks[i].Progress < tasks[j].Progress
		}
		return tasks[i].Filename < tasks[j].Filename
	})

	head := tasks[0]
	line := fmt.Sprintf("%s %3d%% %s", p.bar.ViewAs(float64(head.Progress)/100), head.Progress, head.Filename)
	if n := len(tasks) - 1; n > 0 {
		line += p.styles.Dim.Render(fmt.Sprintf(" (+%d more)", n))
	}
	if lipgloss.Width(line) > p.width-1 {
		line = lipgloss.NewStyle().MaxWidth(p.width - 1).Render(line)
	}
	fmt.Fprint(p.out, "\r\033[K"+line)
	p.drawn = true
}
