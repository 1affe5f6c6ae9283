package session

import (
	"context"
	"fmt"
	"time"

	"github.com/sysreinstaller/vhdget/internal/domain"
	"github.com/sysreinstaller/vhdget/internal/metrics"
)

// StartDownload downloads entry, or the selected image when entry is nil.
// With neither it returns (nil, nil). It blocks until the transfer finishes
// and returns the terminal task. A second submission for a filename that is
// still active fails with ErrDuplicateInQueue.
func (m *Manager) StartDownload(ctx context.Context, entry *domain.ImageEntry) (*domain.DownloadTask, error) {
	m.mu.Lock()
	if entry == nil {
		if m.selectedImage == nil {
			m.mu.Unlock()
			return nil, nil
		}
		e := *m.selectedImage
		entry = &e
	}
	target := *entry

	for _, a := range m.active {
		if a.task.Filename == target.Filename {
			m.mu.Unlock()
			m.recorder.IncDownloadRejected()
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateInQueue, target.Filename)
		}
	}

	taskCtx, cancel := context.WithCancel(ctx)
	at := &activeTask{
		task: domain.DownloadTask{
			ID:          m.newID(),
			Filename:    target.Filename,
			DisplayName: target.DisplayName,
			DownloadURL: target.DownloadURL,
			Status:      domain.TaskStatusDownloading,
			StartedAt:   m.now(),
		},
		cancel: cancel,
	}
	m.active = append(m.active, at)
	started := at.task
	activeCount := len(m.active)
	m.mu.Unlock()

	defer cancel()
	defer m.removeActive(started.ID)

	m.recorder.SetActiveDownloads(activeCount)
	m.logger.Info("download started", "taskID", started.ID, "filename", started.Filename)
	m.notify(domain.SessionEvent{Kind: domain.EventDownloadStarted, Task: &started})

	result, err := m.transfer.Download(taskCtx, target, m.progressFunc(started.ID))
	return m.finishDownload(started, result, err)
}

// finishDownload moves the task from the active set into history
func (m *Manager) finishDownload(started domain.DownloadTask, result domain.DownloadResult, err error) (*domain.DownloadTask, error) {
	m.mu.Lock()
	idx := m.indexOfTask(started.ID)
	if idx < 0 {
		m.mu.Unlock()
		m.logger.Info("discarding outcome of cancelled download", "taskID", started.ID, "filename", started.Filename)
		return nil, fmt.Errorf("%w: %s", domain.ErrDownloadCancelled, started.Filename)
	}

	task := m.active[idx].task
	m.active = append(m.active[:idx], m.active[idx+1:]...)
	task.FinishedAt = m.now()

	var transferErr *domain.TransferError
	outcome := metrics.OutcomeCompleted
	if err != nil {
		transferErr = domain.NewTransferError(task.Filename, err)
		task.Status = domain.TaskStatusFailed
		task.Error = transferErr.Reason
		outcome = metrics.OutcomeFailed
	} else {
		task.Status = domain.TaskStatusCompleted
		task.Progress = 100
		task.OutputPath = result.Path
		task.Bytes = result.Bytes
	}
	m.prependHistoryLocked(task)
	activeCount := len(m.active)
	m.mu.Unlock()

	m.recorder.ObserveDownload(outcome, task.Duration())
	m.recorder.SetActiveDownloads(activeCount)
	m.saveHistory()

	finished := task
	m.notify(domain.SessionEvent{Kind: domain.EventDownloadFinished, Task: &finished, Err: err})
	m.notify(domain.SessionEvent{Kind: domain.EventHistoryChanged})

	if transferErr != nil {
		m.logger.Error("download failed", "error", err, "taskID", task.ID, "filename", task.Filename)
		return &task, transferErr
	}
	m.logger.Info("download completed", "taskID", task.ID, "filename", task.Filename, "bytes", task.Bytes)
	return &task, nil
}

// removeActive drops a task from the active set if it is still there. It
// runs deferred so a panicking transfer cannot leave the filename locked.
func (m *Manager) removeActive(taskID string) {
	m.mu.Lock()
	idx := m.indexOfTask(taskID)
	if idx < 0 {
		m.mu.Unlock()
		return
	}
	task := m.active[idx].task
	m.active = append(m.active[:idx], m.active[idx+1:]...)
	activeCount := len(m.active)
	m.mu.Unlock()

	m.recorder.SetActiveDownloads(activeCount)
	m.notify(domain.SessionEvent{Kind: domain.EventDownloadRemoved, Task: &task})
}

// CancelDownload removes an active task and cancels its transfer context.
// Unknown or already finished ids are ignored. It reports whether a task was
// cancelled.
func (m *Manager) CancelDownload(taskID string) bool {
	m.mu.Lock()
	idx := m.indexOfTask(taskID)
	if idx < 0 {
		m.mu.Unlock()
		return false
	}
	at := m.active[idx]
	m.active = append(m.active[:idx], m.active[idx+1:]...)
	at.task.Status = domain.TaskStatusCancelled
	at.task.FinishedAt = m.now()

	archived := m.opts.ArchiveCancelled
	if archived {
		m.prependHistoryLocked(at.task)
	}
	activeCount := len(m.active)
	m.mu.Unlock()

	at.cancel()

	m.logger.Info("download cancelled", "taskID", taskID, "filename", at.task.Filename)
	m.recorder.ObserveDownload(metrics.OutcomeCancelled, at.task.Duration())
	m.recorder.SetActiveDownloads(activeCount)

	task := at.task
	m.notify(domain.SessionEvent{Kind: domain.EventDownloadRemoved, Task: &task})
	if archived {
		m.saveHistory()
		m.notify(domain.SessionEvent{Kind: domain.EventHistoryChanged})
	}
	return true
}

// RetryDownload starts a fresh download for a history entry. Progress and
// error of the earlier attempt are not carried over.
func (m *Manager) RetryDownload(ctx context.Context, item domain.DownloadTask) (*domain.DownloadTask, error) {
	entry := item.Entry()
	return m.StartDownload(ctx, &entry)
}

// ClearHistory drops all terminal tasks
func (m *Manager) ClearHistory() error {
	m.mu.Lock()
	m.history = nil
	m.mu.Unlock()

	m.notify(domain.SessionEvent{Kind: domain.EventHistoryChanged})

	if err := m.persistHistory(); err != nil {
		m.logger.Error("failed to clear history", "error", err)
		return err
	}
	return nil
}

// progressFunc returns a callback that updates the percentage of taskID
func (m *Manager) progressFunc(taskID string) domain.ProgressFunc {
	return func(downloaded, total int64) {
		if total <= 0 {
			return
		}
		pct := int(downloaded * 100 / total)
		pct = max(0, min(pct, 100))

		m.mu.Lock()
		idx := m.indexOfTask(taskID)
		if idx < 0 || m.active[idx].task.Progress == pct {
			m.mu.Unlock()
			return
		}
		m.active[idx].task.Progress = pct
		task := m.active[idx].task
		m.mu.Unlock()

		m.notify(domain.SessionEvent{Kind: domain.EventDownloadProgress, Task: &task})
	}
}

// prependHistoryLocked must be called with mu held
func (m *Manager) prependHistoryLocked(task domain.DownloadTask) {
	history := make([]domain.DownloadTask, 0, len(m.history)+1)
	history = append(history, task)
	history = append(history, m.history...)
	if limit := m.opts.HistoryLimit; limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	m.history = history
}

func (m *Manager) saveHistory() {
	if err := m.persistHistory(); err != nil {
		m.logger.Error("failed to save history", "error", err)
	}
}

// persistHistory writes the current history to the store. The snapshot is
// taken under persistMu so concurrent writers land in order and the last
// write is always the newest history.
func (m *Manager) persistHistory() error {
	if m.store == nil {
		return nil
	}
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	var history []domain.DownloadTask
	if len(m.history) > 0 {
		history = append(history, m.history...)
	}
	m.mu.Unlock()

	return m.store.SaveHistory(history)
}

// indexOfTask must be called with mu held
func (m *Manager) indexOfTask(taskID string) int {
	for i, a := range m.active {
		if a.task.ID == taskID {
			return i
		}
	}
	return -1
}

// WaitIdle polls until no task is active or ctx is done. Used by callers
// that fire downloads in goroutines and need to drain them.
func (m *Manager) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if !m.IsDownloading() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
