package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prismbench/search/pkg/apperrors"
	"github.com/prismbench/search/pkg/models"
)

// ResumeSpec carries the checkpoint a task should resume from, set only when
// the caller is continuing a prior run rather than starting fresh.
type ResumeSpec struct {
	TreePicklePath string
	ResumePhase    string
	Iteration      int
}

// TaskService owns the task registry and runs each task's phase sequence in
// a background goroutine, cancellable via StopTask — grounded on the
// teacher's pkg/queue/pool.go activeSessions map[string]context.CancelFunc +
// RegisterSession/UnregisterSession/CancelSession trio.
type TaskService struct {
	mu      sync.RWMutex
	tasks   map[string]*models.Task
	cancels map[string]context.CancelFunc

	mcts     *MCTSService
	sessions *SessionService
}

// NewTaskService builds a TaskService wired to the given MCTS and session services.
func NewTaskService(mcts *MCTSService, sessions *SessionService) *TaskService {
	return &TaskService{
		tasks:    make(map[string]*models.Task),
		cancels:  make(map[string]context.CancelFunc),
		mcts:     mcts,
		sessions: sessions,
	}
}

// CreateTask registers a task and starts its phase sequence in the
// background. The caller's ctx is not used for cancellation of the
// background run — StopTask exists for that — only as a hook for request
// tracing if the caller wants it.
func (t *TaskService) CreateTask(_ context.Context, sessionID string, phases []string, resume *ResumeSpec) (*models.Task, error) {
	if _, err := t.sessions.GetSession(sessionID); err != nil {
		return nil, err
	}

	now := time.Now()
	task := &models.Task{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Phases:    phases,
		Status:    models.TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if resume != nil {
		task.TreePicklePath = resume.TreePicklePath
		task.ResumePhase = resume.ResumePhase
		task.ResumeIteration = resume.Iteration
	}

	runCtx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	t.tasks[task.ID] = task
	t.cancels[task.ID] = cancel
	t.mu.Unlock()

	go t.run(runCtx, task)

	return task, nil
}

// run executes every configured phase in order, updating the task's phase
// log as it goes. When the task names a ResumePhase anywhere in its phase
// sequence, every phase before it is marked completed without being run
// again — only the resume phase itself (and anything after it) actually
// executes.
func (t *TaskService) run(ctx context.Context, task *models.Task) {
	defer t.unregisterCancel(task.ID)

	t.setStatus(task.ID, models.TaskStatusRunning)

	resumeIdx := -1
	if task.ResumePhase != "" {
		for i, phaseName := range task.Phases {
			if phaseName == task.ResumePhase {
				resumeIdx = i
				break
			}
		}
	}

	for i, phaseName := range task.Phases {
		if resumeIdx > 0 && i < resumeIdx {
			now := time.Now()
			t.appendPhaseStatus(task.ID, models.PhaseStatus{
				PhaseName:   phaseName,
				Status:      models.TaskStatusCompleted,
				StartedAt:   &now,
				CompletedAt: &now,
			})
			continue
		}

		status := models.PhaseStatus{PhaseName: phaseName, Status: models.TaskStatusRunning}
		started := time.Now()
		status.StartedAt = &started
		t.appendPhaseStatus(task.ID, status)

		var resume *ResumeSpec
		if i == resumeIdx {
			resume = &ResumeSpec{TreePicklePath: task.TreePicklePath, ResumePhase: task.ResumePhase, Iteration: task.ResumeIteration}
		}

		err := t.mcts.RunPhase(ctx, task.SessionID, phaseName, resume)

		completed := time.Now()
		finalStatus := models.TaskStatusCompleted
		errMsg := ""
		switch {
		case errors.Is(err, context.Canceled):
			finalStatus = models.TaskStatusStopped
		case err != nil:
			finalStatus = models.TaskStatusFailed
			errMsg = err.Error()
		}
		t.finalizePhaseStatus(task.ID, finalStatus, &completed, errMsg)

		if finalStatus != models.TaskStatusCompleted {
			t.setStatus(task.ID, finalStatus)
			t.setError(task.ID, errMsg)
			return
		}
	}

	t.setStatus(task.ID, models.TaskStatusCompleted)
}

// StopTask cancels a running task's background context. It is an error to
// stop a task that does not exist or has already reached a terminal status.
func (t *TaskService) StopTask(taskID string) error {
	t.mu.Lock()
	task, ok := t.tasks[taskID]
	if !ok {
		t.mu.Unlock()
		return apperrors.ErrTaskNotFound
	}
	if task.Status != models.TaskStatusRunning && task.Status != models.TaskStatusPending {
		t.mu.Unlock()
		return apperrors.ErrTaskNotRunning
	}
	cancel, ok := t.cancels[taskID]
	t.mu.Unlock()
	if !ok {
		return apperrors.ErrTaskNotRunning
	}
	cancel()
	return nil
}

// GetTask returns a task by ID.
func (t *TaskService) GetTask(taskID string) (*models.Task, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	task, ok := t.tasks[taskID]
	if !ok {
		return nil, apperrors.ErrTaskNotFound
	}
	return task, nil
}

// GetAllTasks returns every known task.
func (t *TaskService) GetAllTasks() []*models.Task {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*models.Task, 0, len(t.tasks))
	for _, task := range t.tasks {
		out = append(out, task)
	}
	return out
}

// CleanupOldTasks removes terminal tasks last updated before the cutoff.
func (t *TaskService) CleanupOldTasks(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, task := range t.tasks {
		if !isTerminal(task.Status) {
			continue
		}
		if task.UpdatedAt.Before(cutoff) {
			delete(t.tasks, id)
			delete(t.cancels, id)
			removed++
		}
	}
	return removed
}

func isTerminal(status models.TaskStatus) bool {
	switch status {
	case models.TaskStatusCompleted, models.TaskStatusFailed, models.TaskStatusStopped:
		return true
	default:
		return false
	}
}

func (t *TaskService) unregisterCancel(taskID string) {
	t.mu.Lock()
	delete(t.cancels, taskID)
	t.mu.Unlock()
}

func (t *TaskService) setStatus(taskID string, status models.TaskStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if task, ok := t.tasks[taskID]; ok {
		task.Status = status
		task.UpdatedAt = time.Now()
	}
}

func (t *TaskService) setError(taskID, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if task, ok := t.tasks[taskID]; ok {
		task.Error = msg
	}
}

func (t *TaskService) appendPhaseStatus(taskID string, status models.PhaseStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if task, ok := t.tasks[taskID]; ok {
		task.PhaseLog = append(task.PhaseLog, status)
		task.UpdatedAt = time.Now()
	}
}

func (t *TaskService) finalizePhaseStatus(taskID string, status models.TaskStatus, completedAt *time.Time, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	task, ok := t.tasks[taskID]
	if !ok || len(task.PhaseLog) == 0 {
		return
	}
	current := &task.PhaseLog[len(task.PhaseLog)-1]
	current.Status = status
	current.CompletedAt = completedAt
	current.Error = errMsg
	task.UpdatedAt = time.Now()
}

// TaskCleaner periodically purges terminal tasks past their retention
// window via a ticker-driven Start/Stop loop.
type TaskCleaner struct {
	tasks    *TaskService
	maxAge   time.Duration
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewTaskCleaner builds a TaskCleaner that sweeps every interval, evicting
// terminal tasks older than maxAge.
func NewTaskCleaner(tasks *TaskService, maxAge, interval time.Duration) *TaskCleaner {
	return &TaskCleaner{tasks: tasks, maxAge: maxAge, interval: interval}
}

// Start launches the background sweep loop.
func (c *TaskCleaner) Start(ctx context.Context) {
	if c.cancel != nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.run(ctx)
	slog.Info("task cleanup loop started", "max_age", c.maxAge, "interval", c.interval)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (c *TaskCleaner) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	slog.Info("task cleanup loop stopped")
}

func (c *TaskCleaner) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.tasks.CleanupOldTasks(c.maxAge); n > 0 {
				slog.Info("swept old tasks", "count", n)
			}
		}
	}
}
