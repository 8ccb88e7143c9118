// Package models defines the shared domain types for sessions, tasks, and
// phase execution status used across the search service.
package models

import "time"

// Difficulty is a coarse label assigned to a ChallengeNode when it is created;
// it does not change as the node is scored.
type Difficulty string

const (
	DifficultyVeryEasy Difficulty = "very easy"
	DifficultyEasy     Difficulty = "easy"
	DifficultyMedium   Difficulty = "medium"
	DifficultyHard     Difficulty = "hard"
	DifficultyVeryHard Difficulty = "very hard"
)

// DefaultDifficulties is the built-in difficulty ordering used when a tree
// config doesn't specify its own sequence.
var DefaultDifficulties = []Difficulty{
	DifficultyVeryEasy, DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyVeryHard,
}

// DifficultyIndex returns d's position in sequence, or -1 if absent.
func DifficultyIndex(sequence []Difficulty, d Difficulty) int {
	for i, s := range sequence {
		if s == d {
			return i
		}
	}
	return -1
}

// Concept is a named skill/topic a challenge exercises, e.g. "recursion".
type Concept string

// TaskStatus is the lifecycle state of a Task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusStopped   TaskStatus = "stopped"
)

// PhaseStatus tracks progress of a single phase within a Task's run sequence.
type PhaseStatus struct {
	PhaseName        string     `json:"phase_name"`
	Status           TaskStatus `json:"status"`
	CurrentIteration int        `json:"current_iteration"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	Error            string     `json:"error,omitempty"`
}

// IsTerminal reports whether the phase has finished, successfully or not.
func (p PhaseStatus) IsTerminal() bool {
	switch p.Status {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusStopped:
		return true
	default:
		return false
	}
}

// Session owns exactly one challenge tree and groups the tasks run against it.
type Session struct {
	ID        string    `json:"id"`
	TreeName  string    `json:"tree_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Task is a single background run of one or more MCTS phases against a
// session's tree, resumable from a checkpointed phase+iteration.
type Task struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	Phases    []string      `json:"phases"`
	Status    TaskStatus    `json:"status"`
	PhaseLog  []PhaseStatus `json:"phase_log"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Error     string        `json:"error,omitempty"`

	// Resume metadata, set when this task was created to continue a prior run.
	TreePicklePath  string `json:"tree_pickle_path,omitempty"`
	ResumePhase     string `json:"resume_phase,omitempty"`
	ResumeIteration int    `json:"resume_iteration,omitempty"`
}

// CurrentPhase returns the most recent, possibly still-running, phase entry.
func (t *Task) CurrentPhase() *PhaseStatus {
	if len(t.PhaseLog) == 0 {
		return nil
	}
	return &t.PhaseLog[len(t.PhaseLog)-1]
}
