package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/prismbench/search/pkg/apperrors"
	"github.com/prismbench/search/pkg/config"
	"github.com/prismbench/search/pkg/environment"
)

func testSettings(envURL string) *config.Settings {
	params := config.PhaseParams{
		NumNodesPerIteration:   2,
		MaxIterations:          6,
		ConvergenceChecks:      2,
		ConvergenceThreshold:   0.001,
		CheckpointInterval:     50,
		PerformanceThreshold:   0.7,
		ExplorationProbability: 0.2,
		Search: config.SearchParams{
			ExplorationConstant:        1.41,
			MaxSelectionAttempts:       10,
			DiscountFactor:             0.9,
			ZeroValuePriorityThreshold: 1,
			LearningRate:               0.3,
			MaxAttempts:                3,
		},
		Scoring: config.ScoringParams{MaxNumPassed: 10},
		Environment: config.EnvironmentParams{
			Name:           "test-env",
			BaseURL:        envURL,
			TimeoutSeconds: 5,
		},
	}
	return &config.Settings{
		Tree: config.TreeConfig{
			Concepts:     []string{"loops", "conditionals"},
			Difficulties: []string{"very easy", "easy", "medium", "hard", "very hard"},
		},
		Phases: map[string]config.PhaseConfig{
			"phase_1": {Name: "phase_1", Parameters: params},
			"phase_2": {Name: "phase_2", Parameters: params},
		},
		Experiment: config.ExperimentConfig{Name: "svc-test", MaxDepth: 2, OutputDir: ""},
	}
}

func successEnvServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := environment.Results{
			Success: true,
			DataTrail: []environment.Attempt{
				{TestsPassedNum: 5, Success: true, AttemptNum: 1},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestTaskServiceRunsToCompletion(t *testing.T) {
	srv := successEnvServer(t)
	defer srv.Close()

	settings := testSettings(srv.URL)
	settings.Experiment.OutputDir = t.TempDir()

	sessions := NewSessionService()
	session, err := sessions.CreateSession("tree", settings.Tree)
	require.NoError(t, err)

	mctsSvc := NewMCTSService(settings, sessions, settings.Experiment.OutputDir)
	tasks := NewTaskService(mctsSvc, sessions)

	task, err := tasks.CreateTask(context.Background(), session.ID, []string{"phase_1"}, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := tasks.GetTask(task.ID)
		require.NoError(t, err)
		return got.Status == "completed" || got.Status == "failed"
	}, 5*time.Second, 20*time.Millisecond)

	final, err := tasks.GetTask(task.ID)
	require.NoError(t, err)
	require.Equal(t, "completed", string(final.Status))
	require.NotEmpty(t, final.PhaseLog)
}

// TestTaskServiceResumeMidSequenceSkipsEarlierPhases resumes a task into
// phase_2 of a [phase_1, phase_2] sequence and checks phase_1 is logged as
// already completed without mcts.RunPhase ever running it.
func TestTaskServiceResumeMidSequenceSkipsEarlierPhases(t *testing.T) {
	srv := successEnvServer(t)
	defer srv.Close()

	settings := testSettings(srv.URL)
	settings.Experiment.OutputDir = t.TempDir()

	sessions := NewSessionService()
	session, err := sessions.CreateSession("tree", settings.Tree)
	require.NoError(t, err)

	mctsSvc := NewMCTSService(settings, sessions, settings.Experiment.OutputDir)
	tasks := NewTaskService(mctsSvc, sessions)

	resume := &ResumeSpec{ResumePhase: "phase_2"}
	task, err := tasks.CreateTask(context.Background(), session.ID, []string{"phase_1", "phase_2"}, resume)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := tasks.GetTask(task.ID)
		require.NoError(t, err)
		return got.Status == "completed" || got.Status == "failed"
	}, 5*time.Second, 20*time.Millisecond)

	final, err := tasks.GetTask(task.ID)
	require.NoError(t, err)
	require.Len(t, final.PhaseLog, 2)
	require.Equal(t, "phase_1", final.PhaseLog[0].PhaseName)
	require.Equal(t, "completed", string(final.PhaseLog[0].Status))
	require.Equal(t, "phase_2", final.PhaseLog[1].PhaseName)
}

func TestTaskServiceCreateTaskUnknownSessionErrors(t *testing.T) {
	sessions := NewSessionService()
	mctsSvc := NewMCTSService(testSettings("http://unused"), sessions, t.TempDir())
	tasks := NewTaskService(mctsSvc, sessions)

	_, err := tasks.CreateTask(context.Background(), "missing", []string{"phase_1"}, nil)
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestStopTaskOnUnknownTaskErrors(t *testing.T) {
	sessions := NewSessionService()
	mctsSvc := NewMCTSService(testSettings("http://unused"), sessions, t.TempDir())
	tasks := NewTaskService(mctsSvc, sessions)

	require.ErrorIs(t, tasks.StopTask("nope"), apperrors.ErrTaskNotFound)
}

func TestCleanupOldTasksRemovesTerminalPastRetention(t *testing.T) {
	sessions := NewSessionService()
	mctsSvc := NewMCTSService(testSettings("http://unused"), sessions, t.TempDir())
	tasks := NewTaskService(mctsSvc, sessions)

	session, err := sessions.CreateSession("tree", testSettings("http://unused").Tree)
	require.NoError(t, err)
	task, err := tasks.CreateTask(context.Background(), session.ID, []string{"phase_1"}, nil)
	require.NoError(t, err)

	tasks.setStatus(task.ID, "completed")
	got, err := tasks.GetTask(task.ID)
	require.NoError(t, err)
	got.UpdatedAt = got.UpdatedAt.Add(-48 * time.Hour)

	removed := tasks.CleanupOldTasks(24 * time.Hour)
	require.Equal(t, 1, removed)

	_, err = tasks.GetTask(task.ID)
	require.ErrorIs(t, err, apperrors.ErrTaskNotFound)
}
