package mcts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/prismbench/search/pkg/config"
	"github.com/prismbench/search/pkg/environment"
	"github.com/prismbench/search/pkg/models"
	"github.com/prismbench/search/pkg/tree"
)

func fixedAttemptServer(t *testing.T, success bool, passed int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := environment.Results{
			Success: success,
			DataTrail: []environment.Attempt{
				{ProblemStatement: "dummy", TestsPassedNum: passed, Success: success, AttemptNum: 1},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func testPhaseParams(envURL string) config.PhaseParams {
	return config.PhaseParams{
		NumNodesPerIteration:   2,
		MaxIterations:          12,
		ConvergenceChecks:      3,
		ConvergenceThreshold:   0.001,
		CheckpointInterval:     100,
		PerformanceThreshold:   0.7,
		ExplorationProbability: 0.2,
		Search: config.SearchParams{
			ExplorationConstant:        1.41,
			MaxSelectionAttempts:       10,
			DiscountFactor:             0.9,
			ZeroValuePriorityThreshold: 2,
			LearningRate:               0.3,
			MaxAttempts:                3,
		},
		Scoring: config.ScoringParams{
			MaxNumPassed: 10,
		},
		Environment: config.EnvironmentParams{
			Name:           "test-env",
			BaseURL:        envURL,
			TimeoutSeconds: 5,
		},
	}
}

func TestSchedulerRunsPhase1ToCompletion(t *testing.T) {
	srv := fixedAttemptServer(t, true, 5)
	defer srv.Close()

	tr := tree.Initialize([]models.Concept{"loops", "conditionals", "recursion"}, models.DefaultDifficulties)
	params := testPhaseParams(srv.URL)
	experiment := config.ExperimentConfig{Name: "unit-test", MaxDepth: 3, OutputDir: t.TempDir()}
	envClient := environment.NewClient(srv.URL, 5*time.Second)

	sched, err := New("phase_1", tr, params, envClient, experiment, experiment.OutputDir,
		[]models.Concept{"loops", "conditionals", "recursion"})
	require.NoError(t, err)

	err = sched.Run(context.Background())
	require.NoError(t, err)

	visited := 0
	for _, n := range tr.Nodes {
		if n.Visits > 0 {
			visited++
		}
	}
	require.Greater(t, visited, 0, "at least one node should have been evaluated")
}

func TestSchedulerRespectsCancellation(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		resp := environment.Results{Success: true, DataTrail: []environment.Attempt{{TestsPassedNum: 5, Success: true}}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer slow.Close()

	tr := tree.Initialize([]models.Concept{"loops", "conditionals"}, models.DefaultDifficulties)
	params := testPhaseParams(slow.URL)
	params.MaxIterations = 1000
	params.ConvergenceChecks = 1000
	experiment := config.ExperimentConfig{Name: "cancel-test", MaxDepth: 3, OutputDir: t.TempDir()}
	envClient := environment.NewClient(slow.URL, 5*time.Second)

	sched, err := New("phase_1", tr, params, envClient, experiment, experiment.OutputDir,
		[]models.Concept{"loops", "conditionals"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err = sched.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	runDir := filepath.Join(experiment.OutputDir, "cancel-test_phase_1_3")
	entries, err := os.ReadDir(runDir)
	require.NoError(t, err)
	var foundCancelled bool
	for _, e := range entries {
		if strings.Contains(e.Name(), "cancelled_iteration_") {
			foundCancelled = true
		}
	}
	require.True(t, foundCancelled, "expected a cancelled_iteration_ checkpoint file, got %v", entries)
}

func TestSchedulerUnknownPhaseErrors(t *testing.T) {
	tr := tree.Initialize([]models.Concept{"loops"}, models.DefaultDifficulties)
	_, err := New("phase_unknown", tr, config.PhaseParams{}, nil, config.ExperimentConfig{}, t.TempDir(), nil)
	require.Error(t, err)
}
