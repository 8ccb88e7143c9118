package services

import (
	"context"
	"errors"
	"time"

	"github.com/prismbench/search/pkg/apperrors"
	"github.com/prismbench/search/pkg/config"
	"github.com/prismbench/search/pkg/environment"
	"github.com/prismbench/search/pkg/mcts"
	"github.com/prismbench/search/pkg/models"
	"github.com/prismbench/search/pkg/tree"
)

// MCTSService builds a pkg/mcts.Scheduler from configuration and a session's
// tree, and runs one or a sequence of phases against it.
type MCTSService struct {
	settings      *config.Settings
	sessions      *SessionService
	checkpointDir string
	concepts      []models.Concept
}

// NewMCTSService builds an MCTSService, pre-computing the deduplicated concept
// vocabulary it hands to each Scheduler (see mcts.Scheduler.Concepts).
func NewMCTSService(settings *config.Settings, sessions *SessionService, checkpointDir string) *MCTSService {
	return &MCTSService{
		settings:      settings,
		sessions:      sessions,
		checkpointDir: checkpointDir,
		concepts:      conceptVocabulary(settings.Tree),
	}
}

func conceptVocabulary(treeCfg config.TreeConfig) []models.Concept {
	seen := make(map[models.Concept]struct{})
	var out []models.Concept
	add := func(name string) {
		c := models.Concept(name)
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	for _, c := range treeCfg.Concepts {
		add(c)
	}
	return out
}

// RunPhase runs one named phase against sessionID's tree, optionally
// resuming from a prior checkpoint. It blocks until the phase's scheduler
// returns (converged, exhausted its iteration budget, or was cancelled).
func (m *MCTSService) RunPhase(ctx context.Context, sessionID, phaseName string, resume *ResumeSpec) error {
	params, err := m.settings.PhaseParamsFor(phaseName)
	if err != nil {
		return apperrors.NewServiceError("mcts", apperrors.ErrConfiguration, err.Error())
	}

	t, err := m.sessions.GetTree(sessionID)
	if err != nil {
		return err
	}

	resumeIteration := 0
	if resume != nil && resume.TreePicklePath != "" {
		loaded, err := tree.Load(resume.TreePicklePath)
		if err != nil {
			return apperrors.NewServiceError("mcts", apperrors.ErrMCTSExecution, err.Error())
		}
		if err := m.sessions.ReplaceTree(sessionID, loaded); err != nil {
			return err
		}
		t = loaded
		resumeIteration = resume.Iteration
	}

	envClient := environment.NewClient(params.Environment.BaseURL, time.Duration(params.Environment.TimeoutSeconds)*time.Second)

	scheduler, err := mcts.New(phaseName, t, params, envClient, m.settings.Experiment, m.checkpointDir, m.concepts)
	if err != nil {
		return apperrors.NewServiceError("mcts", apperrors.ErrConfiguration, err.Error())
	}
	scheduler.ResumeIteration = resumeIteration

	if err := scheduler.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return apperrors.NewServiceError("mcts", apperrors.ErrMCTSExecution, err.Error())
	}
	return nil
}

// RunMultiplePhases runs each named phase in order against sessionID's tree,
// stopping at the first error (including cancellation).
func (m *MCTSService) RunMultiplePhases(ctx context.Context, sessionID string, phases []string) error {
	for _, phaseName := range phases {
		if err := m.RunPhase(ctx, sessionID, phaseName, nil); err != nil {
			return err
		}
	}
	return nil
}
