// Package mcts implements the phase registry and the phase scheduler that
// drives one phase's search loop over a tree.Tree, plus the three concrete
// phase strategies (phase1.go, phase2.go, phase3.go).
package mcts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prismbench/search/pkg/config"
	"github.com/prismbench/search/pkg/environment"
	"github.com/prismbench/search/pkg/models"
	"github.com/prismbench/search/pkg/tree"
)

// SelectedNode is the outcome of a strategy's SelectNode call: the node
// chosen for evaluation, plus whatever scratch context (e.g. gathered
// previous-problem statements) later stages of the same iteration need.
type SelectedNode struct {
	Node             *tree.ChallengeNode
	PreviousProblems []string
}

// EvalOutcome is the result of evaluating a node against the environment
// service, passed on to CalculateNodeValue.
type EvalOutcome struct {
	Results environment.Results
}

// Scheduler runs one phase's search loop against a tree.Tree: it owns
// iteration bookkeeping, bounded concurrent evaluation, per-node timeouts,
// conflict avoidance, and periodic checkpointing.
//
// Scheduler.Run is the only place that mutates Tree; evaluation goroutines
// only call out to the environment service and report back on a channel —
// see pkg/tree's Tree doc comment for why that single-owner rule exists.
type Scheduler struct {
	Tree      *tree.Tree
	PhaseName string
	Params    config.PhaseParams
	Env       *environment.Client
	Log       *slog.Logger

	// CheckpointDir is the directory checkpoints for this run are written
	// under; Experiment names the run for the checkpoint path pattern.
	CheckpointDir string
	Experiment    config.ExperimentConfig

	// ResumeIteration, when non-zero, is the iteration number to resume
	// counting from (the tree itself is already loaded by the caller).
	ResumeIteration int

	// Concepts is the configured concept vocabulary, seeded from the tree
	// configuration's concept list. The built-in strategies do not read it:
	// expansion takes a new node's concepts from its parents (tree.AddNode).
	Concepts []models.Concept

	strategy Strategy
	rng      *rand.Rand

	mu       sync.Mutex
	inFlight map[string]struct{}

	iteration          int
	noChangeIterations int
	lastValue          float64
}

// New builds a Scheduler for the named phase. It fails fast if no strategy
// is registered for phaseName, so configuration mistakes surface before any
// goroutines are started.
func New(phaseName string, t *tree.Tree, params config.PhaseParams, env *environment.Client, experiment config.ExperimentConfig, checkpointDir string, concepts []models.Concept) (*Scheduler, error) {
	strategy, err := StrategyFor(phaseName)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		Tree:          t,
		PhaseName:     phaseName,
		Params:        params,
		Env:           env,
		Log:           slog.Default().With("phase", phaseName),
		CheckpointDir: checkpointDir,
		Experiment:    experiment,
		Concepts:      concepts,
		strategy:      strategy,
		rng:           rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0xC0FFEE)),
		inFlight:      make(map[string]struct{}),
	}, nil
}

type evalResult struct {
	sel     *SelectedNode
	outcome EvalOutcome
	err     error
}

// Run executes the phase's search loop until convergence, max-iterations, or
// ctx cancellation, whichever comes first. It returns ctx.Err() on
// cancellation, a wrapped error if the strategy's InitializePhase fails, and
// nil otherwise.
func (s *Scheduler) Run(ctx context.Context) error {
	s.iteration = s.ResumeIteration
	if s.strategy.InitializePhase != nil {
		if err := s.strategy.InitializePhase(s); err != nil {
			return fmt.Errorf("mcts: initialize phase %s: %w", s.PhaseName, err)
		}
	}

	done := make(chan evalResult, s.Params.NumNodesPerIteration)
	var wg sync.WaitGroup
	running := 0

	drain := func() {
		wg.Wait()
	}

	for {
		if ctx.Err() != nil {
			drain()
			s.checkpoint(checkpointCancelled)
			return ctx.Err()
		}

		for running < s.Params.NumNodesPerIteration && s.iteration < s.Params.MaxIterations {
			sel, err := s.selectEligibleNode()
			if err != nil {
				s.Log.Debug("no eligible node this round", "error", err)
				break
			}
			s.markInFlight(sel.Node)
			wg.Add(1)
			running++
			s.iteration++
			go s.evaluateNodeTask(ctx, sel, done, &wg)
		}

		if running == 0 {
			s.Log.Info("phase loop stopping: no more eligible work", "iteration", s.iteration)
			s.checkpoint(checkpointFinal)
			s.Log.Info("phase complete", "iteration", s.iteration, "summary", s.Tree.Summary())
			return nil
		}

		select {
		case res := <-done:
			running--
			s.unmarkInFlight(res.sel.Node)
			if res.err != nil {
				s.Log.Warn("node evaluation failed", "node_id", res.sel.Node.ID, "error", res.err)
				continue
			}
			s.processResult(ctx, res)

			if s.iteration%s.Params.CheckpointInterval == 0 {
				s.checkpoint(checkpointPeriodic)
			}
			if s.hasConverged() {
				s.Log.Info("phase converged", "iteration", s.iteration)
				drain()
				s.checkpoint(checkpointFinal)
				s.Log.Info("phase complete", "iteration", s.iteration, "summary", s.Tree.Summary())
				return nil
			}
		case <-ctx.Done():
			drain()
			s.checkpoint(checkpointCancelled)
			return ctx.Err()
		}
	}
}

// evaluateNodeTask runs one node's evaluation against the environment
// service, racing the call against its own per-node timeout and against ctx
// cancellation.
func (s *Scheduler) evaluateNodeTask(ctx context.Context, sel *SelectedNode, done chan<- evalResult, wg *sync.WaitGroup) {
	defer wg.Done()

	timeout := time.Duration(s.Params.Environment.TimeoutSeconds) * time.Second
	evalCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcome, err := s.strategy.EvaluateNode(s, sel, evalCtx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("mcts: node %s timed out after %s: %w", sel.Node.ID, timeout, err)
	}

	select {
	case done <- evalResult{sel: sel, outcome: outcome, err: err}:
	case <-ctx.Done():
	}
}

// processResult applies CalculateNodeValue/BackpropagateNodeValue/ExpandNode
// on the scheduler's owning goroutine, the only place Tree is mutated.
func (s *Scheduler) processResult(ctx context.Context, res evalResult) {
	value := s.strategy.CalculateNodeValue(s, res.sel, res.outcome)
	s.strategy.BackpropagateNodeValue(s, res.sel, value)
	if err := s.strategy.ExpandNode(s, res.sel, ctx); err != nil {
		s.Log.Warn("expand node failed", "node_id", res.sel.Node.ID, "error", err)
	}

	delta := value - s.lastValue
	if delta < 0 {
		delta = -delta
	}
	if delta < s.Params.ConvergenceThreshold {
		s.noChangeIterations++
	} else {
		s.noChangeIterations = 0
	}
	s.lastValue = value
}

func (s *Scheduler) hasConverged() bool {
	return s.noChangeIterations >= s.Params.ConvergenceChecks
}

// selectEligibleNode asks the strategy for a node up to MaxSelectionAttempts
// times, skipping any candidate whose subtree currently has an in-flight
// evaluation — this stands in for a lock on tree mutation.
func (s *Scheduler) selectEligibleNode() (*SelectedNode, error) {
	attempts := s.Params.Search.MaxSelectionAttempts
	if attempts <= 0 {
		attempts = 10
	}
	for i := 0; i < attempts; i++ {
		sel, err := s.strategy.SelectNode(s)
		if err != nil {
			return nil, err
		}
		if sel == nil || sel.Node == nil {
			return nil, fmt.Errorf("mcts: strategy returned no node")
		}
		if !s.hasConflict(sel.Node) {
			return sel, nil
		}
	}
	return nil, fmt.Errorf("mcts: no eligible node after %d attempts", attempts)
}

func (s *Scheduler) hasConflict(node *tree.ChallengeNode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[node.ID]; busy {
		return true
	}
	for _, id := range node.AncestorIDs() {
		if _, busy := s.inFlight[id]; busy {
			return true
		}
	}
	return false
}

func (s *Scheduler) markInFlight(node *tree.ChallengeNode) {
	s.mu.Lock()
	s.inFlight[node.ID] = struct{}{}
	s.mu.Unlock()
}

func (s *Scheduler) unmarkInFlight(node *tree.ChallengeNode) {
	s.mu.Lock()
	delete(s.inFlight, node.ID)
	s.mu.Unlock()
}

// Rand returns the scheduler's seeded RNG, for strategies' weighted sampling.
func (s *Scheduler) Rand() *rand.Rand { return s.rng }

// Iteration returns the current 1-based iteration counter.
func (s *Scheduler) Iteration() int { return s.iteration }

// checkpointKind distinguishes why a checkpoint is being written, which
// determines its filename: periodic checkpoints are numbered by iteration,
// final checkpoints share one well-known name, and cancelled checkpoints
// carry the iteration they stopped at so they're never mistaken for a
// converged run.
type checkpointKind int

const (
	checkpointPeriodic checkpointKind = iota
	checkpointFinal
	checkpointCancelled
)

func (k checkpointKind) String() string {
	switch k {
	case checkpointFinal:
		return "final"
	case checkpointCancelled:
		return "cancelled"
	default:
		return "periodic"
	}
}

func (s *Scheduler) checkpoint(kind checkpointKind) {
	runDir := fmt.Sprintf("%s_%s_%d", s.Experiment.Name, s.PhaseName, s.Experiment.MaxDepth)
	dir := filepath.Join(s.CheckpointDir, runDir)
	if err := ensureDir(dir); err != nil {
		s.Log.Error("checkpoint: create directory", "error", err)
		return
	}

	var base string
	switch kind {
	case checkpointFinal:
		base = fmt.Sprintf("%s_tree_final.pkl", s.PhaseName)
	case checkpointCancelled:
		base = fmt.Sprintf("%s_tree_cancelled_iteration_%d.pkl", s.PhaseName, s.iteration)
	default:
		base = fmt.Sprintf("%s_tree_%d.pkl", s.PhaseName, s.iteration)
	}
	path := filepath.Join(dir, base)
	if err := s.Tree.Save(path); err != nil {
		s.Log.Error("checkpoint: save tree", "error", err)
		return
	}

	dotPath := filepath.Join(dir, strings.TrimSuffix(base, ".pkl")+".dot")
	if err := s.Tree.WriteDOT(dotPath); err != nil {
		s.Log.Warn("checkpoint: write dot visualization", "error", err)
	}

	s.Log.Info("checkpoint written", "path", path, "kind", kind.String(), "iteration", s.iteration)
}
