package mcts

import (
	"context"
	"fmt"
)

// Strategy bundles the five extension points a phase implementation
// supplies. InitializePhase is optional — nil means "nothing to do before
// the first iteration".
type Strategy struct {
	InitializePhase        func(s *Scheduler) error
	SelectNode             func(s *Scheduler) (*SelectedNode, error)
	EvaluateNode           func(s *Scheduler, sel *SelectedNode, ctx context.Context) (EvalOutcome, error)
	CalculateNodeValue     func(s *Scheduler, sel *SelectedNode, outcome EvalOutcome) float64
	BackpropagateNodeValue func(s *Scheduler, sel *SelectedNode, value float64)
	ExpandNode             func(s *Scheduler, sel *SelectedNode, ctx context.Context) error
}

var registry = map[string]Strategy{}

// registerStrategy is called from each phase file's package init() to add
// its Strategy to the registry by name.
func registerStrategy(phaseName string, s Strategy) {
	registry[phaseName] = s
}

// StrategyFor looks up a registered phase by name.
func StrategyFor(phaseName string) (Strategy, error) {
	s, ok := registry[phaseName]
	if !ok {
		return Strategy{}, fmt.Errorf("mcts: no strategy registered for phase %q", phaseName)
	}
	return s, nil
}

// ListPhases returns the names of every registered phase, for diagnostics.
func ListPhases() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
