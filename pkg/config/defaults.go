package config

// defaultPhaseParams returns the built-in defaults for a given phase name.
// User-supplied phase_configs.yaml entries are merged on top of these with
// mergo.WithOverride (see loader.go).
func defaultPhaseParams(phaseName string) PhaseParams {
	base := PhaseParams{
		NumNodesPerIteration:    4,
		MaxIterations:           200,
		ConvergenceChecks:       5,
		ConvergenceThreshold:    0.01,
		CheckpointInterval:      10,
		PerformanceThreshold:    0.7,
		ExplorationProbability:  0.2,
		Search: SearchParams{
			ExplorationConstant:        1.41,
			MaxSelectionAttempts:       10,
			DiscountFactor:             0.9,
			ZeroValuePriorityThreshold: 20,
			LearningRate:               0.3,
			MaxAttempts:                3,
		},
		Scoring: ScoringParams{
			MaxNumPassed: 10,
		},
		Environment: EnvironmentParams{
			TimeoutSeconds: 120,
		},
	}
	if phaseName == "phase_3" {
		base.VariationsPerConcept = 3
		base.HardnessThreshold = 0.6
	}
	return base
}
