// Package config loads and validates the tree, phase, and experiment YAML
// configuration files, using env-var expansion, mergo default-merging, and
// yaml/validator struct tags.
package config

// SearchParams controls node selection and value updates during a phase's
// search loop.
type SearchParams struct {
	ExplorationConstant       float64 `yaml:"exploration_constant" validate:"required,gt=0"`
	MaxSelectionAttempts      int     `yaml:"max_selection_attempts" validate:"required,min=1"`
	DiscountFactor            float64 `yaml:"discount_factor" validate:"required,gt=0,lte=1"`
	ZeroValuePriorityThreshold int    `yaml:"zero_value_priority_threshold" validate:"required,min=1"`
	LearningRate              float64 `yaml:"learning_rate" validate:"required,gt=0,lte=1"`
	MaxAttempts               int     `yaml:"max_attempts" validate:"required,min=1"`
}

// ScoringParams configures the non-fixed terms of a phase's node-value
// formula. The hardness weights (phase 2/3) and the difficulty weight map
// (phase 1) are fixed constants in the formula code itself, not config —
// see pkg/mcts/phase1.go and phase2.go.
type ScoringParams struct {
	MaxNumPassed float64 `yaml:"max_num_passed" validate:"required,gt=0"`
}

// EnvironmentParams describes the external evaluation service a phase talks to.
type EnvironmentParams struct {
	Name           string `yaml:"name" validate:"required"`
	BaseURL        string `yaml:"base_url" validate:"required,url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"required,min=1"`
}

// PhaseParams is the full parameter set for one phase.
type PhaseParams struct {
	NumNodesPerIteration int     `yaml:"num_nodes_per_iteration" validate:"required,min=1"`
	MaxIterations        int     `yaml:"max_iterations" validate:"required,min=1"`
	ConvergenceChecks    int     `yaml:"convergence_checks" validate:"required,min=1"`
	ConvergenceThreshold float64 `yaml:"convergence_threshold" validate:"required,gt=0"`
	CheckpointInterval   int     `yaml:"checkpoint_interval" validate:"required,min=1"`

	// PerformanceThreshold gates phase 1/2 expansion: a node is only expanded
	// further while its value is at least this high.
	PerformanceThreshold float64 `yaml:"performance_threshold" validate:"required,gt=0,lte=1"`
	// ExplorationProbability is the chance expansion adds a concept (combines
	// with another node) rather than simply advancing difficulty.
	ExplorationProbability float64 `yaml:"exploration_probability" validate:"required,gte=0,lte=1"`

	// VariationsPerConcept and HardnessThreshold are only meaningful to phase 3.
	VariationsPerConcept int     `yaml:"variations_per_concept,omitempty"`
	HardnessThreshold    float64 `yaml:"hardness_threshold,omitempty"`

	Search      SearchParams      `yaml:"search" validate:"required"`
	Scoring     ScoringParams     `yaml:"scoring" validate:"required"`
	Environment EnvironmentParams `yaml:"environment" validate:"required"`
}

// PhaseConfig names a phase and carries its parameters.
type PhaseConfig struct {
	Name       string      `yaml:"name" validate:"required"`
	Parameters PhaseParams `yaml:"parameters" validate:"required"`
}

// TreeConfig seeds a new tree: one root per concept, plus the difficulty
// sequence nodes progress through.
type TreeConfig struct {
	Concepts     []string `yaml:"concepts" validate:"required,min=1"`
	Difficulties []string `yaml:"difficulties" validate:"required,min=1"`
}

// ExperimentConfig names the run and where its checkpoints land on disk.
type ExperimentConfig struct {
	Name      string `yaml:"name" validate:"required"`
	MaxDepth  int    `yaml:"max_depth" validate:"required,min=1"`
	OutputDir string `yaml:"output_dir" validate:"required"`
}

// Settings is the fully assembled, validated configuration for one run.
type Settings struct {
	Tree       TreeConfig             `yaml:"tree" validate:"required"`
	Phases     map[string]PhaseConfig `yaml:"phases" validate:"required,min=1,dive"`
	Experiment ExperimentConfig       `yaml:"experiment" validate:"required"`
}
