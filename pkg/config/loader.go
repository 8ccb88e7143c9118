package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// rawPhaseFile is the on-disk shape of phase_configs.yaml: a map of phase
// name to an (optionally partial) PhaseConfig, merged over built-in defaults.
type rawPhaseFile struct {
	Phases map[string]PhaseConfig `yaml:"phases"`
}

// Load reads tree_configs.yaml, phase_configs.yaml, and experiment_configs.yaml
// from configDir, expands {{.VAR}}-style environment references, merges each
// phase's parameters over its built-in defaults, and validates the result.
func Load(configDir string) (*Settings, error) {
	var tree TreeConfig
	if err := loadYAML(filepath.Join(configDir, "tree_configs.yaml"), &tree); err != nil {
		return nil, err
	}

	var rawPhases rawPhaseFile
	if err := loadYAML(filepath.Join(configDir, "phase_configs.yaml"), &rawPhases); err != nil {
		return nil, err
	}

	var experiment ExperimentConfig
	if err := loadYAML(filepath.Join(configDir, "experiment_configs.yaml"), &experiment); err != nil {
		return nil, err
	}

	phases := make(map[string]PhaseConfig, len(rawPhases.Phases))
	for name, raw := range rawPhases.Phases {
		merged, err := mergePhaseParams(name, raw.Parameters)
		if err != nil {
			return nil, NewLoadError("phase_configs.yaml", err)
		}
		if raw.Name == "" {
			raw.Name = name
		}
		phases[name] = PhaseConfig{Name: raw.Name, Parameters: merged}
	}

	settings := &Settings{Tree: tree, Phases: phases, Experiment: experiment}
	if err := validate.Struct(settings); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return settings, nil
}

// loadYAML reads path, expands environment variables, and unmarshals into out.
func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewLoadError(path, ErrConfigNotFound)
		}
		return NewLoadError(path, err)
	}
	expanded := ExpandEnv(data)
	if err := yaml.Unmarshal(expanded, out); err != nil {
		return NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}
	return nil
}

// PhaseParamsFor returns the validated parameters for a named phase.
func (s *Settings) PhaseParamsFor(phaseName string) (PhaseParams, error) {
	phase, ok := s.Phases[phaseName]
	if !ok {
		return PhaseParams{}, fmt.Errorf("%w: %s", ErrPhaseNotFound, phaseName)
	}
	return phase.Parameters, nil
}
