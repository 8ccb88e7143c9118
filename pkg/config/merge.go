package config

import (
	"fmt"

	"dario.cat/mergo"
)

// mergePhaseParams overlays user-provided overrides onto the built-in
// defaults for a phase using mergo.Merge(dst, src, mergo.WithOverride).
func mergePhaseParams(phaseName string, override PhaseParams) (PhaseParams, error) {
	merged := defaultPhaseParams(phaseName)
	if err := mergo.Merge(&merged, override, mergo.WithOverride); err != nil {
		return PhaseParams{}, fmt.Errorf("config: merge %s parameters: %w", phaseName, err)
	}
	return merged, nil
}
