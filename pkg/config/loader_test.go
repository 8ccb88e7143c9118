package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const treeYAML = `
concepts: ["loops", "conditionals", "recursion"]
difficulties: ["very easy", "easy", "medium", "hard", "very hard"]
`

const phaseYAML = `
phases:
  phase_1:
    parameters:
      num_nodes_per_iteration: 8
      search:
        exploration_constant: 2.0
      environment:
        name: python_sandbox
        base_url: http://localhost:9000
        timeout_seconds: 60
`

const experimentYAML = `
name: smoke-run
max_depth: 5
output_dir: /tmp/prismbench-experiments
`

func writeConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tree_configs.yaml"), []byte(treeYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "phase_configs.yaml"), []byte(phaseYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "experiment_configs.yaml"), []byte(experimentYAML), 0o644))
	return dir
}

func TestLoadMergesDefaultsWithOverrides(t *testing.T) {
	dir := writeConfigDir(t)

	settings, err := Load(dir)
	require.NoError(t, err)

	phase1, err := settings.PhaseParamsFor("phase_1")
	require.NoError(t, err)

	require.Equal(t, 8, phase1.NumNodesPerIteration, "override should take effect")
	require.Equal(t, 2.0, phase1.Search.ExplorationConstant, "override should take effect")
	require.Equal(t, 200, phase1.MaxIterations, "unset field should fall back to built-in default")
	require.Equal(t, 0.9, phase1.Search.DiscountFactor, "unset nested field should fall back to default")
}

func TestLoadMissingFileReturnsLoadError(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	require.Error(t, err)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestLoadRejectsInvalidExperimentConfig(t *testing.T) {
	dir := writeConfigDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "experiment_configs.yaml"), []byte("name: \"\"\nmax_depth: 0\noutput_dir: \"\"\n"), 0o644))

	_, err := Load(dir)
	require.ErrorIs(t, err, ErrValidationFailed)
}
