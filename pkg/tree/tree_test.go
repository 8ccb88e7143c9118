package tree

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prismbench/search/pkg/models"
)

func TestUCB1UnvisitedIsInfinite(t *testing.T) {
	n := NewChallengeNode(nil, models.DifficultyEasy, "", 1, 1)
	require.True(t, math.IsInf(n.UCB1(10, 1.41), 1))
}

func TestUCB1PrefersHigherValue(t *testing.T) {
	a := NewChallengeNode(nil, models.DifficultyEasy, "", 1, 1)
	a.Visits = 5
	a.Value = 0.9
	b := NewChallengeNode(nil, models.DifficultyEasy, "", 1, 1)
	b.Visits = 5
	b.Value = 0.1
	require.Greater(t, a.UCB1(20, 1.41), b.UCB1(20, 1.41))
}

func TestUpdateScoreAppliesLearningRate(t *testing.T) {
	n := NewChallengeNode(nil, models.DifficultyEasy, "", 1, 1)
	n.UpdateScore(0.5, 1.0)
	require.Equal(t, 1, n.Visits)
	require.InDelta(t, 0.5, n.Value, 1e-9)

	n.UpdateScore(0.5, 0.0)
	require.Equal(t, 2, n.Visits)
	require.InDelta(t, 0.25, n.Value, 1e-9)
}

func TestAncestorIDsDeduplicatesDiamond(t *testing.T) {
	tr := &Tree{Nodes: map[string]*ChallengeNode{}, Difficulties: models.DefaultDifficulties}
	root1 := tr.AddNode(nil, AddNodeOverrides{Concepts: []models.Concept{"loops"}, Difficulty: models.DifficultyVeryEasy})
	root2 := tr.AddNode(nil, AddNodeOverrides{Concepts: []models.Concept{"recursion"}, Difficulty: models.DifficultyVeryEasy})
	tr.Roots = []*ChallengeNode{root1, root2}

	left := tr.AddNode([]*ChallengeNode{root1}, AddNodeOverrides{})
	right := tr.AddNode([]*ChallengeNode{root1, root2}, AddNodeOverrides{})
	child := tr.AddNode([]*ChallengeNode{left, right}, AddNodeOverrides{Phase: 3})

	ids := child.AncestorIDs()
	require.ElementsMatch(t, []string{left.ID, right.ID, root1.ID, root2.ID}, ids)
}

func TestInitializeBuildsRootsAndPairLayer(t *testing.T) {
	tr := Initialize(
		[]models.Concept{"loops", "conditionals", "recursion"},
		models.DefaultDifficulties,
	)
	require.Len(t, tr.Roots, 3)
	for _, r := range tr.Roots {
		require.Equal(t, models.DifficultyVeryEasy, r.Difficulty)
		require.Equal(t, 0, r.Depth)
		require.Len(t, r.Concepts, 1)
	}

	var pairNodes int
	for _, n := range tr.Nodes {
		if n.Depth == 1 {
			pairNodes++
			require.Equal(t, models.DifficultyEasy, n.Difficulty)
			require.Len(t, n.Concepts, 2)
			require.Len(t, n.Parents, 2)
		}
	}
	require.Equal(t, 3, pairNodes) // C(3,2) unordered pairs
	require.Len(t, tr.Nodes, 6)    // 3 roots + 3 pairs
}

func TestAddNodeDedupesSameConceptsAndDifficulty(t *testing.T) {
	tr := Initialize([]models.Concept{"loops", "conditionals"}, models.DefaultDifficulties)
	require.Len(t, tr.Nodes, 3) // 2 roots + 1 pair

	again := tr.AddNode([]*ChallengeNode{tr.Roots[0], tr.Roots[1]}, AddNodeOverrides{Phase: 1})
	require.Len(t, tr.Nodes, 3) // no new node created
	found := false
	for _, n := range tr.Nodes {
		if n == again {
			found = true
		}
	}
	require.True(t, found)
}

func TestAddNodePhase3SkipsDedup(t *testing.T) {
	tr := Initialize([]models.Concept{"loops"}, models.DefaultDifficulties)
	root := tr.Roots[0]
	first := tr.AddNode([]*ChallengeNode{root}, AddNodeOverrides{Concepts: root.Concepts, Difficulty: root.Difficulty, Phase: 3})
	second := tr.AddNode([]*ChallengeNode{root}, AddNodeOverrides{Concepts: root.Concepts, Difficulty: root.Difficulty, Phase: 3})
	require.NotEqual(t, first.ID, second.ID)
}

func TestAddNodeComputesConceptsAndDifficultyFromParents(t *testing.T) {
	tr := Initialize([]models.Concept{"loops", "conditionals"}, models.DefaultDifficulties)
	root0, root1 := tr.Roots[0], tr.Roots[1]
	node := tr.AddNode([]*ChallengeNode{root0}, AddNodeOverrides{})
	require.Equal(t, models.DifficultyEasy, node.Difficulty)
	require.Equal(t, root0.Concepts, node.Concepts)
	require.Equal(t, 1, node.Depth)

	_ = root1
}

func TestRemoveNodeDetachesFromParent(t *testing.T) {
	tr := Initialize([]models.Concept{"loops", "conditionals"}, models.DefaultDifficulties)
	var pair *ChallengeNode
	for _, n := range tr.Nodes {
		if n.Depth == 1 {
			pair = n
		}
	}
	require.NotNil(t, pair)
	require.NoError(t, tr.RemoveNode(pair.ID))
	for _, r := range tr.Roots {
		require.NotContains(t, r.Children, pair)
	}
	_, ok := tr.Nodes[pair.ID]
	require.False(t, ok)
}

func TestRemoveNodeUnknownIDErrors(t *testing.T) {
	tr := Initialize([]models.Concept{"loops"}, models.DefaultDifficulties)
	require.Error(t, tr.RemoveNode("does-not-exist"))
}

func TestSaveLoadRoundTripsTreeStructure(t *testing.T) {
	tr := Initialize([]models.Concept{"loops", "conditionals"}, models.DefaultDifficulties)
	var pair *ChallengeNode
	for _, n := range tr.Nodes {
		if n.Depth == 1 {
			pair = n
		}
	}
	pair.Visits = 3
	pair.Value = 0.75

	path := filepath.Join(t.TempDir(), "tree.pkl")
	require.NoError(t, tr.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded.Roots, len(tr.Roots))
	require.Len(t, loaded.Nodes, len(tr.Nodes))
	require.Equal(t, tr.Difficulties, loaded.Difficulties)

	loadedPair := loaded.Nodes[pair.ID]
	require.NotNil(t, loadedPair)
	require.Equal(t, 3, loadedPair.Visits)
	require.InDelta(t, 0.75, loadedPair.Value, 1e-9)
	require.Len(t, loadedPair.Parents, 2)
}

func TestToMapUsesPluralRootIDs(t *testing.T) {
	tr := Initialize([]models.Concept{"loops", "conditionals"}, models.DefaultDifficulties)
	m := tr.ToMap()
	rootIDs, ok := m["root_ids"].([]string)
	require.True(t, ok)
	require.Len(t, rootIDs, 2)
}
