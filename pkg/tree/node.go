// Package tree implements the challenge graph: ChallengeNode and the Tree
// container that owns and mutates it.
//
// The Tree is deliberately not safe for concurrent mutation — see the
// comment on Tree below. Nodes never outlive the Tree that created them.
package tree

import (
	"math"

	"github.com/google/uuid"
	"github.com/prismbench/search/pkg/models"
)

// RunAttempt is one attempt within a single evaluation's data trail.
type RunAttempt struct {
	ProblemStatement    string `gob:"problem_statement"`
	TestsPassedNum      int    `gob:"tests_passed_num"`
	TestsFailedNum      int    `gob:"tests_failed_num"`
	TestsErroredNum     int    `gob:"tests_errored_num"`
	Success             bool   `gob:"success"`
	FixedByProblemFixer bool   `gob:"fixed_by_problem_fixer"`
	AttemptNum          int    `gob:"attempt_num"`
}

// RunResult is one evaluation outcome recorded against a node, matching the
// external environment service's response shape (see pkg/environment).
type RunResult struct {
	Success   bool         `json:"success" gob:"success"`
	DataTrail []RunAttempt `json:"data_trail,omitempty" gob:"data_trail"`
	Error     string       `json:"error,omitempty" gob:"error"`
}

// ChallengeNode is a single vertex of the challenge DAG.
type ChallengeNode struct {
	ID                   string            `gob:"id"`
	Concepts             []models.Concept  `gob:"concepts"`
	Difficulty           models.Difficulty `gob:"difficulty"`
	ChallengeDescription string            `gob:"challenge_description"`
	Phase                int               `gob:"phase"`
	Depth                int               `gob:"depth"`
	Value                float64           `gob:"value"`
	Visits               int               `gob:"visits"`
	RunResults           []RunResult       `gob:"run_results"`

	// Phase2Value snapshots the node's value at the moment phase 3 expands
	// it, so phase 3's variant children can be compared against the score
	// that earned their parent a spot in the expansion set.
	Phase2Value *float64 `gob:"phase_2_value"`

	Parents  []*ChallengeNode `gob:"-"`
	Children []*ChallengeNode `gob:"-"`
}

// NewChallengeNode builds a fresh node with a generated ID and zeroed stats.
func NewChallengeNode(concepts []models.Concept, difficulty models.Difficulty, description string, phase, depth int) *ChallengeNode {
	return &ChallengeNode{
		ID:                   uuid.NewString(),
		Concepts:             concepts,
		Difficulty:           difficulty,
		ChallengeDescription: description,
		Phase:                phase,
		Depth:                depth,
	}
}

// AncestorIDs returns the IDs of every node reachable by following Parents
// links, without duplicates. Because a node may have multiple parents the
// walk is a de-duplicated BFS, not a simple linear climb.
func (n *ChallengeNode) AncestorIDs() []string {
	seen := make(map[string]struct{})
	var order []string
	queue := append([]*ChallengeNode{}, n.Parents...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, ok := seen[cur.ID]; ok {
			continue
		}
		seen[cur.ID] = struct{}{}
		order = append(order, cur.ID)
		queue = append(queue, cur.Parents...)
	}
	return order
}

// UCB1 computes the upper-confidence-bound score used to select this node
// during tree descent. An unvisited node always wins with +Inf so the search
// is guaranteed to try every child at least once before exploiting.
func (n *ChallengeNode) UCB1(parentVisits int, explorationConstant float64) float64 {
	if n.Visits == 0 {
		return math.Inf(1)
	}
	exploitation := n.Value
	exploration := explorationConstant * math.Sqrt(math.Log(float64(parentVisits))/float64(n.Visits))
	return exploitation + exploration
}

// UpdateScore folds a newly observed reward into the node's running value
// with a fixed-rate TD update (value += learningRate*(reward-value)) and
// increments the visit count. This must be called exactly once per
// evaluation, before UCB1 is used again for this node's parent's selection.
func (n *ChallengeNode) UpdateScore(learningRate, reward float64) {
	n.Visits++
	n.Value += learningRate * (reward - n.Value)
}

// ToMap renders the node as a plain map for JSON responses and debug
// visualisation: parents/children are flattened to ID lists to avoid cycles.
func (n *ChallengeNode) ToMap() map[string]any {
	parentIDs := make([]string, len(n.Parents))
	for i, p := range n.Parents {
		parentIDs[i] = p.ID
	}
	childIDs := make([]string, len(n.Children))
	for i, c := range n.Children {
		childIDs[i] = c.ID
	}
	m := map[string]any{
		"id":                    n.ID,
		"concepts":              n.Concepts,
		"difficulty":            n.Difficulty,
		"challenge_description": n.ChallengeDescription,
		"phase":                 n.Phase,
		"depth":                 n.Depth,
		"value":                 n.Value,
		"visits":                n.Visits,
		"run_results":           n.RunResults,
		"parents":               parentIDs,
		"children":              childIDs,
	}
	if n.Phase2Value != nil {
		m["phase_2_value"] = *n.Phase2Value
	}
	return m
}
