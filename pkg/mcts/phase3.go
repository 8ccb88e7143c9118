package mcts

import (
	"context"

	"github.com/prismbench/search/pkg/tree"
)

func init() {
	registerStrategy("phase_3", Strategy{
		InitializePhase:        phase3InitializePhase,
		SelectNode:             phase3SelectNode,
		EvaluateNode:           phase3EvaluateNode,
		CalculateNodeValue:     phase3CalculateNodeValue,
		BackpropagateNodeValue: phase3BackpropagateNodeValue,
		ExpandNode:             phase3ExpandNode,
	})
}

// phase3InitializePhase spawns VariationsPerConcept sibling challenges for
// every phase-2 node whose hardness value cleared the configured threshold,
// snapshotting the value that earned the expansion so later comparisons
// aren't skewed by the children's own re-scoring. Phase 3 nodes always
// skip AddNode's dedup search, since siblings deliberately share concepts
// and difficulty with their parent.
func phase3InitializePhase(s *Scheduler) error {
	for _, n := range allNodes(s) {
		if n.Phase != 2 || n.Value < s.Params.HardnessThreshold {
			continue
		}
		snapshot := n.Value
		n.Phase2Value = &snapshot
		for i := 0; i < s.Params.VariationsPerConcept; i++ {
			s.Tree.AddNode([]*tree.ChallengeNode{n}, tree.AddNodeOverrides{
				Concepts:   n.Concepts,
				Difficulty: n.Difficulty,
				Phase:      3,
			})
		}
	}
	return nil
}

// phase3SelectNode only considers phase-3 variant nodes, preferring unvisited
// ones before falling back to weighted sampling by hardness value.
func phase3SelectNode(s *Scheduler) (*SelectedNode, error) {
	var zeroVisit, candidates []*tree.ChallengeNode
	for _, n := range allNodes(s) {
		if n.Phase != 3 {
			continue
		}
		candidates = append(candidates, n)
		if n.Visits == 0 {
			zeroVisit = append(zeroVisit, n)
		}
	}
	if len(zeroVisit) > 0 {
		node := zeroVisit[s.Rand().IntN(len(zeroVisit))]
		return &SelectedNode{Node: node}, nil
	}
	node, err := weightedPick(s, candidates, func(n *tree.ChallengeNode) float64 { return n.Value + 0.01 })
	if err != nil {
		return nil, err
	}
	return &SelectedNode{Node: node}, nil
}

// phase3EvaluateNode gathers each sibling variant's challenge description so
// the environment service can avoid generating a near-duplicate challenge
// for this variant.
func phase3EvaluateNode(s *Scheduler, sel *SelectedNode, ctx context.Context) (EvalOutcome, error) {
	var previous []string
	for _, parent := range sel.Node.Parents {
		for _, sibling := range parent.Children {
			if sibling == sel.Node {
				continue
			}
			previous = append(previous, sibling.ChallengeDescription)
		}
	}
	sel.PreviousProblems = previous
	return runChallenge(s, sel, ctx)
}

func phase3CalculateNodeValue(s *Scheduler, sel *SelectedNode, outcome EvalOutcome) float64 {
	rr := toRunResult(outcome.Results)
	sel.Node.RunResults = append(sel.Node.RunResults, rr)
	return hardnessValue(rr)
}

func phase3BackpropagateNodeValue(s *Scheduler, sel *SelectedNode, value float64) {
	backpropagate(sel.Node, value, s.Params.Search.DiscountFactor, s.Params.Search.LearningRate)
}

// phase3ExpandNode is a no-op: phase 3 only re-evaluates the variants it
// created in InitializePhase, it never grows the tree further.
func phase3ExpandNode(s *Scheduler, sel *SelectedNode, ctx context.Context) error {
	return nil
}
