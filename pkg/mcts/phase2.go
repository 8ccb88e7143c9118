package mcts

import (
	"context"

	"github.com/prismbench/search/pkg/tree"
)

func init() {
	registerStrategy("phase_2", Strategy{
		InitializePhase:        phase2InitializePhase,
		SelectNode:             phase2SelectNode,
		EvaluateNode:           phase2EvaluateNode,
		CalculateNodeValue:     phase2CalculateNodeValue,
		BackpropagateNodeValue: phase2BackpropagateNodeValue,
		ExpandNode:             phase2ExpandNode,
	})
}

// Hardness formula weights are fixed, not configurable — see DESIGN.md.
const (
	hardnessChallengeWeight = 0.5
	hardnessAttemptsWeight  = 0.3
	hardnessFixerWeight     = 0.2
)

// phase2InitializePhase re-scores every node that was touched in phase 1
// using the hardness formula and only its most recent run result, so
// selection weights reflect the latest evidence rather than phase 1's
// performance-oriented running average.
func phase2InitializePhase(s *Scheduler) error {
	for _, n := range allNodes(s) {
		if len(n.RunResults) == 0 {
			continue
		}
		n.Value = hardnessValue(n.RunResults[len(n.RunResults)-1])
	}
	return nil
}

// phase2SelectNode samples leaf nodes left over from phase 1 weighted by
// their (now hardness-scored) value — no zero-visit priority, unlike phase 1.
func phase2SelectNode(s *Scheduler) (*SelectedNode, error) {
	var candidates []*tree.ChallengeNode
	for _, n := range allNodes(s) {
		if len(n.Parents) == 0 {
			continue
		}
		if n.Phase <= 2 && len(n.Children) == 0 {
			candidates = append(candidates, n)
		}
	}
	node, err := weightedPick(s, candidates, func(n *tree.ChallengeNode) float64 { return n.Value + 0.01 })
	if err != nil {
		return nil, err
	}
	return &SelectedNode{Node: node}, nil
}

func phase2EvaluateNode(s *Scheduler, sel *SelectedNode, ctx context.Context) (EvalOutcome, error) {
	return runChallenge(s, sel, ctx)
}

// hardnessValue scores a run result for how hard the challenge proved to be:
//
//	challenge   = 1 - successful_passed/total_tests  (0 if no tests ran)
//	attempts    = min(attempts_till_success/3, 1)
//	fixer       = 1 if the last attempt was fixed by the problem fixer, else 0
//	hardness    = 0.5*challenge + 0.3*attempts + 0.2*fixer
func hardnessValue(r tree.RunResult) float64 {
	if len(r.DataTrail) == 0 {
		return 0
	}

	var totalTests, successfulPassed int
	attemptsTillSuccess := len(r.DataTrail)
	succeededAt := -1
	for i, a := range r.DataTrail {
		totalTests += a.TestsPassedNum + a.TestsFailedNum + a.TestsErroredNum
		successfulPassed += a.TestsPassedNum
		if succeededAt == -1 && a.Success {
			succeededAt = i
		}
	}
	if succeededAt != -1 {
		attemptsTillSuccess = succeededAt + 1
	}

	successRate := 0.0
	if totalTests > 0 {
		successRate = float64(successfulPassed) / float64(totalTests)
	}
	challenge := 1 - successRate
	attemptFactor := clamp01(float64(attemptsTillSuccess) / 3.0)
	fixerFactor := boolToFloat(r.DataTrail[len(r.DataTrail)-1].FixedByProblemFixer)

	return clamp01(
		hardnessChallengeWeight*challenge +
			hardnessAttemptsWeight*attemptFactor +
			hardnessFixerWeight*fixerFactor,
	)
}

func phase2CalculateNodeValue(s *Scheduler, sel *SelectedNode, outcome EvalOutcome) float64 {
	rr := toRunResult(outcome.Results)
	sel.Node.RunResults = append(sel.Node.RunResults, rr)
	return hardnessValue(rr)
}

func phase2BackpropagateNodeValue(s *Scheduler, sel *SelectedNode, value float64) {
	backpropagate(sel.Node, value, s.Params.Search.DiscountFactor, s.Params.Search.LearningRate)
}

// phase2ExpandNode applies the same structural expansion rule as phase 1 —
// combine with another node to add a concept, or advance alone to the next
// difficulty — but tags new nodes phase=2, since phase 2 grows the tree from
// the hardness-scored leaves phase 1 left behind.
func phase2ExpandNode(s *Scheduler, sel *SelectedNode, ctx context.Context) error {
	node := sel.Node
	for node.Value >= s.Params.PerformanceThreshold && node.Depth < s.Experiment.MaxDepth {
		var child *tree.ChallengeNode
		if s.Rand().Float64() < s.Params.ExplorationProbability {
			other, err := phase2SelectNode(s)
			if err != nil {
				return err
			}
			child = s.Tree.AddNode([]*tree.ChallengeNode{node, other.Node}, tree.AddNodeOverrides{Phase: 2})
		} else {
			child = s.Tree.AddNode([]*tree.ChallengeNode{node}, tree.AddNodeOverrides{Phase: 2})
		}

		if child.Visits != 0 {
			if child.Value < s.Params.PerformanceThreshold {
				return nil
			}
			node = child
			continue
		}

		childSel := &SelectedNode{Node: child}
		outcome, err := phase2EvaluateNode(s, childSel, ctx)
		if err != nil {
			return err
		}
		value := phase2CalculateNodeValue(s, childSel, outcome)
		phase2BackpropagateNodeValue(s, childSel, value)
		node = child
	}
	return nil
}
