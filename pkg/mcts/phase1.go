package mcts

import (
	"context"

	"github.com/prismbench/search/pkg/environment"
	"github.com/prismbench/search/pkg/models"
	"github.com/prismbench/search/pkg/tree"
)

func init() {
	registerStrategy("phase_1", Strategy{
		SelectNode:             phase1SelectNode,
		EvaluateNode:           phase1EvaluateNode,
		CalculateNodeValue:     phase1CalculateNodeValue,
		BackpropagateNodeValue: phase1BackpropagateNodeValue,
		ExpandNode:             phase1ExpandNode,
	})
}

// phase1DifficultyWeight scales the success term of the node-value formula:
// succeeding at a harder difficulty is worth more than succeeding at an
// easier one.
var phase1DifficultyWeight = map[models.Difficulty]float64{
	models.DifficultyVeryEasy: 1,
	models.DifficultyEasy:     1.5,
	models.DifficultyMedium:   2,
	models.DifficultyHard:     2.5,
	models.DifficultyVeryHard: 3,
}

// phase1SelectNode prioritizes unvisited nodes once enough of them have
// accumulated (so breadth is established before depth), otherwise descends
// from a randomly chosen root picking the highest-UCB1 child at each level.
func phase1SelectNode(s *Scheduler) (*SelectedNode, error) {
	var zeroVisit []*tree.ChallengeNode
	for _, n := range allNodes(s) {
		if n.Visits == 0 && len(n.Parents) != 0 {
			zeroVisit = append(zeroVisit, n)
		}
	}
	if len(zeroVisit) >= s.Params.Search.ZeroValuePriorityThreshold {
		node := zeroVisit[s.Rand().IntN(len(zeroVisit))]
		return &SelectedNode{Node: node}, nil
	}
	root := s.Tree.Roots[s.Rand().IntN(len(s.Tree.Roots))]
	node := descendByUCB1(root, s.Params.Search.ExplorationConstant)
	return &SelectedNode{Node: node}, nil
}

func phase1EvaluateNode(s *Scheduler, sel *SelectedNode, ctx context.Context) (EvalOutcome, error) {
	return runChallenge(s, sel, ctx)
}

// phase1CalculateNodeValue turns one evaluation's data trail into a
// performance value in [0,1]:
//
//	raw = 10*success*weight[difficulty] + passed - 2*failed - 3*errored
//	      - (attempts-1) - 5*fixedByFixer
//
// clamped at 0 and normalized by max_base_score(30) + MaxNumPassed.
func phase1CalculateNodeValue(s *Scheduler, sel *SelectedNode, outcome EvalOutcome) float64 {
	r := outcome.Results
	rr := toRunResult(r)
	sel.Node.RunResults = append(sel.Node.RunResults, rr)
	if len(rr.DataTrail) == 0 {
		return 0
	}

	var passed, failed, errored int
	fixedByFixer := false
	for _, a := range rr.DataTrail {
		passed += a.TestsPassedNum
		failed += a.TestsFailedNum
		errored += a.TestsErroredNum
	}
	fixedByFixer = rr.DataTrail[len(rr.DataTrail)-1].FixedByProblemFixer
	attempts := len(rr.DataTrail)

	success := 0.0
	if r.Success {
		success = 1
	}
	raw := 10*success*phase1DifficultyWeight[sel.Node.Difficulty] +
		float64(passed) - 2*float64(failed) - 3*float64(errored) -
		float64(attempts-1) - boolToFloat(fixedByFixer)*5
	if raw < 0 {
		raw = 0
	}

	divisor := 30 + s.Params.Scoring.MaxNumPassed
	return clamp01(raw / divisor)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func phase1BackpropagateNodeValue(s *Scheduler, sel *SelectedNode, value float64) {
	backpropagate(sel.Node, value, s.Params.Search.DiscountFactor, s.Params.Search.LearningRate)
}

// phase1ExpandNode grows the tree past a node that cleared the performance
// threshold: with probability ExplorationProbability it combines the node
// with another selected node to add a concept, otherwise it advances the
// node alone to the next difficulty. Freshly created children are evaluated
// synchronously so expansion can keep descending into them; pre-existing
// (deduped) children are only followed if they still clear the threshold.
func phase1ExpandNode(s *Scheduler, sel *SelectedNode, ctx context.Context) error {
	node := sel.Node
	for node.Value >= s.Params.PerformanceThreshold && node.Depth < s.Experiment.MaxDepth {
		var child *tree.ChallengeNode
		if s.Rand().Float64() < s.Params.ExplorationProbability {
			other, err := phase1SelectNode(s)
			if err != nil {
				return err
			}
			child = s.Tree.AddNode([]*tree.ChallengeNode{node, other.Node}, tree.AddNodeOverrides{Phase: 1})
		} else {
			child = s.Tree.AddNode([]*tree.ChallengeNode{node}, tree.AddNodeOverrides{Phase: 1})
		}

		if child.Visits != 0 {
			if child.Value < s.Params.PerformanceThreshold {
				return nil
			}
			node = child
			continue
		}

		childSel := &SelectedNode{Node: child}
		outcome, err := phase1EvaluateNode(s, childSel, ctx)
		if err != nil {
			return err
		}
		value := phase1CalculateNodeValue(s, childSel, outcome)
		phase1BackpropagateNodeValue(s, childSel, value)
		node = child
	}
	return nil
}

func toRunResult(r environment.Results) tree.RunResult {
	attempts := make([]tree.RunAttempt, len(r.DataTrail))
	for i, a := range r.DataTrail {
		attempts[i] = tree.RunAttempt{
			ProblemStatement:    a.ProblemStatement,
			TestsPassedNum:      a.TestsPassedNum,
			TestsFailedNum:      a.TestsFailedNum,
			TestsErroredNum:     a.TestsErroredNum,
			Success:             a.Success,
			FixedByProblemFixer: a.FixedByProblemFixer,
			AttemptNum:          a.AttemptNum,
		}
	}
	return tree.RunResult{
		Success:   r.Success,
		DataTrail: attempts,
		Error:     r.Error,
	}
}
