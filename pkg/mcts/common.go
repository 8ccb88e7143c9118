package mcts

import (
	"context"
	"fmt"
	"strings"

	"github.com/prismbench/search/pkg/environment"
	"github.com/prismbench/search/pkg/models"
	"github.com/prismbench/search/pkg/tree"
)

// allNodes returns every node in the scheduler's tree as a slice, since map
// iteration order isn't stable enough for weighted sampling.
func allNodes(s *Scheduler) []*tree.ChallengeNode {
	nodes := make([]*tree.ChallengeNode, 0, len(s.Tree.Nodes))
	for _, n := range s.Tree.Nodes {
		nodes = append(nodes, n)
	}
	return nodes
}

// weightedPick performs weighted random sampling over candidates using the
// scheduler's seeded RNG. Candidates with weight <= 0 are never picked unless
// every candidate has weight <= 0, in which case selection falls back to
// uniform so the phase never deadlocks on an all-zero-weight round.
func weightedPick(s *Scheduler, candidates []*tree.ChallengeNode, weight func(*tree.ChallengeNode) float64) (*tree.ChallengeNode, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("mcts: no candidate nodes available")
	}
	total := 0.0
	weights := make([]float64, len(candidates))
	for i, c := range candidates {
		w := weight(c)
		if w < 0 {
			w = 0
		}
		weights[i] = w
		total += w
	}
	if total <= 0 {
		return candidates[s.Rand().IntN(len(candidates))], nil
	}
	r := s.Rand().Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return candidates[i], nil
		}
	}
	return candidates[len(candidates)-1], nil
}

// descendByUCB1 walks from start down through the highest-UCB1 child at each
// level until it reaches a node with no children, which is the node selected
// for evaluation/expansion.
func descendByUCB1(node *tree.ChallengeNode, explorationConstant float64) *tree.ChallengeNode {
	current := node
	for len(current.Children) > 0 {
		best := current.Children[0]
		bestScore := best.UCB1(current.Visits, explorationConstant)
		for _, c := range current.Children[1:] {
			score := c.UCB1(current.Visits, explorationConstant)
			if score > bestScore {
				best, bestScore = c, score
			}
		}
		current = best
	}
	return current
}

// joinConcepts renders a node's concept set as the single comma-joined
// string the environment's Request.Concept field expects.
func joinConcepts(concepts []models.Concept) string {
	parts := make([]string, len(concepts))
	for i, c := range concepts {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}

// runChallenge is the shared EvaluateNode body for phases 1 and 2: build the
// environment request from the node and selection context, run it, and wrap
// the outcome.
func runChallenge(s *Scheduler, sel *SelectedNode, ctx context.Context) (EvalOutcome, error) {
	req := environment.Request{
		EnvironmentName:  s.Params.Environment.Name,
		Concept:          joinConcepts(sel.Node.Concepts),
		DifficultyLevel:  string(sel.Node.Difficulty),
		MaxAttempts:      s.Params.Search.MaxAttempts,
		PreviousProblems: sel.PreviousProblems,
	}
	results, err := s.Env.RunChallenge(ctx, req)
	if err != nil {
		return EvalOutcome{}, err
	}
	updateNodeData(sel.Node, results)
	return EvalOutcome{Results: results}, nil
}

// updateNodeData stamps a node's ChallengeDescription from the attempt that
// produced it: the first successful attempt's problem statement, or the
// last attempt's if none succeeded.
func updateNodeData(node *tree.ChallengeNode, r environment.Results) {
	if len(r.DataTrail) == 0 {
		return
	}
	for _, a := range r.DataTrail {
		if a.Success {
			node.ChallengeDescription = a.ProblemStatement
			return
		}
	}
	node.ChallengeDescription = r.DataTrail[len(r.DataTrail)-1].ProblemStatement
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// backpropagate applies a TD-style discounted update from node up through
// every ancestor, visiting each ancestor at most once even when reached via
// multiple parent paths.
func backpropagate(node *tree.ChallengeNode, value, discount, learningRate float64) {
	node.UpdateScore(learningRate, value)
	visited := map[string]bool{node.ID: true}
	frontier := append([]*tree.ChallengeNode{}, node.Parents...)
	propagated := value * discount
	for len(frontier) > 0 {
		var next []*tree.ChallengeNode
		for _, p := range frontier {
			if visited[p.ID] {
				continue
			}
			visited[p.ID] = true
			p.UpdateScore(learningRate, propagated)
			next = append(next, p.Parents...)
		}
		propagated *= discount
		frontier = next
	}
}
