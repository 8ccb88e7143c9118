package tree

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"sort"

	"github.com/prismbench/search/pkg/models"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

// Tree owns every ChallengeNode reachable from its Roots and is the sole
// mutator of node Parents/Children links.
//
// Unlike pkg/services' in-memory registries, Tree carries no internal mutex:
// it is mutated exclusively by the single scheduler goroutine driving a
// phase's search loop (see pkg/mcts.Scheduler), never concurrently from HTTP
// handlers. This is a deliberate asymmetry with the rest of the service, not
// an oversight — document any new mutating method with the same assumption.
type Tree struct {
	Roots        []*ChallengeNode
	Nodes        map[string]*ChallengeNode
	Difficulties []models.Difficulty
}

// Initialize builds one root per seed concept at the lowest difficulty, then
// combines every unordered pair of roots once to form the second layer.
func Initialize(concepts []models.Concept, difficulties []models.Difficulty) *Tree {
	if len(difficulties) == 0 {
		difficulties = models.DefaultDifficulties
	}
	t := &Tree{
		Nodes:        make(map[string]*ChallengeNode, len(concepts)),
		Difficulties: difficulties,
	}
	for _, c := range concepts {
		root := NewChallengeNode([]models.Concept{c}, difficulties[0], "", 1, 0)
		t.Nodes[root.ID] = root
		t.Roots = append(t.Roots, root)
	}
	for i := 0; i < len(t.Roots); i++ {
		for j := i + 1; j < len(t.Roots); j++ {
			t.AddNode([]*ChallengeNode{t.Roots[i], t.Roots[j]}, AddNodeOverrides{Phase: 1})
		}
	}
	return t
}

// AddNodeOverrides carries the optional overrides to AddNode; a zero-value
// field means "compute it from the parents".
type AddNodeOverrides struct {
	Concepts   []models.Concept
	Difficulty models.Difficulty
	Phase      int
}

// AddNode builds a node from 1-2 parents, computing any concepts/difficulty
// overrides don't supply, and returns it. For phases 1 and 2 it first
// searches for an existing node sharing the same (sorted concepts,
// difficulty) pair and returns that instead of creating a duplicate; phase 3
// nodes are exempt since they are deliberate variants.
func (t *Tree) AddNode(parents []*ChallengeNode, overrides AddNodeOverrides) *ChallengeNode {
	concepts := overrides.Concepts
	if concepts == nil {
		concepts = unionConcepts(parents)
	}
	concepts = canonicalConcepts(concepts)

	difficulty := overrides.Difficulty
	if difficulty == "" {
		difficulty = t.nextDifficulty(parents)
	}

	phase := overrides.Phase
	if phase == 0 {
		phase = 1
	}

	if phase != 3 {
		if existing := t.findExisting(concepts, difficulty); existing != nil {
			return existing
		}
	}

	depth := 0
	for _, p := range parents {
		if p.Depth+1 > depth {
			depth = p.Depth + 1
		}
	}

	node := NewChallengeNode(concepts, difficulty, "", phase, depth)
	for _, p := range parents {
		p.Children = append(p.Children, node)
		node.Parents = append(node.Parents, p)
	}
	t.Nodes[node.ID] = node
	return node
}

// findExisting searches every non-phase-3 node for one sharing concepts
// (already canonical) and difficulty.
func (t *Tree) findExisting(concepts []models.Concept, difficulty models.Difficulty) *ChallengeNode {
	for _, n := range t.Nodes {
		if n.Phase == 3 || n.Difficulty != difficulty {
			continue
		}
		if conceptsEqual(n.Concepts, concepts) {
			return n
		}
	}
	return nil
}

// nextDifficulty is difficulties[min(len-1, maxParentIndex+1)]: one step
// harder than the hardest parent, capped at the last difficulty. With no
// parents it resolves to the first difficulty.
func (t *Tree) nextDifficulty(parents []*ChallengeNode) models.Difficulty {
	maxIdx := -1
	for _, p := range parents {
		if idx := models.DifficultyIndex(t.Difficulties, p.Difficulty); idx > maxIdx {
			maxIdx = idx
		}
	}
	next := maxIdx + 1
	if next > len(t.Difficulties)-1 {
		next = len(t.Difficulties) - 1
	}
	return t.Difficulties[next]
}

// unionConcepts combines every parent's concepts, deduplicated, in first-seen
// order; AddNode then sorts and caps the result at four via canonicalConcepts.
func unionConcepts(parents []*ChallengeNode) []models.Concept {
	seen := make(map[models.Concept]bool)
	var out []models.Concept
	for _, p := range parents {
		for _, c := range p.Concepts {
			if seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

func canonicalConcepts(concepts []models.Concept) []models.Concept {
	out := append([]models.Concept{}, concepts...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	if len(out) > 4 {
		out = out[:4]
	}
	return out
}

func conceptsEqual(a, b []models.Concept) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// RemoveNode detaches a node from all of its parents' child lists and from
// the tree's node index. It does not recursively remove descendants — a
// child with another surviving parent must remain reachable.
func (t *Tree) RemoveNode(id string) error {
	node, ok := t.Nodes[id]
	if !ok {
		return fmt.Errorf("tree: node %q not found", id)
	}
	for _, parent := range node.Parents {
		parent.Children = removeNode(parent.Children, node)
	}
	delete(t.Nodes, id)
	return nil
}

func removeNode(nodes []*ChallengeNode, target *ChallengeNode) []*ChallengeNode {
	out := nodes[:0]
	for _, n := range nodes {
		if n != target {
			out = append(out, n)
		}
	}
	return out
}

// ToMap renders the whole tree as plain maps keyed by node ID, suitable for
// the /tree/{session_id} JSON response.
func (t *Tree) ToMap() map[string]any {
	nodes := make(map[string]any, len(t.Nodes))
	for id, n := range t.Nodes {
		nodes[id] = n.ToMap()
	}
	rootIDs := make([]string, len(t.Roots))
	for i, r := range t.Roots {
		rootIDs[i] = r.ID
	}
	return map[string]any{
		"root_ids": rootIDs,
		"nodes":    nodes,
	}
}

// Summary returns per-phase, per-difficulty node counts for end-of-phase
// logging.
func (t *Tree) Summary() map[string]any {
	byPhase := make(map[int]int)
	byDifficulty := make(map[models.Difficulty]int)
	for _, n := range t.Nodes {
		byPhase[n.Phase]++
		byDifficulty[n.Difficulty]++
	}
	return map[string]any{
		"total_nodes":   len(t.Nodes),
		"by_phase":      byPhase,
		"by_difficulty": byDifficulty,
	}
}

// gobTree is the on-disk representation: a flat node list plus parent-index
// edges, since ChallengeNode's Parents/Children pointers aren't gob-encodable
// directly (gob can't round-trip cyclic/shared pointer graphs on its own).
type gobTree struct {
	RootIDs      []string
	Difficulties []models.Difficulty
	Nodes        []ChallengeNode
	Edges        map[string][]string // child ID -> parent IDs
}

// Save checkpoints the tree to path as gob-encoded bytes. gob was chosen
// over a third-party binary format (msgpack, cbor) because no such library
// in the dependency surface had a usable, source-backed implementation to
// ground a choice on — see DESIGN.md.
func (t *Tree) Save(path string) error {
	gt := gobTree{Difficulties: t.Difficulties, Edges: make(map[string][]string, len(t.Nodes))}
	for _, r := range t.Roots {
		gt.RootIDs = append(gt.RootIDs, r.ID)
	}
	for id, n := range t.Nodes {
		nodeCopy := *n
		nodeCopy.Parents = nil
		nodeCopy.Children = nil
		gt.Nodes = append(gt.Nodes, nodeCopy)
		parentIDs := make([]string, len(n.Parents))
		for i, p := range n.Parents {
			parentIDs[i] = p.ID
		}
		gt.Edges[id] = parentIDs
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gt); err != nil {
		return fmt.Errorf("tree: encode checkpoint: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("tree: write checkpoint %s: %w", path, err)
	}
	return nil
}

// Load reconstructs a Tree from a checkpoint previously written by Save,
// relinking Parents/Children pointers from the flattened edge list.
func Load(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tree: read checkpoint %s: %w", path, err)
	}
	var gt gobTree
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&gt); err != nil {
		return nil, fmt.Errorf("tree: decode checkpoint %s: %w", path, err)
	}
	t := &Tree{Nodes: make(map[string]*ChallengeNode, len(gt.Nodes)), Difficulties: gt.Difficulties}
	for i := range gt.Nodes {
		n := gt.Nodes[i]
		t.Nodes[n.ID] = &n
	}
	for childID, parentIDs := range gt.Edges {
		child := t.Nodes[childID]
		for _, pid := range parentIDs {
			parent := t.Nodes[pid]
			child.Parents = append(child.Parents, parent)
			parent.Children = append(parent.Children, child)
		}
	}
	for _, rid := range gt.RootIDs {
		t.Roots = append(t.Roots, t.Nodes[rid])
	}
	return t, nil
}

// WriteDOT renders the tree as Graphviz DOT text, a side effect of
// checkpointing used purely for human inspection — it has no bearing on
// search correctness and failures to write it are logged, not fatal.
func (t *Tree) WriteDOT(path string) error {
	g := simple.NewDirectedGraph()
	ids := make(map[string]int64, len(t.Nodes))
	i := int64(0)
	for id := range t.Nodes {
		ids[id] = i
		i++
	}
	for id, n := range t.Nodes {
		g.AddNode(dotNode{id: ids[id], node: n})
	}
	for id, n := range t.Nodes {
		from := g.Node(ids[id])
		for _, c := range n.Children {
			g.SetEdge(g.NewEdge(from, g.Node(ids[c.ID])))
		}
	}
	data, err := dot.Marshal(g, "tree", "", "  ")
	if err != nil {
		return fmt.Errorf("tree: marshal dot: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// dotNode adapts a ChallengeNode to gonum's graph.Node + dot.Attributers so
// that dot.Marshal can label each vertex with its search statistics.
type dotNode struct {
	id   int64
	node *ChallengeNode
}

func (d dotNode) ID() int64 { return d.id }

func (d dotNode) Attributes() []encoding.Attribute {
	return []encoding.Attribute{
		{Key: "label", Value: fmt.Sprintf("%q", fmt.Sprintf("%s\nphase=%d depth=%d value=%.2f visits=%d",
			shortID(d.node.ID), d.node.Phase, d.node.Depth, d.node.Value, d.node.Visits))},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
