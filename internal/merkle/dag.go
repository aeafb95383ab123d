// Package merkle provides a content-addressed hash DAG and the snapshot-backed
// file synchronizer built on top of it.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Node is a single content-addressed node. Its ID is the SHA-256 digest of its
// payload, so a node can never be modified in place: any change to the payload
// produces a different node.
type Node struct {
	ID       string   `json:"id"`
	Data     string   `json:"data"`
	Parents  []string `json:"parents"`
	Children []string `json:"children"`
}

// DAG is a set of content-addressed nodes with parent/child edges.
// Nodes with no parents form the root set.
type DAG struct {
	nodes   map[string]*Node
	rootIDs map[string]struct{}
}

// NewDAG creates an empty DAG.
func NewDAG() *DAG {
	return &DAG{
		nodes:   make(map[string]*Node),
		rootIDs: make(map[string]struct{}),
	}
}

// HashData returns the hex-encoded SHA-256 digest used for node identity.
func HashData(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// Add inserts a node for the given payload and returns its ID. Adding the same
// payload twice is idempotent. If parentID is non-empty and present, the edge
// is recorded in both directions and the child leaves the root set. If
// parentID is non-empty but unknown, the node is added without an edge and is
// not placed in the root set.
func (d *DAG) Add(data string, parentID string) string {
	id := HashData(data)

	node, exists := d.nodes[id]
	if !exists {
		node = &Node{ID: id, Data: data}
		d.nodes[id] = node
		if parentID == "" {
			d.rootIDs[id] = struct{}{}
		}
	}

	if parentID == "" {
		return id
	}

	parent, ok := d.nodes[parentID]
	if !ok {
		// Orphan: caller referenced a parent that was never added.
		return id
	}

	if !contains(node.Parents, parentID) {
		node.Parents = append(node.Parents, parentID)
	}
	if !contains(parent.Children, id) {
		parent.Children = append(parent.Children, id)
	}
	delete(d.rootIDs, id)

	return id
}

// Get returns the node with the given ID, or nil if absent.
func (d *DAG) Get(id string) *Node {
	return d.nodes[id]
}

// AllNodes returns every node, sorted by ID for deterministic iteration.
func (d *DAG) AllNodes() []*Node {
	nodes := make([]*Node, 0, len(d.nodes))
	for _, n := range d.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// Roots returns the IDs of all nodes without parents, sorted.
func (d *DAG) Roots() []string {
	ids := make([]string, 0, len(d.rootIDs))
	for id := range d.rootIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Leaves returns the IDs of all nodes without children, sorted.
func (d *DAG) Leaves() []string {
	var ids []string
	for id, n := range d.nodes {
		if len(n.Children) == 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of nodes.
func (d *DAG) Len() int {
	return len(d.nodes)
}

// serializedDAG is the persisted wire form: nodes as [id, node] pairs plus the
// root ID list.
type serializedDAG struct {
	Nodes   []nodePair `json:"nodes"`
	RootIDs []string   `json:"rootIds"`
}

type nodePair struct {
	ID   string
	Node *Node
}

func (p nodePair) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.ID, p.Node})
}

func (p *nodePair) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("node pair must have 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.ID); err != nil {
		return err
	}
	p.Node = &Node{}
	return json.Unmarshal(raw[1], p.Node)
}

// Serialize encodes the DAG so that Deserialize restores an identical
// structure: same node IDs, payloads, edges, and root set.
func (d *DAG) Serialize() ([]byte, error) {
	out := serializedDAG{
		Nodes:   make([]nodePair, 0, len(d.nodes)),
		RootIDs: d.Roots(),
	}
	for _, n := range d.AllNodes() {
		out.Nodes = append(out.Nodes, nodePair{ID: n.ID, Node: n})
	}
	return json.Marshal(out)
}

// Deserialize reconstructs a DAG from the output of Serialize.
func Deserialize(data []byte) (*DAG, error) {
	var in serializedDAG
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("decode DAG: %w", err)
	}

	d := NewDAG()
	for _, p := range in.Nodes {
		if p.Node == nil {
			return nil, fmt.Errorf("nil node for id %s", p.ID)
		}
		d.nodes[p.ID] = p.Node
	}
	for _, id := range in.RootIDs {
		if _, ok := d.nodes[id]; ok {
			d.rootIDs[id] = struct{}{}
		}
	}
	return d, nil
}

// Diff is the result of comparing two DAGs by node identity.
type Diff struct {
	Added    []string
	Removed  []string
	Modified []string
}

// Compare returns the set difference of node identities between two DAGs.
// Modified is always empty: identity is content-derived, so a changed payload
// shows up as one removal plus one addition.
func Compare(a, b *DAG) Diff {
	diff := Diff{Added: []string{}, Removed: []string{}, Modified: []string{}}
	for id := range b.nodes {
		if _, ok := a.nodes[id]; !ok {
			diff.Added = append(diff.Added, id)
		}
	}
	for id := range a.nodes {
		if _, ok := b.nodes[id]; !ok {
			diff.Removed = append(diff.Removed, id)
		}
	}
	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	return diff
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
