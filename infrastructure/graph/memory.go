package graph

import (
	"context"
	"fmt"
	"sync"
)

// Memory is a mutex-guarded in-process substrate used by tests and
// local runs. Commit checks every staged condition and applies all
// writes under one lock, giving the same all-or-nothing and
// compare-and-swap semantics as the DynamoDB substrate.
type Memory struct {
	mu    sync.Mutex
	nodes map[string]Node
	edges map[edgeKey]Edge
}

type edgeKey struct {
	from  string
	label string
	to    string
}

// NewMemory creates an empty in-memory substrate.
func NewMemory() *Memory {
	return &Memory{
		nodes: make(map[string]Node),
		edges: make(map[edgeKey]Edge),
	}
}

// Begin opens a transaction bound to the caller identity.
func (m *Memory) Begin(_ context.Context, userID string) (Tx, error) {
	return &memTx{m: m, userID: userID}, nil
}

type memOpKind int

const (
	opPutNode memOpKind = iota
	opDeleteNode
	opCheckNode
	opPutEdge
	opDeleteEdge
)

type memOp struct {
	kind memOpKind
	node Node
	cond *Cond
	edge Edge
	key  edgeKey
}

type memTx struct {
	m      *Memory
	userID string
	staged []memOp
	done   bool
}

func (t *memTx) UserID() string { return t.userID }

func (t *memTx) stage(op memOp) error {
	if t.done {
		return fmt.Errorf("graph: transaction already finished")
	}
	t.staged = append(t.staged, op)
	return nil
}

func (t *memTx) PutNode(_ context.Context, n Node, cond *Cond) error {
	return t.stage(memOp{kind: opPutNode, node: cloneNode(n), cond: cond})
}

func (t *memTx) DeleteNode(_ context.Context, id string, cond *Cond) error {
	return t.stage(memOp{kind: opDeleteNode, node: Node{ID: id}, cond: cond})
}

func (t *memTx) CheckNode(_ context.Context, id string, cond Cond) error {
	c := cond
	return t.stage(memOp{kind: opCheckNode, node: Node{ID: id}, cond: &c})
}

func (t *memTx) PutEdge(_ context.Context, e Edge) error {
	return t.stage(memOp{kind: opPutEdge, edge: cloneEdge(e)})
}

func (t *memTx) DeleteEdge(_ context.Context, from, label, to string) error {
	return t.stage(memOp{kind: opDeleteEdge, key: edgeKey{from: from, label: label, to: to}})
}

func (t *memTx) GetNode(_ context.Context, id string) (Node, bool, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	n, ok := t.m.nodes[id]
	if !ok {
		return Node{}, false, nil
	}
	return cloneNode(n), true, nil
}

func (t *memTx) NodesByLabel(_ context.Context, label string) ([]Node, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	var out []Node
	for _, n := range t.m.nodes {
		if n.Label == label {
			out = append(out, cloneNode(n))
		}
	}
	return out, nil
}

func (t *memTx) EdgesFrom(_ context.Context, from, label string) ([]Edge, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	var out []Edge
	for k, e := range t.m.edges {
		if k.from == from && (label == "" || k.label == label) {
			out = append(out, cloneEdge(e))
		}
	}
	return out, nil
}

func (t *memTx) EdgesTo(_ context.Context, to, label string) ([]Edge, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	var out []Edge
	for k, e := range t.m.edges {
		if k.to == to && (label == "" || k.label == label) {
			out = append(out, cloneEdge(e))
		}
	}
	return out, nil
}

// Commit validates all conditions first, then applies all staged
// writes, holding the store lock throughout so no other transaction
// can interleave between check and apply.
func (t *memTx) Commit(_ context.Context) error {
	if t.done {
		return fmt.Errorf("graph: transaction already finished")
	}
	t.done = true

	t.m.mu.Lock()
	defer t.m.mu.Unlock()

	for _, op := range t.staged {
		if op.cond == nil {
			continue
		}
		existing, exists := t.m.nodes[op.node.ID]
		if op.cond.MustNotExist {
			if exists {
				return ErrConditionFailed
			}
			continue
		}
		if !exists || existing.Props[op.cond.Prop] != op.cond.Equals {
			return ErrConditionFailed
		}
	}

	for _, op := range t.staged {
		switch op.kind {
		case opPutNode:
			t.m.nodes[op.node.ID] = op.node
		case opDeleteNode:
			delete(t.m.nodes, op.node.ID)
			for k := range t.m.edges {
				if k.from == op.node.ID || k.to == op.node.ID {
					delete(t.m.edges, k)
				}
			}
		case opPutEdge:
			t.m.edges[edgeKey{from: op.edge.From, label: op.edge.Label, to: op.edge.To}] = op.edge
		case opDeleteEdge:
			delete(t.m.edges, op.key)
		}
	}

	t.staged = nil
	return nil
}

func (t *memTx) Rollback() error {
	t.done = true
	t.staged = nil
	return nil
}

func cloneNode(n Node) Node {
	out := Node{ID: n.ID, Label: n.Label}
	if n.Props != nil {
		out.Props = make(map[string]any, len(n.Props))
		for k, v := range n.Props {
			out.Props[k] = v
		}
	}
	return out
}

func cloneEdge(e Edge) Edge {
	out := Edge{From: e.From, Label: e.Label, To: e.To}
	if e.Props != nil {
		out.Props = make(map[string]any, len(e.Props))
		for k, v := range e.Props {
			out.Props[k] = v
		}
	}
	return out
}
