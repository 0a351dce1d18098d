package merkle

import (
	"context"
	"sync"
)

// MemoryStorer keeps nodes in process memory. It backs sessions that are not
// archived to disk and the tests.
type MemoryStorer struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	order []string
}

var _ Storer = (*MemoryStorer)(nil)

// NewMemoryStorer creates an empty in-memory store.
func NewMemoryStorer() *MemoryStorer {
	return &MemoryStorer{
		nodes: make(map[string]*Node),
	}
}

func (m *MemoryStorer) Put(_ context.Context, node *Node) (bool, error) {
	if err := validate(node); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nodes[node.Hash]; ok {
		return false, nil
	}

	stored := *node
	m.nodes[node.Hash] = &stored
	m.order = append(m.order, node.Hash)
	return true, nil
}

func (m *MemoryStorer) Get(_ context.Context, hash string) (*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	node, ok := m.nodes[hash]
	if !ok {
		return nil, ErrNotFound{Hash: hash}
	}

	out := *node
	return &out, nil
}

func (m *MemoryStorer) Has(_ context.Context, hash string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.nodes[hash]
	return ok, nil
}

func (m *MemoryStorer) GetByParent(_ context.Context, parentHash *string) ([]*Node, error) {
	return m.filter(func(n *Node) bool {
		if parentHash == nil {
			return n.ParentHash == nil
		}
		return n.ParentHash != nil && *n.ParentHash == *parentHash
	}), nil
}

func (m *MemoryStorer) List(_ context.Context) ([]*Node, error) {
	return m.filter(func(*Node) bool { return true }), nil
}

func (m *MemoryStorer) Roots(ctx context.Context) ([]*Node, error) {
	return m.GetByParent(ctx, nil)
}

func (m *MemoryStorer) Leaves(_ context.Context) ([]*Node, error) {
	m.mu.RLock()
	parents := make(map[string]bool, len(m.nodes))
	for _, n := range m.nodes {
		if n.ParentHash != nil {
			parents[*n.ParentHash] = true
		}
	}
	m.mu.RUnlock()

	return m.filter(func(n *Node) bool { return !parents[n.Hash] }), nil
}

func (m *MemoryStorer) Ancestry(ctx context.Context, hash string) ([]*Node, error) {
	return ancestry(ctx, m, hash)
}

func (m *MemoryStorer) Lineage(ctx context.Context, hash string) ([]*Node, error) {
	return lineage(ctx, m, hash)
}

func (m *MemoryStorer) Depth(ctx context.Context, hash string) (int, error) {
	return depth(ctx, m, hash)
}

func (m *MemoryStorer) Close() error {
	return nil
}

func (m *MemoryStorer) filter(keep func(*Node) bool) []*Node {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Node, 0)
	for _, hash := range m.order {
		n := m.nodes[hash]
		if keep(n) {
			copied := *n
			out = append(out, &copied)
		}
	}
	return out
}
