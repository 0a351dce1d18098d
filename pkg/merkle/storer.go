package merkle

import (
	"context"
	"errors"
	"fmt"
)

// Storer defines the interface for persisting and retrieving nodes in a Merkle DAG from a storage backend.
// De-duplication happens automatically via content-addressing: identical turns
// with identical parents produce identical hashes and are stored once.
type Storer interface {
	// Put stores a node and reports whether it was new. If the node already
	// exists (by hash), this is a no-op.
	Put(ctx context.Context, node *Node) (bool, error)

	// Get retrieves a node by its hash. Returns ErrNotFound if the node doesn't exist.
	Get(ctx context.Context, hash string) (*Node, error)

	// Has checks if a node exists by its hash.
	Has(ctx context.Context, hash string) (bool, error)

	// GetByParent retrieves all nodes that have the given parent hash.
	// Pass nil to get root nodes (nodes with no parent).
	GetByParent(ctx context.Context, parentHash *string) ([]*Node, error)

	// List returns all nodes in the store, in insertion order.
	List(ctx context.Context) ([]*Node, error)

	// Roots returns all root nodes (nodes with no parent).
	Roots(ctx context.Context) ([]*Node, error)

	// Leaves returns all leaf nodes (nodes with no children). Each leaf is the
	// latest turn of one transcript.
	Leaves(ctx context.Context) ([]*Node, error)

	// Ancestry returns the path from a node back to its root (node first, root last).
	Ancestry(ctx context.Context, hash string) ([]*Node, error)

	// Lineage returns the path from root to node (root first, node last).
	Lineage(ctx context.Context, hash string) ([]*Node, error)

	// Depth returns the depth of a node (0 for roots).
	Depth(ctx context.Context, hash string) (int, error)

	// Close closes the store and releases any resources.
	Close() error
}

// ErrNotFound is returned when a node doesn't exist in the store.
type ErrNotFound struct {
	Hash string
}

func (e ErrNotFound) Error() string {
	if e.Hash == "" {
		return "node not found"
	}

	return "node not found: " + e.Hash
}

// IsNotFound reports whether err is, or wraps, an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// History returns the turns of the transcript ending at hash, oldest first.
func History(ctx context.Context, s Storer, hash string) ([]Bucket, error) {
	nodes, err := s.Lineage(ctx, hash)
	if err != nil {
		return nil, err
	}

	turns := make([]Bucket, 0, len(nodes))
	for _, n := range nodes {
		turns = append(turns, n.Bucket)
	}
	return turns, nil
}

// MergeResult counts the outcome of a Merge.
type MergeResult struct {
	Added    int
	Existing int

	// Invalid nodes have a hash that does not match their content
	Invalid int

	// Orphaned nodes have a parent that is in neither store
	Orphaned int
}

// Merge puts the nodes of src into dst, parents before children. Invalid and
// orphaned nodes are counted and skipped. With dryRun set, dst is only read.
func Merge(ctx context.Context, dst Storer, src Storer, dryRun bool) (MergeResult, error) {
	var result MergeResult

	nodes, err := src.List(ctx)
	if err != nil {
		return result, fmt.Errorf("list source nodes: %w", err)
	}

	accepted := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n == nil || !n.Valid() {
			result.Invalid++
			continue
		}

		if n.ParentHash != nil && !accepted[*n.ParentHash] {
			ok, err := dst.Has(ctx, *n.ParentHash)
			if err != nil {
				return result, fmt.Errorf("check parent of %s: %w", n.Hash, err)
			}
			if !ok {
				result.Orphaned++
				continue
			}
		}

		exists, err := dst.Has(ctx, n.Hash)
		if err != nil {
			return result, fmt.Errorf("check node %s: %w", n.Hash, err)
		}
		accepted[n.Hash] = true

		if exists {
			result.Existing++
			continue
		}
		if !dryRun {
			if _, err := dst.Put(ctx, n); err != nil {
				return result, fmt.Errorf("put node %s: %w", n.Hash, err)
			}
		}
		result.Added++
	}

	return result, nil
}

type getter interface {
	Get(ctx context.Context, hash string) (*Node, error)
}

func validate(node *Node) error {
	if node == nil {
		return errors.New("cannot store nil node")
	}
	if !node.Valid() {
		return fmt.Errorf("hash mismatch for node %s", node.Hash)
	}
	return nil
}

// ancestry walks parent links from hash to its root.
func ancestry(ctx context.Context, s getter, hash string) ([]*Node, error) {
	var path []*Node
	current := hash

	for {
		node, err := s.Get(ctx, current)
		if err != nil {
			return nil, err
		}
		path = append(path, node)

		if node.ParentHash == nil {
			return path, nil
		}
		current = *node.ParentHash
	}
}

func lineage(ctx context.Context, s getter, hash string) ([]*Node, error) {
	path, err := ancestry(ctx, s, hash)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

func depth(ctx context.Context, s getter, hash string) (int, error) {
	path, err := ancestry(ctx, s, hash)
	if err != nil {
		return 0, err
	}
	return len(path) - 1, nil
}
