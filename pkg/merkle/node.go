// Package merkle is a content-addressed DAG of conversation turns. Each turn is
// a node whose hash covers its content and its parent's hash, so a leaf names
// an entire transcript and identical transcripts deduplicate.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/papercomputeco/ollachat/pkg/llm"
)

// BucketTypeMessage marks a bucket holding one conversation turn.
const BucketTypeMessage = "message"

// Bucket is the hashable content of a node: one turn of a conversation.
type Bucket struct {
	Type    string   `json:"type"`
	Role    llm.Role `json:"role"`
	Content string   `json:"content"`
	Model   string   `json:"model,omitempty"`

	// Error is the failure reason of an assistant turn that did not complete
	Error string `json:"error,omitempty"`
}

// Node represents a single content-addressed node in a Merkle DAG
type Node struct {
	// Hash is the content-addressed identifier (SHA-256, hex-encoded)
	Hash string `json:"hash"`

	// ParentHash links to the previous node hash.
	// This will be nil for root nodes.
	ParentHash *string `json:"parent_hash"`

	Bucket Bucket `json:"bucket"`
}

// NewNode creates a new node with the computed hash for the provided bucket
func NewNode(bucket Bucket, parent *Node) *Node {
	if bucket.Type == "" {
		bucket.Type = BucketTypeMessage
	}

	n := &Node{
		Bucket: bucket,
	}

	if parent != nil {
		parentHash := parent.Hash
		n.ParentHash = &parentHash
	}

	n.Hash = n.computeHash()
	return n
}

// Valid reports whether the node's hash matches its content. Nodes arriving
// from outside the process (archive push, merge) are checked before storing.
func (n *Node) Valid() bool {
	return n.Hash != "" && n.Hash == n.computeHash()
}

// IsRoot reports whether the node starts a conversation.
func (n *Node) IsRoot() bool {
	return n.ParentHash == nil
}

type input struct {
	Bucket Bucket `json:"bucket"`
	Parent string `json:"parent,omitempty"`
}

// computeHash calculates the content-addressed hash for a node
func (n *Node) computeHash() string {
	i := &input{
		Bucket: n.Bucket,
	}

	if n.ParentHash != nil {
		i.Parent = *n.ParentHash
	}

	// Canonical JSON encoding for deterministic hashing
	data, err := json.Marshal(i)
	if err != nil {
		panic("failed to marshal hash input: " + err.Error())
	}

	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
