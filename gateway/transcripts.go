package gateway

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/ollachat/pkg/llm"
	"github.com/papercomputeco/ollachat/pkg/merkle"
)

// handleTranscriptStats returns statistics about the archive.
func (g *Gateway) handleTranscriptStats(c *fiber.Ctx) error {
	ctx := c.UserContext()

	nodes, err := g.storer.List(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to list nodes"})
	}

	roots, err := g.storer.Roots(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to get roots"})
	}

	leaves, err := g.storer.Leaves(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to get leaves"})
	}

	return c.JSON(map[string]any{
		"total_nodes": len(nodes),
		"root_count":  len(roots),
		"leaf_count":  len(leaves),
	})
}

// handleGetNode returns a single node by its hash.
func (g *Gateway) handleGetNode(c *fiber.Ctx) error {
	node, err := g.storer.Get(c.UserContext(), c.Params("hash"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "node not found"})
	}

	return c.JSON(node)
}

// HistoryResponse contains the transcript ending at a given node.
type HistoryResponse struct {
	// Messages in chronological order (oldest first, up to and including the requested node)
	Messages []HistoryMessage `json:"messages"`
	// HeadHash is the hash of the node that was requested
	HeadHash string `json:"head_hash"`
	// Depth is the number of messages in the history
	Depth int `json:"depth"`
}

// HistoryMessage represents a turn in the transcript.
type HistoryMessage struct {
	Hash       string   `json:"hash"`
	ParentHash *string  `json:"parent_hash,omitempty"`
	Role       llm.Role `json:"role"`
	Content    string   `json:"content"`
	Model      string   `json:"model,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// handleListHistories returns every transcript (one per leaf node).
func (g *Gateway) handleListHistories(c *fiber.Ctx) error {
	ctx := c.UserContext()

	leaves, err := g.storer.Leaves(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to get leaves"})
	}

	histories := make([]HistoryResponse, 0, len(leaves))
	for _, leaf := range leaves {
		history, err := g.buildHistory(ctx, leaf.Hash)
		if err != nil {
			g.logger.Warn("failed to build history for leaf", zap.String("hash", leaf.Hash), zap.Error(err))
			continue
		}
		histories = append(histories, *history)
	}

	return c.JSON(map[string]any{
		"count":     len(histories),
		"histories": histories,
	})
}

// handleGetHistory returns the transcript leading up to a given node.
func (g *Gateway) handleGetHistory(c *fiber.Ctx) error {
	history, err := g.buildHistory(c.UserContext(), c.Params("hash"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "node not found"})
	}

	return c.JSON(history)
}

func (g *Gateway) buildHistory(ctx context.Context, hash string) (*HistoryResponse, error) {
	lineage, err := g.storer.Lineage(ctx, hash)
	if err != nil {
		return nil, err
	}

	messages := make([]HistoryMessage, 0, len(lineage))
	for _, node := range lineage {
		messages = append(messages, HistoryMessage{
			Hash:       node.Hash,
			ParentHash: node.ParentHash,
			Role:       node.Bucket.Role,
			Content:    node.Bucket.Content,
			Model:      node.Bucket.Model,
			Error:      node.Bucket.Error,
		})
	}

	return &HistoryResponse{
		Messages: messages,
		HeadHash: hash,
		Depth:    len(messages),
	}, nil
}

// ImportResponse counts the outcome of a bulk node import.
type ImportResponse struct {
	New       int `json:"new"`
	Duplicate int `json:"duplicate"`
	Errors    int `json:"errors"`
}

// handleImportNodes stores nodes pushed from another archive. Nodes whose hash
// does not match their content are counted as errors and skipped.
func (g *Gateway) handleImportNodes(c *fiber.Ctx) error {
	var nodes []*merkle.Node
	if err := json.Unmarshal(c.Body(), &nodes); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var resp ImportResponse
	for _, n := range nodes {
		isNew, err := g.storer.Put(c.UserContext(), n)
		switch {
		case err != nil:
			g.logger.Warn("rejected imported node", zap.Error(err))
			resp.Errors++
		case isNew:
			resp.New++
		default:
			resp.Duplicate++
		}
	}

	g.logger.Info("imported nodes",
		zap.Int("new", resp.New),
		zap.Int("duplicate", resp.Duplicate),
		zap.Int("errors", resp.Errors),
	)

	return c.JSON(resp)
}
