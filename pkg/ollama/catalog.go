package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/papercomputeco/ollachat/pkg/llm"
)

// ListModels returns the models the server reports as available, in server
// order. Any failure (unreachable server, non-200, malformed body, missing
// "models" key) yields an empty list. Exactly one request is made.
func (c *Client) ListModels(ctx context.Context) []llm.ModelDescriptor {
	models, err := c.listModels(ctx)
	if err != nil {
		c.logger.Warn("model catalog unavailable",
			zap.String("endpoint", c.endpoint.String()),
			zap.Error(err),
		)
		return []llm.ModelDescriptor{}
	}

	c.logger.Debug("fetched model catalog", zap.Int("count", len(models)))
	return models
}

func (c *Client) listModels(ctx context.Context) ([]llm.ModelDescriptor, error) {
	ctx, cancel := context.WithTimeout(ctx, catalogTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint.URL("/api/tags"), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.endpoint.Apply(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var result llm.ListModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if result.Models == nil {
		return nil, fmt.Errorf("response has no models collection")
	}

	return result.Models, nil
}

// SelectableModels returns the catalog names for a picker, or just fallback
// when the catalog has no named model. Entries without a name are skipped.
func SelectableModels(models []llm.ModelDescriptor, fallback string) []string {
	names := make([]string, 0, len(models))
	for _, m := range models {
		if m.Name == "" {
			continue
		}
		names = append(names, m.Name)
	}

	if len(names) == 0 {
		return []string{fallback}
	}
	return names
}
