package pushcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ollachat/cmd/ollachat/cmdconfig"
	"github.com/papercomputeco/ollachat/pkg/merkle"
)

const pushLongDesc string = `Push local transcripts to a remote ollachat gateway.

Walks every transcript in the local archive from its first turn to its
last and POSTs the turns to the gateway's /transcripts/nodes endpoint,
parents first. Turns shared by several transcripts are sent once.
Turns whose hash no longer matches their content are not sent.

Examples:
  ollachat archive push http://192.168.1.42:8080
  ollachat archive push --sqlite ~/.ollachat/archive.db http://localhost:8080`

const pushShortDesc string = "Push transcripts to a remote gateway"

type pushCommander struct {
	sqlitePath string
	batchSize  int

	client *http.Client
}

// importResult mirrors the gateway's import response.
type importResult struct {
	New       int `json:"new"`
	Duplicate int `json:"duplicate"`
	Errors    int `json:"errors"`
}

func (r *importResult) add(o importResult) {
	r.New += o.New
	r.Duplicate += o.Duplicate
	r.Errors += o.Errors
}

func NewPushCmd() *cobra.Command {
	cmder := &pushCommander{client: http.DefaultClient}

	cmd := &cobra.Command{
		Use:   "push <gateway-url>",
		Short: pushShortDesc,
		Long:  pushLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, strings.TrimRight(args[0], "/"))
		},
	}

	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to the local archive")
	cmd.Flags().IntVar(&cmder.batchSize, "batch-size", 500, "Turns per HTTP request")

	return cmd
}

func (c *pushCommander) run(ctx context.Context, cmd *cobra.Command, serverURL string) error {
	if c.batchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.batchSize)
	}

	dbPath, err := cmdconfig.ArchivePath(cmd, c.sqlitePath)
	if err != nil {
		return fmt.Errorf("could not resolve local archive: %w", err)
	}

	storer, err := merkle.NewSQLiteStorer(dbPath)
	if err != nil {
		return fmt.Errorf("could not open local archive %s: %w", dbPath, err)
	}
	defer storer.Close()

	leaves, err := storer.Leaves(ctx)
	if err != nil {
		return fmt.Errorf("could not list local transcripts: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(leaves) == 0 {
		fmt.Fprintln(out, "No local transcripts to push.")
		return nil
	}

	fmt.Fprintf(out, "Pushing %d transcripts from %s to %s\n", len(leaves), dbPath, serverURL)

	var total importResult
	var invalid int
	sent := make(map[string]bool)

	for _, leaf := range leaves {
		lineage, err := storer.Lineage(ctx, leaf.Hash)
		if err != nil {
			return fmt.Errorf("could not read transcript %s: %w", leaf.Hash, err)
		}

		var pending []*merkle.Node
		var skipped int
		for _, n := range lineage {
			if sent[n.Hash] {
				continue
			}
			sent[n.Hash] = true
			if !n.Valid() {
				skipped++
				continue
			}
			pending = append(pending, n)
		}

		result, err := c.postAll(ctx, serverURL, pending)
		if err != nil {
			return fmt.Errorf("push failed for transcript %s: %w", shortHash(leaf.Hash), err)
		}

		line := fmt.Sprintf("  %s  %d turns: %d new, %d already existed",
			shortHash(leaf.Hash), len(lineage), result.New, result.Duplicate)
		if skipped > 0 {
			line += fmt.Sprintf(", %d invalid not sent", skipped)
		}
		fmt.Fprintln(out, line)

		total.add(result)
		invalid += skipped
	}

	fmt.Fprintf(out, "Pushed %d new turns (%d already existed, %d rejected, %d invalid not sent)\n",
		total.New, total.Duplicate, total.Errors, invalid)

	return nil
}

// postAll sends nodes in batches of at most batchSize.
func (c *pushCommander) postAll(ctx context.Context, serverURL string, nodes []*merkle.Node) (importResult, error) {
	var result importResult
	for start := 0; start < len(nodes); start += c.batchSize {
		end := min(start+c.batchSize, len(nodes))

		batch, err := c.postBatch(ctx, serverURL, nodes[start:end])
		if err != nil {
			return result, err
		}
		result.add(batch)
	}
	return result, nil
}

func (c *pushCommander) postBatch(ctx context.Context, serverURL string, nodes []*merkle.Node) (importResult, error) {
	body, err := json.Marshal(nodes)
	if err != nil {
		return importResult{}, fmt.Errorf("could not marshal turns: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/transcripts/nodes", bytes.NewReader(body))
	if err != nil {
		return importResult{}, fmt.Errorf("could not build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return importResult{}, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return importResult{}, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result importResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return importResult{}, fmt.Errorf("could not decode response: %w", err)
	}
	return result, nil
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
