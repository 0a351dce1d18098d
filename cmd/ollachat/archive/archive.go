// Package archivecmder is the "ollachat archive" command tree for inspecting
// and moving the transcript archive.
package archivecmder

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	mergecmder "github.com/papercomputeco/ollachat/cmd/ollachat/archive/merge"
	pushcmder "github.com/papercomputeco/ollachat/cmd/ollachat/archive/push"
	"github.com/papercomputeco/ollachat/cmd/ollachat/cmdconfig"
	"github.com/papercomputeco/ollachat/pkg/merkle"
)

const archiveLongDesc string = `Inspect and share the transcript archive.

Every committed turn of a chat is stored as a content-addressed node
whose parent is the turn before it. A transcript is the path from a
root turn to a leaf.`

func NewArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Inspect and share the transcript archive",
		Long:  archiveLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(mergecmder.NewMergeCmd())
	cmd.AddCommand(pushcmder.NewPushCmd())

	return cmd
}

type listCommander struct {
	sqlitePath string
}

func newListCmd() *cobra.Command {
	cmder := &listCommander{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transcripts, one per leaf turn",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to the archive")

	return cmd
}

func (c *listCommander) run(ctx context.Context, cmd *cobra.Command) error {
	storer, err := openArchive(cmd, c.sqlitePath)
	if err != nil {
		return err
	}
	defer storer.Close()

	leaves, err := storer.Leaves(ctx)
	if err != nil {
		return fmt.Errorf("could not list transcripts: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(leaves) == 0 {
		fmt.Fprintln(out, "No transcripts.")
		return nil
	}

	for _, leaf := range leaves {
		lineage, err := storer.Lineage(ctx, leaf.Hash)
		if err != nil {
			return fmt.Errorf("could not read transcript %s: %w", leaf.Hash, err)
		}
		fmt.Fprintf(out, "%s  %3d turns  %s\n", shortHash(leaf.Hash), len(lineage), preview(lineage[0].Bucket.Content, 60))
	}

	return nil
}

type showCommander struct {
	sqlitePath string
}

func newShowCmd() *cobra.Command {
	cmder := &showCommander{}

	cmd := &cobra.Command{
		Use:   "show <hash>",
		Short: "Print the transcript ending at a turn",
		Long:  "Print the transcript ending at a turn. A unique hash prefix is enough.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to the archive")

	return cmd
}

func (c *showCommander) run(ctx context.Context, cmd *cobra.Command, hash string) error {
	storer, err := openArchive(cmd, c.sqlitePath)
	if err != nil {
		return err
	}
	defer storer.Close()

	full, err := resolveHash(ctx, storer, hash)
	if err != nil {
		return err
	}

	history, err := merkle.History(ctx, storer, full)
	if err != nil {
		return fmt.Errorf("could not read transcript %s: %w", full, err)
	}

	out := cmd.OutOrStdout()
	for i, b := range history {
		if i > 0 {
			fmt.Fprintln(out)
		}
		header := string(b.Role)
		if b.Model != "" {
			header += " (" + b.Model + ")"
		}
		fmt.Fprintf(out, "%s:\n%s\n", header, b.Content)
		if b.Error != "" {
			fmt.Fprintf(out, "[error: %s]\n", b.Error)
		}
	}

	return nil
}

func openArchive(cmd *cobra.Command, flagValue string) (*merkle.SQLiteStorer, error) {
	path, err := cmdconfig.ArchivePath(cmd, flagValue)
	if err != nil {
		return nil, fmt.Errorf("could not resolve archive: %w", err)
	}
	storer, err := merkle.NewSQLiteStorer(path)
	if err != nil {
		return nil, fmt.Errorf("could not open archive %s: %w", path, err)
	}
	return storer, nil
}

// resolveHash expands a hash prefix to the one stored hash it matches.
func resolveHash(ctx context.Context, storer merkle.Storer, prefix string) (string, error) {
	if ok, err := storer.Has(ctx, prefix); err == nil && ok {
		return prefix, nil
	}

	nodes, err := storer.List(ctx)
	if err != nil {
		return "", fmt.Errorf("could not list turns: %w", err)
	}

	var matches []string
	for _, n := range nodes {
		if strings.HasPrefix(n.Hash, prefix) {
			matches = append(matches, n.Hash)
		}
	}

	switch len(matches) {
	case 0:
		return "", merkle.ErrNotFound{Hash: prefix}
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("hash prefix %s is ambiguous (%d matches)", prefix, len(matches))
	}
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

func preview(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
