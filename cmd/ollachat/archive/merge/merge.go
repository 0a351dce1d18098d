package mergecmder

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ollachat/cmd/ollachat/cmdconfig"
	"github.com/papercomputeco/ollachat/pkg/merkle"
)

const mergeLongDesc string = `Merge one or more transcript archives into a target archive.

Turns are content-addressed, so merging is a union. Turns the target
already has are skipped. Turns whose hash does not match their content,
or whose parent turn exists in neither archive, are reported and left
out so the target only ever holds complete, verifiable transcripts.

Examples:
  ollachat archive merge laptop.db desktop.db
  ollachat archive merge --dry-run ~/backup/archive.db
  ollachat archive merge --sqlite /tmp/merged.db ~/alice/archive.db ~/bob/archive.db`

const mergeShortDesc string = "Merge transcript archives"

type mergeCommander struct {
	sqlitePath string
	dryRun     bool
}

func NewMergeCmd() *cobra.Command {
	cmder := &mergeCommander{}

	cmd := &cobra.Command{
		Use:   "merge [sources...]",
		Short: mergeShortDesc,
		Long:  mergeLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args)
		},
	}

	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to the target archive")
	cmd.Flags().BoolVarP(&cmder.dryRun, "dry-run", "n", false, "Report what would be merged without writing")

	return cmd
}

func (c *mergeCommander) run(ctx context.Context, cmd *cobra.Command, sources []string) error {
	targetPath, err := cmdconfig.ArchivePath(cmd, c.sqlitePath)
	if err != nil {
		return fmt.Errorf("could not resolve target archive: %w", err)
	}

	target, err := merkle.NewSQLiteStorer(targetPath)
	if err != nil {
		return fmt.Errorf("could not open target archive %s: %w", targetPath, err)
	}
	defer target.Close()

	out := cmd.OutOrStdout()
	var total merkle.MergeResult

	for _, srcPath := range sources {
		if samePath(srcPath, targetPath) {
			return fmt.Errorf("source %s is the target archive", srcPath)
		}

		result, err := mergeFrom(ctx, target, srcPath, c.dryRun)
		if err != nil {
			return err
		}

		total.Added += result.Added
		total.Existing += result.Existing
		total.Invalid += result.Invalid
		total.Orphaned += result.Orphaned

		report(out, "  "+srcPath+": ", result)
	}

	verb := "Merged"
	if c.dryRun {
		verb = "Would merge"
	}
	report(out, fmt.Sprintf("%s %d sources into %s: ", verb, len(sources), targetPath), total)

	return nil
}

func mergeFrom(ctx context.Context, target merkle.Storer, srcPath string, dryRun bool) (merkle.MergeResult, error) {
	source, err := merkle.NewSQLiteStorer(srcPath)
	if err != nil {
		return merkle.MergeResult{}, fmt.Errorf("could not open source archive %s: %w", srcPath, err)
	}
	defer source.Close()

	result, err := merkle.Merge(ctx, target, source, dryRun)
	if err != nil {
		return result, fmt.Errorf("could not merge %s: %w", srcPath, err)
	}
	return result, nil
}

func report(w io.Writer, prefix string, r merkle.MergeResult) {
	line := fmt.Sprintf("%s%d new, %d already existed", prefix, r.Added, r.Existing)
	if r.Invalid > 0 {
		line += fmt.Sprintf(", %d invalid skipped", r.Invalid)
	}
	if r.Orphaned > 0 {
		line += fmt.Sprintf(", %d orphaned skipped", r.Orphaned)
	}
	fmt.Fprintln(w, line)
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return absA == absB
}
