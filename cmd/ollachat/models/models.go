package modelscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ollachat/cmd/ollachat/cmdconfig"
	"github.com/papercomputeco/ollachat/pkg/llm"
	"github.com/papercomputeco/ollachat/pkg/ollama"
)

const modelsLongDesc string = `List the models the inference server has installed.

An unreachable server or an unreadable catalog prints no models; the
default model is shown instead so there is always something to pick.

Examples:
  ollachat models
  ollachat models --json
  ollachat models --url http://gpu-box:11434`

const modelsShortDesc string = "List available models"

type modelsCommander struct {
	json bool
}

func NewModelsCmd() *cobra.Command {
	cmder := &modelsCommander{}

	cmd := &cobra.Command{
		Use:   "models",
		Short: modelsShortDesc,
		Long:  modelsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().BoolVar(&cmder.json, "json", false, "Print the raw catalog as JSON")

	return cmd
}

func (c *modelsCommander) run(ctx context.Context, cmd *cobra.Command) error {
	env, err := cmdconfig.Load(cmd, os.Stderr)
	if err != nil {
		return err
	}
	defer env.Close()

	models := env.Client().ListModels(ctx)
	out := cmd.OutOrStdout()

	if c.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(llm.ListModelsResponse{Models: models})
	}

	if len(models) == 0 {
		fallback := ollama.SelectableModels(models, env.Config.Generation.Model)[0]
		fmt.Fprintf(out, "No models reported by %s; using default %s\n", env.Endpoint.BaseURL(), fallback)
		return nil
	}

	width := 0
	for _, m := range models {
		width = max(width, len(m.Name))
	}

	for _, m := range models {
		line := fmt.Sprintf("%-*s", width, m.Name)
		if size := m.Size(); size > 0 {
			line += "  " + formatSize(size)
		}
		if t := m.ModifiedAt(); !t.IsZero() {
			line += "  " + t.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintln(out, line)
	}

	return nil
}

func formatSize(n int64) string {
	const unit = 1000
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "kMGTPE"[exp])
}
