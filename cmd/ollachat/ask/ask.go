package askcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/papercomputeco/ollachat/cmd/ollachat/cmdconfig"
	"github.com/papercomputeco/ollachat/pkg/session"
)

const askLongDesc string = `Send one prompt and print the reply as it streams in.

The prompt is taken from the arguments, or from stdin when no
arguments are given. Only this prompt and the system prompt are sent;
there is no conversation history. The command exits non-zero when the
generation fails, after printing whatever text arrived first.

Examples:
  ollachat ask "why is the sky blue?"
  ollachat ask -m llama3.2:1b --temperature 0.2 "write a haiku"
  git diff | ollachat ask --system "You review code." --markdown`

const askShortDesc string = "Send a single prompt"

// ErrGenerationFailed is returned when the reply ended in an error fragment.
var ErrGenerationFailed = errors.New("generation failed")

type askCommander struct {
	model       string
	system      string
	temperature float64
	noStream    bool
	markdown    bool
	archive     bool
	sqlitePath  string
}

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask [prompt...]",
		Short: askShortDesc,
		Long:  askLongDesc,
		// A failed generation is not a usage mistake
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args)
		},
	}

	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model to use (default: config generation.model)")
	cmd.Flags().StringVar(&cmder.system, "system", "", "System prompt (default: config generation.system)")
	cmd.Flags().Float64Var(&cmder.temperature, "temperature", session.DefaultTemperature, "Sampling temperature between 0 and 1")
	cmd.Flags().BoolVar(&cmder.noStream, "no-stream", false, "Wait for the whole reply in a single response")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render the reply as markdown when printing to a terminal")
	cmd.Flags().BoolVar(&cmder.archive, "archive", false, "Record the exchange in the transcript archive")
	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to the transcript archive (implies --archive)")

	return cmd
}

func (c *askCommander) run(ctx context.Context, cmd *cobra.Command, args []string) error {
	prompt, err := readPrompt(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	env, err := cmdconfig.Load(cmd, os.Stderr)
	if err != nil {
		return err
	}
	defer env.Close()

	settings := env.Config.Settings()
	if c.model != "" {
		settings.Model = c.model
	}
	if c.system != "" {
		settings.System = c.system
	}
	if cmd.Flags().Changed("temperature") {
		if c.temperature < 0 || c.temperature > 1 {
			return fmt.Errorf("temperature must be between 0 and 1, got %g", c.temperature)
		}
		settings.Temperature = c.temperature
	}
	if c.noStream {
		settings.Stream = false
	}

	opts := []session.Option{session.WithLogger(env.Logger)}
	if c.archive || c.sqlitePath != "" || env.Config.Archive.Enabled {
		storer, err := env.OpenArchive(c.sqlitePath)
		if err != nil {
			return err
		}
		defer storer.Close()
		opts = append(opts, session.WithArchive(storer))
	}
	sess := session.New(opts...)

	out := cmd.OutOrStdout()
	rendered := c.markdown && isTerminal(out)

	printed := 0
	render := func(partial string) {
		if rendered {
			return
		}
		fmt.Fprint(out, partial[printed:])
		printed = len(partial)
	}

	env.Logger.Debug("asking",
		zap.String("model", settings.Model),
		zap.Float64("temperature", settings.Temperature),
		zap.Bool("stream", settings.Stream),
	)

	turn, err := sess.Submit(ctx, env.Client(), settings, prompt, render)
	if err != nil {
		return err
	}

	if rendered && turn.Content != turn.Error {
		fmt.Fprint(out, renderMarkdown(out, turn.Content))
	} else if printed > 0 && !strings.HasSuffix(turn.Content, "\n") {
		fmt.Fprintln(out)
	}

	if turn.Failed() {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", turn.Error)
		return ErrGenerationFailed
	}

	return nil
}

// readPrompt joins the arguments, or reads stdin when there are none and stdin
// is not a terminal.
func readPrompt(stdin io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	if isTerminal(stdin) {
		return "", session.ErrEmptyPrompt
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("could not read prompt from stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// renderMarkdown renders text for the terminal behind w, falling back to the
// plain text when rendering fails.
func renderMarkdown(w io.Writer, text string) string {
	f := w.(*os.File)

	width := 80
	if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 0 {
		width = cols
	}

	style := "light"
	if termenv.NewOutput(f).HasDarkBackground() {
		style = "dark"
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err != nil {
		return text + "\n"
	}
	out, err := r.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}
