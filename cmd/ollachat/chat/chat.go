package chatcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/ollachat/cmd/ollachat/cmdconfig"
	"github.com/papercomputeco/ollachat/pkg/session"
	"github.com/papercomputeco/ollachat/tui"
)

const chatLongDesc string = `Open the interactive chat screen.

Replies stream into the transcript as they arrive. Each prompt is sent
on its own with the system prompt; earlier turns stay on screen only.

Keys:
  enter        send the prompt
  esc          stop the reply in progress
  tab          next model from the catalog
  ctrl+k/j     temperature up/down by 0.1
  ctrl+l       clear the conversation
  ctrl+c       quit

Logs go to ~/.ollachat/chat.log, or to --log-file.`

const chatShortDesc string = "Chat in the terminal"

// The chat screen owns the terminal, so logs never go to stdout or stderr
const chatLogName = "chat.log"

type chatCommander struct {
	model      string
	archive    bool
	sqlitePath string
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Initial model (default: config generation.model)")
	cmd.Flags().BoolVar(&cmder.archive, "archive", false, "Record the conversation in the transcript archive")
	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to the transcript archive (implies --archive)")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, cmd *cobra.Command) error {
	env, err := cmdconfig.LoadForScreen(cmd, chatLogName)
	if err != nil {
		return err
	}
	defer env.Close()

	settings := env.Config.Settings()
	if c.model != "" {
		settings.Model = c.model
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

	env.Logger.Info("chat starting",
		zap.String("session", sess.ID()),
		zap.String("endpoint", env.Endpoint.String()),
		zap.String("model", settings.Model),
	)

	if err := tui.Run(ctx, env.Client(), sess, settings, env.Logger); err != nil {
		return fmt.Errorf("chat: %w", err)
	}

	env.Logger.Info("chat finished", zap.Int("turns", sess.Len()))
	return nil
}
