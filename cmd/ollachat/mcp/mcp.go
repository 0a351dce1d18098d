package mcpcmder

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/ollachat/cmd/ollachat/cmdconfig"
	"github.com/papercomputeco/ollachat/pkg/mcpserver"
)

const mcpLongDesc string = `Serve the model catalog and generation as MCP tools over stdio.

Tools:
  list_models   names of the installed models
  generate      one prompt, one reply

Point an MCP client at "ollachat mcp". Logs go to stderr so stdout
carries only the protocol.`

const mcpShortDesc string = "Run an MCP server on stdio"

func NewMCPCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: mcpShortDesc,
		Long:  mcpLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd, version)
		},
	}
}

func run(ctx context.Context, cmd *cobra.Command, version string) error {
	env, err := cmdconfig.Load(cmd, os.Stderr)
	if err != nil {
		return err
	}
	defer env.Close()

	server := mcpserver.New(env.Client(), mcpserver.Config{
		Defaults: env.Config.Settings(),
		Version:  version,
	}, env.Logger)

	env.Logger.Info("mcp server starting on stdio", zap.String("endpoint", env.Endpoint.String()))
	return server.RunStdio(ctx)
}
