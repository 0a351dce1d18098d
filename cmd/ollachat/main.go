package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	archivecmder "github.com/papercomputeco/ollachat/cmd/ollachat/archive"
	askcmder "github.com/papercomputeco/ollachat/cmd/ollachat/ask"
	chatcmder "github.com/papercomputeco/ollachat/cmd/ollachat/chat"
	"github.com/papercomputeco/ollachat/cmd/ollachat/cmdconfig"
	mcpcmder "github.com/papercomputeco/ollachat/cmd/ollachat/mcp"
	modelscmder "github.com/papercomputeco/ollachat/cmd/ollachat/models"
	servecmder "github.com/papercomputeco/ollachat/cmd/ollachat/serve"
)

// Set with -ldflags "-X main.version=..."
var version = "dev"

const rootLongDesc string = `ollachat talks to an Ollama-compatible inference server.

The server is chosen by --url, then OLLAMA_BASE_URL in the secrets
file (~/.ollachat/secrets.toml), then the environment or .env, then
http://localhost:11434. Basic auth is used only when both a username
and a password are found.`

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ollachat",
		Short:        "Chat with models on an Ollama server",
		Long:         rootLongDesc,
		Version:      version,
		SilenceUsage: true,
	}

	cmdconfig.AddPersistentFlags(cmd)

	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(modelscmder.NewModelsCmd())
	cmd.AddCommand(servecmder.NewServeCmd(version))
	cmd.AddCommand(mcpcmder.NewMCPCmd(version))
	cmd.AddCommand(archivecmder.NewArchiveCmd())

	return cmd
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
