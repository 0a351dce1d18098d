package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/ollachat/cmd/ollachat/cmdconfig"
	"github.com/papercomputeco/ollachat/gateway"
	appconfig "github.com/papercomputeco/ollachat/pkg/config"
)

const serveLongDesc string = `Run the HTTP gateway in front of the inference server.

Serves the model catalog, single-turn generation streamed as NDJSON,
server-side chat sessions, the transcript archive, Prometheus metrics
on /metrics and an MCP endpoint on /mcp.

Examples:
  ollachat serve
  ollachat serve --listen :9090 --archive
  ollachat serve --sqlite /var/lib/ollachat/archive.db`

const serveShortDesc string = "Run the HTTP gateway"

type serveCommander struct {
	listen     string
	archive    bool
	sqlitePath string
	version    string
}

func NewServeCmd(version string) *cobra.Command {
	cmder := &serveCommander{version: version}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address to listen on (default: config gateway.listen)")
	cmd.Flags().BoolVar(&cmder.archive, "archive", false, "Keep transcripts in the SQLite archive instead of memory")
	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to the SQLite archive (implies --archive)")

	return cmd
}

func (c *serveCommander) run(ctx context.Context, cmd *cobra.Command) error {
	env, err := cmdconfig.Load(cmd, os.Stdout)
	if err != nil {
		return err
	}
	defer env.Close()
	logger := env.Logger

	config := gateway.Config{
		ListenAddr: env.Config.Gateway.Listen,
		Defaults:   env.Config.Settings(),
		Version:    c.version,
	}
	if c.listen != "" {
		config.ListenAddr = c.listen
	}
	if c.archive || c.sqlitePath != "" || env.Config.Archive.Enabled {
		config.ArchivePath, err = env.Config.ArchivePath(c.sqlitePath)
		if err != nil {
			return err
		}
		if err := appconfig.EnsureDir(config.ArchivePath); err != nil {
			return fmt.Errorf("could not create archive directory: %w", err)
		}
	}

	logger.Info("ollachat gateway starting",
		zap.String("listen", config.ListenAddr),
		zap.String("upstream", env.Endpoint.String()),
		zap.String("model", config.Defaults.Model),
	)

	g, err := gateway.New(config, env.Client(), logger)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}
	defer g.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- g.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("gateway failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down gateway")
		if err := g.Shutdown(); err != nil {
			return fmt.Errorf("gateway shutdown: %w", err)
		}
		return <-errCh
	}
}
