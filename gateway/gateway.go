// Package gateway is the HTTP front door of ollachat: the model catalog,
// single-turn generation streamed as NDJSON, server-side conversation sessions,
// the transcript archive, Prometheus metrics and the MCP endpoint.
package gateway

import (
	"fmt"
	"net"
	"strings"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/papercomputeco/ollachat/pkg/llm"
	"github.com/papercomputeco/ollachat/pkg/mcpserver"
	"github.com/papercomputeco/ollachat/pkg/merkle"
	"github.com/papercomputeco/ollachat/pkg/ollama"
	"github.com/papercomputeco/ollachat/pkg/session"
)

// Backend is the inference client behind the gateway.
type Backend = mcpserver.Backend

// Gateway serves the HTTP API. Generation state lives in the sessions; the
// generate endpoint itself is stateless per turn.
type Gateway struct {
	config   Config
	backend  Backend
	storer   merkle.Storer
	sessions *session.Registry
	metrics  *metrics
	mcp      *mcpserver.Server
	logger   *zap.Logger
	server   *fiber.App
}

// New creates a new Gateway.
func New(config Config, backend Backend, logger *zap.Logger) (*Gateway, error) {
	var storer merkle.Storer
	var err error

	if config.ArchivePath != "" {
		storer, err = merkle.NewSQLiteStorer(config.ArchivePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open transcript archive: %w", err)
		}
		logger.Info("using SQLite transcript archive", zap.String("path", config.ArchivePath))
	} else {
		storer = merkle.NewMemoryStorer()
		logger.Info("using in-memory transcript archive")
	}

	return newGateway(config, backend, storer, logger), nil
}

func newGateway(config Config, backend Backend, storer merkle.Storer, logger *zap.Logger) *Gateway {
	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	g := &Gateway{
		config:  config,
		backend: backend,
		storer:  storer,
		sessions: session.NewRegistry(
			session.WithArchive(storer),
			session.WithLogger(logger),
		),
		metrics: newMetrics(),
		mcp: mcpserver.New(backend, mcpserver.Config{
			Defaults: config.Defaults,
			Version:  config.Version,
		}, logger),
		logger: logger,
		server: app,
	}

	app.Use(g.metrics.middleware)

	// Health check
	app.Get("/health", g.handleHealth)

	app.Get("/api/models", g.handleModels)
	app.Post("/api/generate", g.handleGenerate)

	app.Get("/sessions", g.handleListSessions)
	app.Post("/sessions", g.handleCreateSession)
	app.Get("/sessions/:id", g.handleGetSession)
	app.Delete("/sessions/:id", g.handleDeleteSession)
	app.Post("/sessions/:id/messages", g.handleSessionMessage)
	app.Delete("/sessions/:id/turns", g.handleClearSession)

	// Transcript archive inspection endpoints
	app.Get("/transcripts/stats", g.handleTranscriptStats)
	app.Get("/transcripts/node/:hash", g.handleGetNode)
	app.Get("/transcripts/history", g.handleListHistories)
	app.Get("/transcripts/history/:hash", g.handleGetHistory)
	app.Post("/transcripts/nodes", g.handleImportNodes)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(g.metrics.registry, promhttp.HandlerOpts{})))
	app.All("/mcp", adaptor.HTTPHandler(g.mcp.Handler()))

	return g
}

// App returns the fiber app, e.g. for app.Test.
func (g *Gateway) App() *fiber.App {
	return g.server
}

// Run starts the gateway on the configured listening address
func (g *Gateway) Run() error {
	g.logger.Info("starting gateway",
		zap.String("listen", g.config.ListenAddr),
		zap.String("default_model", g.config.Defaults.Model),
	)

	return g.server.Listen(g.config.ListenAddr)
}

// RunWithListener serves on an existing listener.
func (g *Gateway) RunWithListener(ln net.Listener) error {
	g.logger.Info("starting gateway", zap.String("listen", ln.Addr().String()))
	return g.server.Listener(ln)
}

// Shutdown stops accepting connections and waits for open requests.
func (g *Gateway) Shutdown() error {
	return g.server.Shutdown()
}

// Close releases the transcript archive.
func (g *Gateway) Close() error {
	return g.storer.Close()
}

func (g *Gateway) handleHealth(c *fiber.Ctx) error {
	return c.JSON(map[string]string{
		"status":  "ok",
		"version": g.config.Version,
	})
}

// ModelsResponse is the body of GET /api/models.
type ModelsResponse struct {
	// Models is the catalog verbatim, empty when the server is unavailable
	Models []llm.ModelDescriptor `json:"models"`

	// Names is what a model picker offers: the catalog names, or the default
	// model alone when the catalog has no named entry
	Names []string `json:"names"`
}

func (g *Gateway) handleModels(c *fiber.Ctx) error {
	models := g.backend.ListModels(c.UserContext())
	g.metrics.catalogModels.Set(float64(len(models)))

	return c.JSON(ModelsResponse{
		Models: models,
		Names:  ollama.SelectableModels(models, g.config.Defaults.Model),
	})
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if fe, ok := err.(*fiber.Error); ok {
		code = fe.Code
	}
	return c.Status(code).JSON(llm.ErrorResponse{Error: err.Error()})
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
