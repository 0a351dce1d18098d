// Package mcpserver exposes the model catalog and single-turn generation as
// Model Context Protocol tools, so other agents can use the configured
// inference server.
package mcpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/ollachat/pkg/llm"
	"github.com/papercomputeco/ollachat/pkg/ollama"
	"github.com/papercomputeco/ollachat/pkg/session"
)

const (
	serverName = "ollachat"

	listModelsToolName = "list_models"
	generateToolName   = "generate"
)

// Backend is the inference client the tools call. *ollama.Client satisfies it.
type Backend interface {
	ListModels(ctx context.Context) []llm.ModelDescriptor
	Generate(ctx context.Context, req llm.GenerateRequest) <-chan llm.Fragment
}

// Config configures the server.
type Config struct {
	// Defaults fill in whatever a generate call leaves out
	Defaults session.Settings

	Version string
}

// ListModelsInput takes no arguments.
type ListModelsInput struct{}

// ListModelsOutput is the catalog as a list of selectable names.
type ListModelsOutput struct {
	Models []string `json:"models"`

	// Fallback is true when the server returned no models and the list holds
	// only the default model name
	Fallback bool `json:"fallback"`
}

// GenerateInput is one single-turn generation.
type GenerateInput struct {
	Prompt      string   `json:"prompt" jsonschema:"the prompt to send to the model"`
	Model       string   `json:"model,omitempty" jsonschema:"model name from list_models; the configured default when empty"`
	System      string   `json:"system,omitempty" jsonschema:"system prompt; the configured default when empty"`
	Temperature *float64 `json:"temperature,omitempty" jsonschema:"sampling temperature between 0 and 1"`
}

// GenerateOutput is the full generated text.
type GenerateOutput struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

// Server wraps an MCP server bound to one backend.
type Server struct {
	backend Backend
	config  Config
	logger  *zap.Logger
	server  *mcp.Server
}

// New builds the MCP server and registers its tools.
func New(backend Backend, config Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Version == "" {
		config.Version = "dev"
	}

	s := &Server{
		backend: backend,
		config:  config,
		logger:  logger,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    serverName,
			Version: config.Version,
		}, nil),
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        listModelsToolName,
		Description: "List the models available on the inference server.",
	}, s.handleListModels)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        generateToolName,
		Description: "Generate a single reply to a prompt. No conversation history is kept between calls.",
	}, s.handleGenerate)

	return s
}

// MCPServer returns the underlying server, e.g. to connect a custom transport.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}

// RunStdio serves over stdin/stdout until the client disconnects or ctx ends.
func (s *Server) RunStdio(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler serves the streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}

func (s *Server) handleListModels(ctx context.Context, _ *mcp.CallToolRequest, _ ListModelsInput) (*mcp.CallToolResult, ListModelsOutput, error) {
	models := s.backend.ListModels(ctx)

	out := ListModelsOutput{
		Models:   ollama.SelectableModels(models, s.config.Defaults.Model),
		Fallback: true,
	}
	for _, m := range models {
		if m.Name != "" {
			out.Fallback = false
			break
		}
	}

	s.logger.Debug("mcp list_models", zap.Int("count", len(models)))
	return nil, out, nil
}

func (s *Server) handleGenerate(ctx context.Context, _ *mcp.CallToolRequest, in GenerateInput) (*mcp.CallToolResult, GenerateOutput, error) {
	if in.Prompt == "" {
		return nil, GenerateOutput{}, errors.New("prompt is required")
	}

	settings := s.config.Defaults
	if in.Model != "" {
		settings.Model = in.Model
	}
	if in.System != "" {
		settings.System = in.System
	}
	if in.Temperature != nil {
		settings.Temperature = *in.Temperature
	}

	s.logger.Debug("mcp generate",
		zap.String("model", settings.Model),
		zap.Int("prompt_len", len(in.Prompt)),
	)

	text, err := ollama.Collect(s.backend.Generate(ctx, settings.Request(in.Prompt)))
	if err != nil {
		s.logger.Warn("mcp generate failed", zap.String("model", settings.Model), zap.Error(err))
		return nil, GenerateOutput{}, err
	}

	return nil, GenerateOutput{Model: settings.Model, Response: text}, nil
}
