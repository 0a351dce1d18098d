package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/papercomputeco/ollachat/pkg/llm"
	"github.com/papercomputeco/ollachat/pkg/ollama"
	"github.com/papercomputeco/ollachat/pkg/session"
)

// GenerateRequest is the body of POST /api/generate and
// POST /sessions/:id/messages. Omitted fields take the configured defaults.
type GenerateRequest struct {
	Model       string      `json:"model,omitempty"`
	Prompt      string      `json:"prompt"`
	System      *string     `json:"system,omitempty"`
	Temperature *float64    `json:"temperature,omitempty"`
	Stream      *bool       `json:"stream,omitempty"`
	Options     llm.Options `json:"options,omitempty"`
}

// settings merges the request over the defaults.
func (r GenerateRequest) settings(defaults session.Settings) (session.Settings, error) {
	s := defaults
	if r.Model != "" {
		s.Model = r.Model
	}
	if r.System != nil {
		s.System = *r.System
	}
	if r.Temperature != nil {
		if *r.Temperature < 0 || *r.Temperature > 1 {
			return s, errors.New("temperature must be between 0 and 1")
		}
		s.Temperature = *r.Temperature
	}
	if r.Stream != nil {
		s.Stream = *r.Stream
	}
	if len(r.Options) > 0 {
		s.Options = r.Options.Clone()
	}
	return s, nil
}

// StreamEvent is one NDJSON line of a streamed reply. Exactly one of Fragment,
// Error or Done is meaningful.
type StreamEvent struct {
	Fragment string `json:"fragment,omitempty"`

	Error  string `json:"error,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Status int    `json:"status,omitempty"`

	Done bool          `json:"done,omitempty"`
	Turn *session.Turn `json:"turn,omitempty"`
}

// GenerateResponse is the body of a non-streamed reply.
type GenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

func errorEvent(err error) StreamEvent {
	ev := StreamEvent{Error: err.Error()}

	var genErr *ollama.GenerationError
	if errors.As(err, &genErr) {
		ev.Kind = string(genErr.Kind)
		ev.Status = genErr.StatusCode
	}
	return ev
}

// errorStatus maps a generation failure to the gateway's own status code.
func errorStatus(err error) int {
	var genErr *ollama.GenerationError
	if errors.As(err, &genErr) && genErr.Kind == ollama.ErrorKindStatus && genErr.StatusCode == fiber.StatusNotFound {
		return fiber.StatusNotFound
	}
	return fiber.StatusBadGateway
}

func (g *Gateway) parseGenerateRequest(c *fiber.Ctx) (GenerateRequest, session.Settings, error) {
	var req GenerateRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		g.logger.Error("failed to parse request", zap.Error(err))
		return req, session.Settings{}, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	settings, err := req.settings(g.config.Defaults)
	if err != nil {
		return req, settings, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return req, settings, nil
}

// handleGenerate runs one stateless generation.
func (g *Gateway) handleGenerate(c *fiber.Ctx) error {
	startTime := time.Now()

	req, settings, err := g.parseGenerateRequest(c)
	if err != nil {
		return err
	}
	if req.Prompt == "" {
		return fiber.NewError(fiber.StatusBadRequest, "prompt is required")
	}

	g.logger.Debug("received generate request",
		zap.String("model", settings.Model),
		zap.Bool("stream", settings.Stream),
		zap.String("prompt_preview", truncate(req.Prompt, 50)),
	)

	upstream := settings.Request(req.Prompt)

	if !settings.Stream {
		text, err := ollama.Collect(g.backend.Generate(c.UserContext(), upstream))
		g.metrics.observeGeneration(settings.Model, 0, startTime, generationOutcome(err, false))
		if err != nil {
			g.logger.Warn("generation failed", zap.String("model", settings.Model), zap.Error(err))
			return c.Status(errorStatus(err)).JSON(errorEvent(err))
		}
		return c.JSON(GenerateResponse{Model: settings.Model, Response: text})
	}

	g.streamEvents(c, func(ctx context.Context, emit emitFunc) {
		var (
			count  int
			genErr error
		)

		for f := range g.backend.Generate(ctx, upstream) {
			if f.IsError() {
				genErr = f.Err
				emit(errorEvent(f.Err))
				continue
			}
			count++
			emit(StreamEvent{Fragment: f.Text})
		}

		cancelled := ctx.Err() != nil
		if !cancelled {
			emit(StreamEvent{Done: true})
		}

		g.metrics.observeGeneration(settings.Model, count, startTime, generationOutcome(genErr, cancelled))
		g.logger.Debug("streaming complete",
			zap.String("model", settings.Model),
			zap.Int("fragments", count),
			zap.Bool("cancelled", cancelled),
			zap.Duration("duration", time.Since(startTime)),
		)
	})

	return nil
}

// emitFunc writes one event and reports whether the client is still there.
type emitFunc func(StreamEvent) bool

// streamEvents answers with an NDJSON body produced by produce. The context
// passed to produce is cancelled as soon as a write to the client fails.
func (g *Gateway) streamEvents(c *fiber.Ctx, produce func(ctx context.Context, emit emitFunc)) {
	c.Set("Content-Type", "application/x-ndjson")
	c.Set("Transfer-Encoding", "chunked")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		enc := json.NewEncoder(w)
		emit := func(ev StreamEvent) bool {
			if ctx.Err() != nil {
				return false
			}
			if err := enc.Encode(ev); err != nil {
				g.logger.Debug("client went away", zap.Error(err))
				cancel()
				return false
			}
			if err := w.Flush(); err != nil {
				g.logger.Debug("client went away", zap.Error(err))
				cancel()
				return false
			}
			return true
		}

		produce(ctx, emit)
	}))
}
