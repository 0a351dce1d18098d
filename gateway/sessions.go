package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/ollachat/pkg/session"
)

// SessionResponse describes one conversation.
type SessionResponse struct {
	ID    string         `json:"id"`
	Turns []session.Turn `json:"turns"`

	// Head is the archive hash of the latest turn
	Head string `json:"head,omitempty"`
	Busy bool   `json:"busy"`
}

func sessionResponse(s *session.Session) SessionResponse {
	return SessionResponse{
		ID:    s.ID(),
		Turns: s.Turns(),
		Head:  s.Head(),
		Busy:  s.Busy(),
	}
}

func (g *Gateway) lookupSession(c *fiber.Ctx) (*session.Session, error) {
	s, ok := g.sessions.Get(c.Params("id"))
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	return s, nil
}

func (g *Gateway) handleListSessions(c *fiber.Ctx) error {
	ids := g.sessions.IDs()
	return c.JSON(map[string]any{
		"count":    len(ids),
		"sessions": ids,
	})
}

func (g *Gateway) handleCreateSession(c *fiber.Ctx) error {
	s := g.sessions.Create()
	g.logger.Info("session created", zap.String("session", s.ID()))
	return c.Status(fiber.StatusCreated).JSON(sessionResponse(s))
}

func (g *Gateway) handleGetSession(c *fiber.Ctx) error {
	s, err := g.lookupSession(c)
	if err != nil {
		return err
	}
	return c.JSON(sessionResponse(s))
}

func (g *Gateway) handleDeleteSession(c *fiber.Ctx) error {
	if !g.sessions.Delete(c.Params("id")) {
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleClearSession discards the transcript. The archive keeps what was
// already committed.
func (g *Gateway) handleClearSession(c *fiber.Ctx) error {
	s, err := g.lookupSession(c)
	if err != nil {
		return err
	}
	s.Clear()
	return c.SendStatus(fiber.StatusNoContent)
}

// handleSessionMessage appends the prompt to the conversation and answers with
// the reply, streamed as NDJSON when the settings say so. The final stream
// line carries the committed assistant turn.
func (g *Gateway) handleSessionMessage(c *fiber.Ctx) error {
	startTime := time.Now()

	s, err := g.lookupSession(c)
	if err != nil {
		return err
	}

	req, settings, err := g.parseGenerateRequest(c)
	if err != nil {
		return err
	}

	ex, err := s.Begin(c.UserContext(), req.Prompt, settings.Model)
	switch {
	case errors.Is(err, session.ErrEmptyPrompt):
		return fiber.NewError(fiber.StatusBadRequest, "prompt is required")
	case errors.Is(err, session.ErrBusy):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case err != nil:
		return err
	}

	if !settings.Stream {
		turn := ex.Run(c.UserContext(), g.backend, settings, nil)
		g.metrics.observeGeneration(settings.Model, 0, startTime, generationOutcome(ex.Err(), false))
		return c.JSON(turn)
	}

	g.streamEvents(c, func(ctx context.Context, emit emitFunc) {
		var sent, count int
		turn := ex.Run(ctx, g.backend, settings, func(partial string) {
			if len(partial) == sent {
				return
			}
			count++
			emit(StreamEvent{Fragment: partial[sent:]})
			sent = len(partial)
		})

		cancelled := ctx.Err() != nil
		if !cancelled {
			if turn.Failed() {
				emit(errorEvent(ex.Err()))
			}
			emit(StreamEvent{Done: true, Turn: &turn})
		}

		g.metrics.observeGeneration(settings.Model, count, startTime, generationOutcome(ex.Err(), cancelled))
	})

	return nil
}
