// Package session holds one conversation: the ordered transcript of user and
// assistant turns and the single in-flight exchange that turns a fragment
// stream into an assistant turn.
//
// The transcript is local bookkeeping. Only the latest prompt and the system
// prompt travel upstream; clearing never touches the client or the endpoint.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/ollachat/pkg/llm"
	"github.com/papercomputeco/ollachat/pkg/merkle"
)

var (
	// ErrBusy is returned when a prompt is submitted while a generation is
	// still in flight.
	ErrBusy = errors.New("a generation is already in progress")

	// ErrEmptyPrompt is returned for a prompt with no visible characters.
	ErrEmptyPrompt = errors.New("prompt is empty")
)

// Generator produces the fragment stream for one request. *ollama.Client
// satisfies it.
type Generator interface {
	Generate(ctx context.Context, req llm.GenerateRequest) <-chan llm.Fragment
}

// RenderFunc is called once per fragment with the text assembled so far.
type RenderFunc func(partial string)

// Turn is one message of the transcript.
type Turn struct {
	Role      llm.Role  `json:"role"`
	Content   string    `json:"content"`
	Model     string    `json:"model,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// Hash is the archive node of this turn, when archiving is on
	Hash string `json:"hash,omitempty"`
}

// Failed reports whether the turn is an assistant turn that ended in an error.
func (t Turn) Failed() bool {
	return t.Error != ""
}

// Session is one conversation. It is safe for concurrent use, but allows only
// one exchange at a time.
type Session struct {
	id      string
	logger  *zap.Logger
	archive merkle.Storer
	now     func() time.Time

	mu    sync.Mutex
	turns []Turn
	head  *merkle.Node
	open  *Exchange
	epoch int
}

// Option configures a Session.
type Option func(*Session)

// WithArchive stores every committed turn as a node chained to the previous
// turn. Archive failures are logged and never block the conversation.
func WithArchive(storer merkle.Storer) Option {
	return func(s *Session) {
		s.archive = storer
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithID sets the session identifier instead of a random one.
func WithID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

// New creates an empty session.
func New(opts ...Option) *Session {
	s := &Session{
		id:     uuid.NewString(),
		logger: zap.NewNop(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With(zap.String("session", s.id))
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Turns returns a copy of the transcript, oldest first.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Head returns the archive hash of the latest turn, or "" when nothing has
// been archived since the last clear.
func (s *Session) Head() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.head == nil {
		return ""
	}
	return s.head.Hash
}

// Busy reports whether an exchange is open.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open != nil
}

// Clear discards every turn and starts a new archive chain. An exchange that
// is still open completes without adding its turn.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = nil
	s.head = nil
	s.open = nil
	s.epoch++

	s.logger.Debug("session cleared")
}

// Begin appends the user turn for prompt and opens the exchange that will
// collect the assistant's reply.
func (s *Session) Begin(ctx context.Context, prompt, model string) (*Exchange, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open != nil {
		return nil, ErrBusy
	}

	s.appendLocked(ctx, Turn{
		Role:      llm.RoleUser,
		Content:   prompt,
		Model:     model,
		CreatedAt: s.now(),
	})

	ex := &Exchange{
		session: s,
		prompt:  prompt,
		model:   model,
		epoch:   s.epoch,
	}
	s.open = ex

	return ex, nil
}

// Submit runs one full exchange: it appends the user turn, streams the reply
// from gen, calls render after every fragment and appends the assistant turn.
// The returned error is only ErrBusy or ErrEmptyPrompt; generation failures
// are recorded on the returned turn.
func (s *Session) Submit(ctx context.Context, gen Generator, settings Settings, prompt string, render RenderFunc) (Turn, error) {
	ex, err := s.Begin(ctx, prompt, settings.Model)
	if err != nil {
		return Turn{}, err
	}

	return ex.Run(ctx, gen, settings, render), nil
}

// appendLocked adds a turn and archives it. s.mu must be held.
func (s *Session) appendLocked(ctx context.Context, turn Turn) Turn {
	if s.archive != nil {
		node := merkle.NewNode(merkle.Bucket{
			Role:    turn.Role,
			Content: turn.Content,
			Model:   turn.Model,
			Error:   turn.Error,
		}, s.head)

		// The archive write must outlive a cancelled generation
		if _, err := s.archive.Put(context.WithoutCancel(ctx), node); err != nil {
			s.logger.Warn("failed to archive turn", zap.Error(err))
		} else {
			s.head = node
			turn.Hash = node.Hash
		}
	}

	s.turns = append(s.turns, turn)
	return turn
}
