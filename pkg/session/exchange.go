package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/papercomputeco/ollachat/pkg/llm"
)

// ErrCancelled is recorded on a turn whose generation was abandoned.
var ErrCancelled = errors.New("generation cancelled")

// Exchange collects the fragments of one reply. It is owned by the goroutine
// reading the fragment stream.
type Exchange struct {
	session *Session
	prompt  string
	model   string
	epoch   int

	buffer    llm.Assembler
	cancelled error
	committed bool
	turn      Turn
}

// Run requests the reply to the exchange's prompt from gen, consumes the
// fragment stream in order, calls render after every fragment and commits.
// The exchange counts as cancelled only when ctx ends while the stream is
// still open; a reply that already arrived in full is committed as is.
func (e *Exchange) Run(ctx context.Context, gen Generator, settings Settings, render RenderFunc) Turn {
	settings.Model = e.model

	if err := ctx.Err(); err != nil {
		e.Cancel(err)
		return e.Commit(ctx)
	}

	genCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	defer stop()

	stream := newRelay(gen.Generate(genCtx, settings.Request(e.prompt)))

	stopWatch := context.AfterFunc(ctx, func() {
		if stream.interrupt() {
			stop()
		}
	})
	defer stopWatch()

	for {
		f, ok := stream.next()
		if !ok {
			break
		}
		partial := e.Add(f)
		if render != nil {
			render(partial)
		}
	}

	if stream.interrupted() {
		e.Cancel(ctx.Err())
	}

	return e.Commit(ctx)
}

// Prompt returns the user prompt the exchange answers.
func (e *Exchange) Prompt() string {
	return e.prompt
}

// Add appends a fragment and returns the text assembled so far.
func (e *Exchange) Add(f llm.Fragment) string {
	return e.buffer.Add(f)
}

// Partial returns the text assembled so far.
func (e *Exchange) Partial() string {
	return e.buffer.Text()
}

// Err returns the first error fragment received, or the cancellation cause.
func (e *Exchange) Err() error {
	if err := e.buffer.Err(); err != nil {
		return err
	}
	return e.cancelled
}

// Cancel marks the exchange as abandoned. The partial text is kept.
func (e *Exchange) Cancel(cause error) {
	if e.cancelled != nil {
		return
	}
	if cause == nil || errors.Is(cause, context.Canceled) {
		cause = ErrCancelled
	}
	e.cancelled = cause
}

// Commit closes the exchange and appends exactly one assistant turn holding
// the assembled text. A failed exchange with no text gets the error message
// as its content. Calling Commit again returns the same turn.
func (e *Exchange) Commit(ctx context.Context) Turn {
	if e.committed {
		return e.turn
	}
	e.committed = true

	turn := Turn{
		Role:    llm.RoleAssistant,
		Content: e.buffer.Text(),
		Model:   e.model,
	}
	if err := e.Err(); err != nil {
		turn.Error = err.Error()
		if turn.Content == "" {
			turn.Content = turn.Error
		}
	}

	s := e.session
	s.mu.Lock()
	defer s.mu.Unlock()

	turn.CreatedAt = s.now()

	if s.open == e {
		s.open = nil
	}
	if s.epoch != e.epoch {
		s.logger.Debug("dropping reply to a cleared conversation", zap.Int("fragments", e.buffer.Count()))
		e.turn = turn
		return turn
	}

	e.turn = s.appendLocked(ctx, turn)

	if turn.Error != "" {
		s.logger.Warn("generation failed", zap.String("model", e.model), zap.String("error", turn.Error))
	} else {
		s.logger.Debug("reply committed",
			zap.String("model", e.model),
			zap.Int("fragments", e.buffer.Count()),
			zap.Int("length", len(turn.Content)),
		)
	}

	return e.turn
}

// relay drains a fragment stream as fast as it is produced so the moment the
// producer closes it is known independently of how fast fragments are
// rendered.
type relay struct {
	mu     sync.Mutex
	items  []llm.Fragment
	ended  bool
	cut    bool
	wakeup chan struct{}
}

func newRelay(src <-chan llm.Fragment) *relay {
	r := &relay{wakeup: make(chan struct{}, 1)}
	go r.pump(src)
	return r
}

func (r *relay) pump(src <-chan llm.Fragment) {
	for f := range src {
		batch := []llm.Fragment{f}
		closed := false

		// Take whatever else is ready so the last fragment and the close are
		// published together.
	more:
		for {
			select {
			case next, ok := <-src:
				if !ok {
					closed = true
					break more
				}
				batch = append(batch, next)
			default:
				break more
			}
		}

		r.mu.Lock()
		r.items = append(r.items, batch...)
		r.ended = closed
		r.mu.Unlock()
		r.signal()

		if closed {
			return
		}
	}

	r.mu.Lock()
	r.ended = true
	r.mu.Unlock()
	r.signal()
}

func (r *relay) signal() {
	select {
	case r.wakeup <- struct{}{}:
	default:
	}
}

// next blocks for the next fragment. ok is false once the stream has ended
// and every fragment was taken.
func (r *relay) next() (llm.Fragment, bool) {
	for {
		r.mu.Lock()
		if len(r.items) > 0 {
			f := r.items[0]
			r.items[0] = llm.Fragment{}
			r.items = r.items[1:]
			r.mu.Unlock()
			return f, true
		}
		ended := r.ended
		r.mu.Unlock()

		if ended {
			return llm.Fragment{}, false
		}
		<-r.wakeup
	}
}

// interrupt marks the stream as cut short. It reports false when the
// producer had already closed it.
func (r *relay) interrupt() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return false
	}
	r.cut = true
	return true
}

func (r *relay) interrupted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cut
}
