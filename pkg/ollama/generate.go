package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/ollachat/pkg/llm"
)

const (
	maxRecordSize = 1 << 20
	maxErrorBody  = 64 << 10
)

// emitFunc delivers one fragment and reports whether the consumer is still listening.
type emitFunc func(llm.Fragment) bool

// Generate issues one generation request and returns its output as an ordered,
// single-pass stream of fragments. The channel is closed when the server ends
// the stream, after a single error fragment on failure, or when ctx is
// cancelled. A cancelled stream ends without an error fragment.
//
// With req.Stream false the stream carries exactly one element: the full text
// or the error.
func (c *Client) Generate(ctx context.Context, req llm.GenerateRequest) <-chan llm.Fragment {
	ch := make(chan llm.Fragment, c.buffer)

	go func() {
		defer close(ch)

		c.generate(ctx, req, func(f llm.Fragment) bool {
			select {
			case ch <- f:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()

	return ch
}

// Collect drains a fragment stream and returns the assembled text and the
// first error fragment, if any.
func Collect(fragments <-chan llm.Fragment) (string, error) {
	var a llm.Assembler
	for f := range fragments {
		a.Add(f)
	}
	return a.Text(), a.Err()
}

func (c *Client) generate(ctx context.Context, req llm.GenerateRequest, emit emitFunc) {
	startTime := time.Now()

	body, err := json.Marshal(req)
	if err != nil {
		emit(llm.ErrorFragment(transportError("encode request", err)))
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.URL("/api/generate"), bytes.NewReader(body))
	if err != nil {
		emit(llm.ErrorFragment(transportError("create request", err)))
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.Stream {
		httpReq.Header.Set("Accept", "application/x-ndjson")
	}
	c.endpoint.Apply(httpReq)

	c.logger.Debug("sending generation request",
		zap.String("model", req.Model),
		zap.Bool("stream", req.Stream),
		zap.Int("prompt_len", len(req.Prompt)),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			c.logger.Debug("generation cancelled before response", zap.Error(ctx.Err()))
			return
		}
		c.logger.Error("generation request failed", zap.Error(err))
		emit(llm.ErrorFragment(transportError("request failed", err)))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Error("server returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(errBody), 200)),
		)
		emit(llm.ErrorFragment(statusError(resp.StatusCode, errBody)))
		return
	}

	var count int
	if req.Stream {
		count = c.readStream(ctx, resp.Body, emit)
	} else {
		count = c.readSingle(ctx, resp.Body, emit)
	}

	c.logger.Debug("generation finished",
		zap.String("model", req.Model),
		zap.Int("fragments", count),
		zap.Duration("duration", time.Since(startTime)),
	)
}

// readSingle decodes a non-streaming body into exactly one fragment.
func (c *Client) readSingle(ctx context.Context, body io.Reader, emit emitFunc) int {
	data, err := io.ReadAll(body)
	if err != nil {
		if ctx.Err() != nil {
			return 0
		}
		emit(llm.ErrorFragment(transportError("read response", err)))
		return 0
	}

	var resp llm.GenerateResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		emit(llm.ErrorFragment(decodeError("malformed response body", err)))
		return 0
	}
	if resp.Error != "" && resp.Text() == "" {
		emit(llm.ErrorFragment(reportedError(http.StatusOK, resp.Error)))
		return 0
	}
	if resp.Response == nil {
		emit(llm.ErrorFragment(decodeError("no response generated", nil)))
		return 0
	}

	emit(llm.TextFragment(*resp.Response))
	return 1
}

// readStream consumes NDJSON records, emitting the "response" text of each.
// Unparsable lines are skipped. A record carrying an error ends the stream
// with one error fragment, after any text in that record. It returns the
// number of text fragments emitted.
func (c *Client) readStream(ctx context.Context, body io.Reader, emit emitFunc) int {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxRecordSize)

	var parsed, emitted int
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var record llm.GenerateResponse
		if err := json.Unmarshal(line, &record); err != nil {
			c.logger.Debug("skipping malformed stream record",
				zap.Error(err),
				zap.String("line", truncate(string(line), 100)),
			)
			continue
		}
		parsed++

		if record.Done {
			c.logger.Debug("stream done",
				zap.String("done_reason", record.DoneReason),
				zap.Int("eval_count", record.EvalCount),
				zap.Duration("eval_duration", time.Duration(record.EvalDuration)),
			)
		}

		if text := record.Text(); text != "" {
			if !emit(llm.TextFragment(text)) {
				return emitted
			}
			emitted++
		}

		if record.Error != "" {
			c.logger.Warn("server reported error in stream",
				zap.String("error", record.Error),
				zap.Int("fragments", emitted),
			)
			emit(llm.ErrorFragment(reportedError(http.StatusOK, record.Error)))
			return emitted
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return emitted
		}
		if errors.Is(err, bufio.ErrTooLong) {
			emit(llm.ErrorFragment(decodeError("stream record too large", err)))
			return emitted
		}
		c.logger.Error("error reading stream", zap.Error(err), zap.Int("fragments", emitted))
		emit(llm.ErrorFragment(transportError("stream interrupted", err)))
		return emitted
	}

	if parsed == 0 {
		emit(llm.ErrorFragment(decodeError("stream contained no valid records", nil)))
	}

	return emitted
}
