package ollama_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ollachat/pkg/llm"
)

// capturedRequest is what a fixture server saw.
type capturedRequest struct {
	Method   string
	Path     string
	Body     map[string]any
	Username string
	Password string
	HasAuth  bool
}

// fixture is an httptest server that records the last request.
type fixture struct {
	*httptest.Server

	mu   sync.Mutex
	last *capturedRequest
	hits int
}

func newFixture(handler func(w http.ResponseWriter, r *http.Request)) *fixture {
	f := &fixture{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured := &capturedRequest{Method: r.Method, Path: r.URL.Path}
		captured.Username, captured.Password, captured.HasAuth = r.BasicAuth()

		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			_ = json.Unmarshal(data, &captured.Body)
		}

		f.mu.Lock()
		f.last = captured
		f.hits++
		f.mu.Unlock()

		handler(w, r)
	}))
	return f
}

// ndjsonFixture replies 200 with the given lines, flushing after each one.
func ndjsonFixture(lines ...string) *fixture {
	return newFixture(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
		for _, line := range lines {
			_, _ = io.WriteString(w, line+"\n")
			w.(http.Flusher).Flush()
		}
	})
}

// statusFixture replies with a fixed status and body.
func statusFixture(status int, body string) *fixture {
	return newFixture(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

func (f *fixture) Last() *capturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *fixture) Hits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits
}

// drain reads the whole stream, failing if it doesn't close in time.
func drain(ch <-chan llm.Fragment) []llm.Fragment {
	var out []llm.Fragment
	timeout := time.After(5 * time.Second)
	for {
		select {
		case f, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, f)
		case <-timeout:
			Expect("stream").To(Equal("closed"), "fragment stream was not closed")
			return out
		}
	}
}

func texts(fragments []llm.Fragment) []string {
	out := make([]string, 0, len(fragments))
	for _, f := range fragments {
		Expect(f.IsError()).To(BeFalse(), "unexpected error fragment: %v", f.Err)
		out = append(out, f.Text)
	}
	return out
}
