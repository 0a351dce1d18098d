package llm

import "time"

// GenerateResponse is the body of a non-streaming reply and also the shape of
// each NDJSON record of a streaming reply.
type GenerateResponse struct {
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`

	// Response holds the full text (non-streaming) or one incremental fragment
	// (streaming). Nil when the record carries no text.
	Response *string `json:"response,omitempty"`

	Done       bool   `json:"done,omitempty"`
	DoneReason string `json:"done_reason,omitempty"`

	// Error is set by some servers on records describing a failure
	Error string `json:"error,omitempty"`

	// Metrics (only present when done=true)
	TotalDuration      int64 `json:"total_duration,omitempty"`       // Total time in nanoseconds
	LoadDuration       int64 `json:"load_duration,omitempty"`        // Model load time
	PromptEvalCount    int   `json:"prompt_eval_count,omitempty"`    // Tokens in prompt
	PromptEvalDuration int64 `json:"prompt_eval_duration,omitempty"` // Prompt processing time
	EvalCount          int   `json:"eval_count,omitempty"`           // Generated tokens
	EvalDuration       int64 `json:"eval_duration,omitempty"`        // Generation time
}

// Text returns the response text, or "" when the record has none.
func (r *GenerateResponse) Text() string {
	if r.Response == nil {
		return ""
	}
	return *r.Response
}
