package llm

// GenerateRequest represents a single-turn generation request (Ollama /api/generate).
// Only the latest prompt and system prompt travel upstream; conversation history
// stays with the caller.
type GenerateRequest struct {
	Model       string  `json:"model"`            // Model name, used verbatim (e.g. "gemma3:latest")
	Prompt      string  `json:"prompt"`           // Latest user prompt
	Stream      bool    `json:"stream"`           // Stream NDJSON records instead of one body
	Temperature float64 `json:"temperature"`      // Not clamped client-side
	System      string  `json:"system,omitempty"` // Optional system prompt

	// Decoding hints, passed through verbatim
	Options Options `json:"options,omitempty"`
}
