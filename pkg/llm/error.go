// Package llm provides the wire and domain types shared by the generation
// client, the conversation session and the HTTP gateway.
package llm

// ErrorResponse represents an error body from the inference server or the gateway.
type ErrorResponse struct {
	Error string `json:"error"`
}
