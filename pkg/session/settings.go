package session

import "github.com/papercomputeco/ollachat/pkg/llm"

const (
	// DefaultSystemPrompt is sent when no other system prompt is configured.
	DefaultSystemPrompt = "You are a helpful AI assistant."

	// DefaultTemperature is the starting temperature of a conversation.
	DefaultTemperature = 0.5
)

// Settings are the per-conversation generation parameters chosen in the UI.
type Settings struct {
	Model       string
	System      string
	Temperature float64
	Stream      bool
	Options     llm.Options
}

// DefaultSettings returns streaming settings for model with the default
// system prompt and temperature.
func DefaultSettings(model string) Settings {
	return Settings{
		Model:       model,
		System:      DefaultSystemPrompt,
		Temperature: DefaultTemperature,
		Stream:      true,
	}
}

// Request builds the upstream request for prompt. History is not included.
func (s Settings) Request(prompt string) llm.GenerateRequest {
	return llm.GenerateRequest{
		Model:       s.Model,
		Prompt:      prompt,
		Stream:      s.Stream,
		Temperature: s.Temperature,
		System:      s.System,
		Options:     s.Options.Clone(),
	}
}
