package domain

import "context"

// Generator is the generative language model contract.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (GenerationResult, error)
}

// Message is one conversational message inside a prompt.
type Message struct {
	Role Role
	Text string
}

// Prompt is the fully assembled input for one generation call: a system
// instruction (including any retrieved context) followed by the chronological
// conversation ending with the new question.
type Prompt struct {
	System   string
	Messages []Message
}

// GenerationResult carries the generated text and token usage.
type GenerationResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
