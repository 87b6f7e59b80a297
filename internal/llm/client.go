package llm

import "context"

type Message struct {
	Role    string
	Content string
}

type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Client is the model-call collaborator: given a prompt, return free-form
// text. Implementations must be safe for concurrent use; each call is bounded
// by the caller's context.
type Client interface {
	Generate(ctx context.Context, messages []Message) (Response, error)
}

// Transcriber converts an audio file into text. Providers without audio
// support simply do not implement it; callers check with a type assertion
// before routing audio input.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}
