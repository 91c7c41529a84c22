package llm

import (
	"context"
	"time"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Result struct {
	Text     string
	Usage    Usage
	Duration time.Duration
}

type Request struct {
	Model       string
	Messages    []Message
	ForceJSON   bool
	MaxTokens   int
	Temperature float64
}

// Client is the language-model port consumed by the remote extractor.
// Implementations must tolerate empty or garbled model output; callers treat
// any error exactly as "the model returned nothing".
type Client interface {
	Chat(ctx context.Context, req Request) (Result, error)
}
