package providers

import "context"

// Role values for chat turns sent upstream.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in the conversation sent to an upstream service.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is the single completion text returned by an upstream service.
type Response struct {
	Content string
	Model   string
}

// ChatProvider generates one text reply from the accumulated turns.
//
// Implementations surface any upstream failure (non-success status,
// malformed body, transport error) as an errdefs.TransportError or
// errdefs.ParseError and never retry on their own; the caller decides
// whether to resend. Options keys: "temperature" (float64),
// "max_tokens" (int).
type ChatProvider interface {
	Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*Response, error)
	GetDefaultModel() string
}
