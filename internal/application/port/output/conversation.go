package output

import "context"

// ConversationPort adds a user turn to the active session and asks for a response.
type ConversationPort interface {
	SendUserTurn(ctx context.Context, text, instructions string) error
}
