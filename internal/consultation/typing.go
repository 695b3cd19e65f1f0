package consultation

import "context"

// TypingStore tracks who is typing in a consultation. Entries go stale
// after a few seconds; expiry is evaluated lazily by every reader, so
// implementations never need a background sweep.
type TypingStore interface {
	SetTyping(ctx context.Context, consultationID, userID string) error
	ClearTyping(ctx context.Context, consultationID, userID string) error
	ActiveTypers(ctx context.Context, consultationID string) ([]string, error)
}
