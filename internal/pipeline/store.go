package pipeline

import "context"

// SeenStore tracks which alert identities have already been processed,
// so a re-read of the alert file does not enrich the same record twice.
type SeenStore interface {
	Seen(ctx context.Context, identity string) (bool, error)
	MarkSeen(ctx context.Context, identity string) error
}
