// internal/domain/notification/repository.go
package notification

import "context"

// Repository defines the record store operations consumed by the dispatcher.
type Repository interface {
	// ListPending returns every record whose email has not been sent yet.
	// No ordering is guaranteed.
	ListPending(ctx context.Context) ([]*Record, error)
	// MarkSent flags a record as emailed. Marking an already-sent record is a no-op.
	MarkSent(ctx context.Context, id int64) error
	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}
