package event

import "context"

// Repository remembers gateway event ids that were already applied.
// Record returns domain.ErrAlreadyExists for an id seen before.
type Repository interface {
	Record(ctx context.Context, eventID, kind string) error
}
