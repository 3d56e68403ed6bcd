package ports

import "context"

// SnapshotPublisher fans encoded simulation snapshots out to observers.
// Implementations must not block the simulation loop for long.
type SnapshotPublisher interface {
	Publish(ctx context.Context, payload []byte) error
}
