package request

import (
	"time"

	"github.com/google/uuid"
)

// Performance holds the timestamps a Request accumulates over its
// lifetime; it is what the worker-reported "performance counters" of
// the spec reduce to once control returns to the controller.
type Performance struct {
	CreateTime time.Time
	StartTime  time.Time
	FinishTime time.Time
}

// Snapshot is an immutable, point-in-time view of a Request's state,
// suitable for passing to a completion callback or for persistence by
// the store package. Mutating a Snapshot has no effect on the Request
// it was taken from.
type Snapshot struct {
	Type          string
	ID            uuid.UUID
	Worker        string
	Priority      int
	JobID         string
	State         State
	Extended      ExtendedState
	ServerStatus  WorkerStatus
	Performance   Performance
	DuplicateOf   uuid.UUID
	HasDuplicateOf bool
}
