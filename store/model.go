package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/lsst/qserv-sub022/request"
)

// requestModel is the persisted row for one request's terminal state,
// per §6: "(id, job_id, type, worker, priority, extended_state,
// server_status, started_at, finished_at, extended_persistent_state_blob)".
// The blob column is opaque to this package's callers: it holds
// whatever operation-specific payload (e.g. replica_info) the caller
// passed in, msgpack-encoded.
type requestModel struct {
	bun.BaseModel `bun:"table:requests"`

	Id       uuid.UUID `bun:"id,pk,type:uuid"`
	JobId    string    `bun:"job_id,notnull"`
	Type     string    `bun:"type,notnull"`
	Worker   string    `bun:"worker,notnull"`
	Priority int       `bun:"priority,notnull,default:0"`

	ExtendedState uint8 `bun:"extended_state,notnull"`
	ServerStatus  uint8 `bun:"server_status,notnull"`

	StartedAt  time.Time `bun:"started_at,nullzero"`
	FinishedAt time.Time `bun:"finished_at,nullzero"`

	ExtendedPersistentState []byte `bun:"extended_persistent_state_blob,type:blob"`
}

func fromSnapshot(snap request.Snapshot, blob []byte) *requestModel {
	return &requestModel{
		Id:                      snap.ID,
		JobId:                   snap.JobID,
		Type:                    snap.Type,
		Worker:                  snap.Worker,
		Priority:                snap.Priority,
		ExtendedState:           uint8(snap.Extended),
		ServerStatus:            uint8(snap.ServerStatus),
		StartedAt:               snap.Performance.StartTime,
		FinishedAt:              snap.Performance.FinishTime,
		ExtendedPersistentState: blob,
	}
}

// Record is the read-side view of a persisted request, returned by
// Observer.
type Record struct {
	ID                      uuid.UUID
	JobID                   string
	Type                    string
	Worker                  string
	Priority                int
	ExtendedState           request.ExtendedState
	ServerStatus            request.WorkerStatus
	StartedAt               time.Time
	FinishedAt              time.Time
	ExtendedPersistentState []byte
}

func (m *requestModel) toRecord() *Record {
	return &Record{
		ID:                      m.Id,
		JobID:                   m.JobId,
		Type:                    m.Type,
		Worker:                  m.Worker,
		Priority:                m.Priority,
		ExtendedState:           request.ExtendedState(m.ExtendedState),
		ServerStatus:            request.WorkerStatus(m.ServerStatus),
		StartedAt:               m.StartedAt,
		FinishedAt:              m.FinishedAt,
		ExtendedPersistentState: m.ExtendedPersistentState,
	}
}
