package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Observer provides read-only access to persisted request records. It
// does not participate in the request lifecycle and must not be used
// to drive state transitions; it exists for diagnostics and
// administrative tooling, mirroring the read/write split the teacher
// draws between Puller and Observer.
type Observer struct {
	db *bun.DB
}

// NewObserver creates an Observer over the same *bun.DB a Store uses.
func NewObserver(db *bun.DB) *Observer {
	return &Observer{db: db}
}

// Get retrieves the persisted record for id, or (nil, nil) if no
// request with that id has finished yet.
func (o *Observer) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	var m requestModel
	err := o.db.NewSelect().
		Model(&m).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m.toRecord(), nil
}

// ListByJob returns every persisted record belonging to jobID, most
// recently finished first.
func (o *Observer) ListByJob(ctx context.Context, jobID string) ([]*Record, error) {
	var models []*requestModel
	if err := o.db.NewSelect().
		Model(&models).
		Where("job_id = ?", jobID).
		Order("finished_at DESC").
		Scan(ctx); err != nil {
		return nil, err
	}
	ret := make([]*Record, len(models))
	for i, m := range models {
		ret[i] = m.toRecord()
	}
	return ret, nil
}
