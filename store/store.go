package store

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/lsst/qserv-sub022/request"
)

// Store implements request.Hooks' SavePersistentState obligation using
// a bun-backed relational table. A Store is the persistence provider
// referenced by §6 as "opaque to the core"; callers elsewhere in this
// module never see bun types.
type Store struct {
	db *bun.DB
}

// New creates a Store over an already-connected, schema-initialized
// *bun.DB.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// Save upserts the terminal snapshot of a request, along with an
// opaque, caller-supplied extended-state blob (e.g. a msgpack-encoded
// replica_info for a successful REPLICA_CREATE).
func (s *Store) Save(ctx context.Context, snap request.Snapshot, blob []byte) error {
	model := fromSnapshot(snap, blob)
	_, err := s.db.NewInsert().
		Model(model).
		On("CONFLICT (id) DO UPDATE").
		Set("extended_state = EXCLUDED.extended_state").
		Set("server_status = EXCLUDED.server_status").
		Set("started_at = EXCLUDED.started_at").
		Set("finished_at = EXCLUDED.finished_at").
		Set("extended_persistent_state_blob = EXCLUDED.extended_persistent_state_blob").
		Exec(ctx)
	return err
}
