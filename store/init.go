package store

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
)

func createTable(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*requestModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func createJobIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*requestModel)(nil)).
		Index("idx_requests_job").
		Column("job_id").
		IfNotExists().
		Exec(ctx)
	return err
}

func createWorkerIndex(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateIndex().
		Model((*requestModel)(nil)).
		Index("idx_requests_worker").
		Column("worker", "finished_at").
		IfNotExists().
		Exec(ctx)
	return err
}

func initSchema(ctx context.Context, db *bun.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := createTable(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := createJobIndex(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := createWorkerIndex(ctx, tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	return tx.Commit()
}

// InitSchema creates the requests table and its indexes if they do not
// already exist, inside a single transaction.
func InitSchema(ctx context.Context, db *bun.DB) error {
	return initSchema(ctx, db)
}

// MustInitSchema behaves like InitSchema but panics on failure, for use
// in bootstrap code where a missing schema is unrecoverable.
func MustInitSchema(ctx context.Context, db *bun.DB) {
	if err := initSchema(ctx, db); err != nil {
		panic(err)
	}
}
