package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lsst/qserv-sub022/request"
	"github.com/lsst/qserv-sub022/store"
)

func TestSaveAndGet(t *testing.T) {
	db := newTestDB(t)
	s := store.New(db)
	observer := store.NewObserver(db)
	ctx := context.Background()

	id := uuid.New()
	snap := request.Snapshot{
		Type:         "REPLICA_CREATE",
		ID:           id,
		Worker:       "worker-1",
		Priority:     2,
		JobID:        "job-1",
		State:        request.Finished,
		Extended:     request.Success,
		ServerStatus: request.WorkerSuccess,
		Performance: request.Performance{
			StartTime:  time.Now().Add(-time.Second),
			FinishTime: time.Now(),
		},
	}
	if err := s.Save(ctx, snap, []byte(`{"chunk":12}`)); err != nil {
		t.Fatal(err)
	}

	rec, err := observer.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil {
		t.Fatal("expected record, got nil")
	}
	if rec.ExtendedState != request.Success || rec.Worker != "worker-1" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	missing, err := observer.Get(ctx, uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Fatal("expected nil for unknown id")
	}
}

func TestListByJob(t *testing.T) {
	db := newTestDB(t)
	s := store.New(db)
	observer := store.NewObserver(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		snap := request.Snapshot{
			Type:     "REPLICA_CREATE",
			ID:       uuid.New(),
			Worker:   "worker-1",
			JobID:    "job-shared",
			Extended: request.Success,
			Performance: request.Performance{
				FinishTime: time.Now(),
			},
		}
		if err := s.Save(ctx, snap, nil); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := observer.ListByJob(ctx, "job-shared")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
}
