package queue_test

import (
	"testing"

	"github.com/lsst/qserv-sub022/queue"
)

type entry struct {
	id string
}

func (e entry) ID() string { return e.id }

func TestPriorityOrdering(t *testing.T) {
	q := queue.New[entry]()
	q.PushBack(1, entry{"low-1"})
	q.PushBack(5, entry{"high-1"})
	q.PushBack(1, entry{"low-2"})
	q.PushBack(5, entry{"high-2"})

	want := []string{"high-1", "high-2", "low-1", "low-2"}
	for _, w := range want {
		got, ok := q.Front()
		if !ok {
			t.Fatalf("expected %s, queue empty", w)
		}
		if got.ID() != w {
			t.Fatalf("expected %s, got %s", w, got.ID())
		}
	}
	if !q.Empty() {
		t.Fatal("expected queue to be empty")
	}
}

func TestFindAndRemove(t *testing.T) {
	q := queue.New[entry]()
	q.PushBack(1, entry{"a"})
	q.PushBack(2, entry{"b"})
	q.PushBack(1, entry{"c"})

	if _, ok := q.Find("b"); !ok {
		t.Fatal("expected to find b")
	}
	if !q.Remove("b") {
		t.Fatal("expected to remove b")
	}
	if _, ok := q.Find("b"); ok {
		t.Fatal("expected b to be gone")
	}
	if q.Size() != 2 {
		t.Fatalf("expected size 2, got %d", q.Size())
	}

	got, ok := q.Front()
	if !ok || got.ID() != "a" {
		t.Fatalf("expected a, got %v ok=%v", got, ok)
	}
}

func TestPushFrontPriority(t *testing.T) {
	q := queue.New[entry]()
	q.PushBack(1, entry{"first"})
	q.PushFront(1, entry{"retry"})

	got, _ := q.Front()
	if got.ID() != "retry" {
		t.Fatalf("expected retry to jump the lane, got %s", got.ID())
	}
}
