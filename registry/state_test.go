package registry_test

import (
	"testing"

	"github.com/lsst/qserv-sub022/registry"
)

func TestUpsertWorkerMergesVariantsIndependently(t *testing.T) {
	s := registry.NewState()
	s.UpsertWorker("w1", registry.Replication, map[string]any{"port": 25000.0}, "10.0.0.1")
	s.UpsertWorker("w1", registry.Qserv, map[string]any{"port": 25004.0}, "10.0.0.1")

	snap := s.Snapshot()
	workers := snap["workers"].(map[string]any)
	w1 := workers["w1"].(map[string]any)
	repl := w1["replication"].(map[string]any)
	qserv := w1["qserv"].(map[string]any)

	if repl["port"] != 25000.0 {
		t.Fatalf("expected replication.port=25000, got %v", repl["port"])
	}
	if qserv["port"] != 25004.0 {
		t.Fatalf("expected qserv.port=25004, got %v", qserv["port"])
	}
}

func TestUpsertWorkerStripsSecurityKeysAndStampsIP(t *testing.T) {
	s := registry.NewState()
	merged := s.UpsertWorker("w1", registry.Replication, map[string]any{
		"port":         25000.0,
		"authKey":      "secret",
		"adminAuthKey": "admin-secret",
		"instance_id":  "inst-1",
		"name":         "w1",
	}, "10.0.0.2")

	if _, ok := merged["authKey"]; ok {
		t.Fatal("expected authKey to be stripped")
	}
	if _, ok := merged["adminAuthKey"]; ok {
		t.Fatal("expected adminAuthKey to be stripped")
	}
	if _, ok := merged["instance_id"]; ok {
		t.Fatal("expected instance_id to be stripped")
	}
	if merged["ip"] != "10.0.0.2" {
		t.Fatalf("expected ip stamped, got %v", merged["ip"])
	}
	if _, ok := merged["registered_at"]; !ok {
		t.Fatal("expected registered_at to be stamped")
	}
}

func TestUpsertWorkerPreservesUntouchedFields(t *testing.T) {
	s := registry.NewState()
	s.UpsertWorker("w1", registry.Replication, map[string]any{"port": 25000.0, "host": "h1"}, "10.0.0.1")
	merged := s.UpsertWorker("w1", registry.Replication, map[string]any{"port": 25001.0}, "10.0.0.1")

	if merged["port"] != 25001.0 {
		t.Fatalf("expected port updated to 25001, got %v", merged["port"])
	}
	if merged["host"] != "h1" {
		t.Fatalf("expected host to be preserved, got %v", merged["host"])
	}
}

func TestRemoveWorkerReportsExistence(t *testing.T) {
	s := registry.NewState()
	if s.RemoveWorker("ghost") {
		t.Fatal("expected false for a worker that was never registered")
	}
	s.UpsertWorker("w1", registry.Replication, map[string]any{}, "10.0.0.1")
	if !s.RemoveWorker("w1") {
		t.Fatal("expected true removing a registered worker")
	}
	if s.RemoveWorker("w1") {
		t.Fatal("expected false removing an already-removed worker")
	}
}

func TestWorkerNamesReflectsRegisteredSet(t *testing.T) {
	s := registry.NewState()
	s.UpsertWorker("w1", registry.Replication, map[string]any{}, "10.0.0.1")
	s.UpsertWorker("w2", registry.Qserv, map[string]any{}, "10.0.0.2")

	names := s.WorkerNames()
	if len(names) != 2 {
		t.Fatalf("expected 2 worker names, got %v", names)
	}
}
