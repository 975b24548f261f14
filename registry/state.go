package registry

import (
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Variant distinguishes the two documents a worker entry carries.
type Variant string

const (
	Replication Variant = "replication"
	Qserv       Variant = "qserv"
)

// strippedKeys are removed from any incoming JSON body before it is
// merged into an entry, per §4.6.
var strippedKeys = [...]string{"authKey", "adminAuthKey", "instance_id", "name"}

func sanitize(body map[string]any) map[string]any {
	out := make(map[string]any, len(body))
outer:
	for k, v := range body {
		for _, s := range strippedKeys {
			if k == s {
				continue outer
			}
		}
		out[k] = v
	}
	return out
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}

func clone(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	mergeInto(out, m)
	return out
}

// workerEntry holds a worker's two independently-merged documents.
type workerEntry struct {
	mu           sync.Mutex
	replication  map[string]any
	qserv        map[string]any
}

func newWorkerEntry() *workerEntry {
	return &workerEntry{replication: map[string]any{}, qserv: map[string]any{}}
}

func (e *workerEntry) merge(variant Variant, body map[string]any, remoteIP string) map[string]any {
	sanitized := sanitize(body)
	sanitized["ip"] = remoteIP
	sanitized["registered_at"] = time.Now().UnixMilli()

	e.mu.Lock()
	defer e.mu.Unlock()
	target := e.replication
	if variant == Qserv {
		target = e.qserv
	}
	mergeInto(target, sanitized)
	return clone(target)
}

func (e *workerEntry) snapshot() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return map[string]any{
		"replication": clone(e.replication),
		"qserv":       clone(e.qserv),
	}
}

// peerEntry holds a czar's or controller's single merged document.
type peerEntry struct {
	mu   sync.Mutex
	body map[string]any
}

func newPeerEntry() *peerEntry {
	return &peerEntry{body: map[string]any{}}
}

func (e *peerEntry) merge(body map[string]any, remoteIP string) map[string]any {
	sanitized := sanitize(body)
	sanitized["ip"] = remoteIP
	sanitized["registered_at"] = time.Now().UnixMilli()

	e.mu.Lock()
	defer e.mu.Unlock()
	mergeInto(e.body, sanitized)
	return clone(e.body)
}

func (e *peerEntry) snapshot() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return clone(e.body)
}

// State is the registry's in-memory view of the cluster. Heartbeats
// are never auto-evicted; it is up to a downstream consumer to decide
// staleness policy from the registered_at timestamp, which every merge
// refreshes.
type State struct {
	workers     *xsync.MapOf[string, *workerEntry]
	czars       *xsync.MapOf[string, *peerEntry]
	controllers *xsync.MapOf[string, *peerEntry]
}

// NewState returns an empty State.
func NewState() *State {
	return &State{
		workers:     xsync.NewMapOf[string, *workerEntry](),
		czars:       xsync.NewMapOf[string, *peerEntry](),
		controllers: xsync.NewMapOf[string, *peerEntry](),
	}
}

// UpsertWorker merges body into worker name's variant document and
// returns the resulting merged document.
func (s *State) UpsertWorker(name string, variant Variant, body map[string]any, remoteIP string) map[string]any {
	entry, _ := s.workers.LoadOrCompute(name, newWorkerEntry)
	return entry.merge(variant, body, remoteIP)
}

// RemoveWorker deletes a worker entry entirely, reporting whether it
// existed.
func (s *State) RemoveWorker(name string) bool {
	_, existed := s.workers.LoadAndDelete(name)
	return existed
}

func (s *State) upsertPeer(m *xsync.MapOf[string, *peerEntry], name string, body map[string]any, remoteIP string) map[string]any {
	entry, _ := m.LoadOrCompute(name, newPeerEntry)
	return entry.merge(body, remoteIP)
}

// UpsertCzar merges body into czar name's document.
func (s *State) UpsertCzar(name string, body map[string]any, remoteIP string) map[string]any {
	return s.upsertPeer(s.czars, name, body, remoteIP)
}

// RemoveCzar deletes a czar entry, reporting whether it existed.
func (s *State) RemoveCzar(name string) bool {
	_, existed := s.czars.LoadAndDelete(name)
	return existed
}

// UpsertController merges body into controller name's document.
func (s *State) UpsertController(name string, body map[string]any, remoteIP string) map[string]any {
	return s.upsertPeer(s.controllers, name, body, remoteIP)
}

// RemoveController deletes a controller entry, reporting whether it
// existed.
func (s *State) RemoveController(name string) bool {
	_, existed := s.controllers.LoadAndDelete(name)
	return existed
}

// Snapshot returns the full registry contents, shaped for the
// GET /services response.
func (s *State) Snapshot() map[string]any {
	workers := make(map[string]any)
	s.workers.Range(func(name string, e *workerEntry) bool {
		workers[name] = e.snapshot()
		return true
	})
	czars := make(map[string]any)
	s.czars.Range(func(name string, e *peerEntry) bool {
		czars[name] = e.snapshot()
		return true
	})
	controllers := make(map[string]any)
	s.controllers.Range(func(name string, e *peerEntry) bool {
		controllers[name] = e.snapshot()
		return true
	})
	return map[string]any{
		"workers":     workers,
		"czars":       czars,
		"controllers": controllers,
	}
}

// WorkerNames returns the names of every registered worker, used by
// the query-management fan-out.
func (s *State) WorkerNames() []string {
	var names []string
	s.workers.Range(func(name string, _ *workerEntry) bool {
		names = append(names, name)
		return true
	})
	return names
}
