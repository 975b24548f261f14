package registry

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"github.com/lsst/qserv-sub022/messenger"
	"github.com/lsst/qserv-sub022/wire"
)

// QueryOp names one of the three control-plane operations the
// query-management fan-out can dispatch.
type QueryOp string

const (
	CancelAfterRestart QueryOp = "CANCEL_AFTER_RESTART"
	CancelOp           QueryOp = "CANCEL"
	CompleteOp         QueryOp = "COMPLETE"
)

func validQueryOp(op QueryOp) bool {
	switch op {
	case CancelAfterRestart, CancelOp, CompleteOp:
		return true
	default:
		return false
	}
}

// QueryManagement is the message fanned out to every registered
// worker for a POST /query request.
type QueryManagement struct {
	Op      QueryOp `msgpack:"op"`
	QueryID int64   `msgpack:"query_id"`
	CzarID  string  `msgpack:"czar_id"`
}

// QueryFanout dispatches QueryManagement messages to every worker
// known to a registry.State, through a messenger.Pool, and aggregates
// their responses.
type QueryFanout struct {
	state   *State
	pool    *messenger.Pool
	codec   wire.Codec
	timeout time.Duration
}

// NewQueryFanout builds a QueryFanout. timeout bounds how long the
// fan-out waits for every worker to respond before reporting the
// stragglers as errors.
func NewQueryFanout(state *State, pool *messenger.Pool, codec wire.Codec, timeout time.Duration) *QueryFanout {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &QueryFanout{state: state, pool: pool, codec: codec, timeout: timeout}
}

// Dispatch sends msg to every registered worker and returns a
// worker name -> error-string map; an empty string means success.
func (f *QueryFanout) Dispatch(ctx context.Context, msg QueryManagement) map[string]string {
	workers := f.state.WorkerNames()
	results := make(map[string]string, len(workers))
	if len(workers) == 0 {
		return results
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(len(workers))

	buf := wire.NewBuffer(0, 0, 0, f.codec)
	if err := buf.Serialize(&msg); err != nil {
		for _, w := range workers {
			results[w] = err.Error()
		}
		return results
	}
	outbound := append([]byte(nil), buf.Bytes()...)

	for _, worker := range workers {
		worker := worker
		env := messenger.NewEnvelope(uuid.NewString(), 0, outbound, func(env *messenger.Envelope, sendErr error) {
			mu.Lock()
			if sendErr != nil {
				results[worker] = sendErr.Error()
			} else {
				results[worker] = ""
			}
			mu.Unlock()
			wg.Done()
		})
		f.pool.Send(worker, env)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(f.timeout):
		mu.Lock()
		for _, w := range workers {
			if _, ok := results[w]; !ok {
				results[w] = "timed out waiting for worker response"
			}
		}
		mu.Unlock()
	case <-ctx.Done():
		mu.Lock()
		for _, w := range workers {
			if _, ok := results[w]; !ok {
				results[w] = ctx.Err().Error()
			}
		}
		mu.Unlock()
	}
	return results
}

func (s *Service) handleQuery(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.fanout == nil {
		writeErr(w, http.StatusServiceUnavailable, "query management fan-out is not configured")
		return
	}
	body, err := decodeBody(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.authorize(r, body); err != nil {
		writeErr(w, http.StatusUnauthorized, err.Error())
		return
	}

	opRaw, _ := body["op"].(string)
	op := QueryOp(opRaw)
	if !validQueryOp(op) {
		writeErr(w, http.StatusBadRequest, fmt.Sprintf("unrecognized op %q", opRaw))
		return
	}
	queryIDFloat, _ := body["query_id"].(float64)
	czarID, _ := body["czar_id"].(string)

	results := s.fanout.Dispatch(r.Context(), QueryManagement{
		Op:      op,
		QueryID: int64(queryIDFloat),
		CzarID:  czarID,
	})
	writeOK(w, map[string]any{"workers": results})
}
