package registry

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, extra map[string]any) {
	body := map[string]any{"success": 1}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": 0, "error": msg})
}

// ServiceConfig carries the registry's authentication and identity
// parameters, plus the version string reported at GET /meta/version.
type ServiceConfig struct {
	AuthKey    string
	InstanceID string
	Version    string
	Log        *slog.Logger
}

// Service wires registry.State into an httprouter route table
// implementing the §4.6 endpoints.
type Service struct {
	state  *State
	cfg    ServiceConfig
	router *httprouter.Router
	fanout *QueryFanout
}

// NewService builds a Service backed by state. fanout may be nil, in
// which case POST /query reports itself unavailable.
func NewService(state *State, cfg ServiceConfig, fanout *QueryFanout) *Service {
	s := &Service{state: state, cfg: cfg, router: httprouter.New(), fanout: fanout}
	s.router.GET("/services", s.handleListServices)
	s.router.POST("/worker", s.handleUpsertWorker(Replication))
	s.router.POST("/qserv-worker", s.handleUpsertWorker(Qserv))
	s.router.DELETE("/worker/:name", s.handleRemoveWorker)
	s.router.POST("/czar", s.handleUpsertCzar)
	s.router.DELETE("/czar/:name", s.handleRemoveCzar)
	s.router.POST("/controller", s.handleUpsertController)
	s.router.DELETE("/controller/:name", s.handleRemoveController)
	s.router.GET("/meta/version", s.handleVersion)
	s.router.POST("/query", s.handleQuery)
	return s
}

// ServeHTTP makes Service an http.Handler.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// authorize checks the shared token and instance-id on mutating
// requests. GET /services is exempt.
func (s *Service) authorize(r *http.Request, body map[string]any) error {
	if s.cfg.AuthKey != "" {
		key, _ := body["authKey"].(string)
		if key == "" {
			key, _ = body["adminAuthKey"].(string)
		}
		if key != s.cfg.AuthKey {
			return errUnauthorized
		}
	}
	if s.cfg.InstanceID != "" {
		instance, _ := body["instance_id"].(string)
		if instance != s.cfg.InstanceID {
			return errInstanceMismatch
		}
	}
	return nil
}

func decodeBody(r *http.Request) (map[string]any, error) {
	var body map[string]any
	if r.Body == nil {
		return map[string]any{}, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, err
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, nil
}

func (s *Service) handleListServices(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeOK(w, map[string]any{"services": s.state.Snapshot()})
}

func (s *Service) handleUpsertWorker(variant Variant) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		body, err := decodeBody(r)
		if err != nil {
			writeErr(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.authorize(r, body); err != nil {
			writeErr(w, http.StatusUnauthorized, err.Error())
			return
		}
		worker, _ := body["worker"].(map[string]any)
		name, _ := worker["name"].(string)
		if name == "" {
			writeErr(w, http.StatusBadRequest, "missing worker.name")
			return
		}
		var sub map[string]any
		if variant == Qserv {
			sub, _ = worker["qserv"].(map[string]any)
		} else {
			sub, _ = worker["replication"].(map[string]any)
		}
		merged := s.state.UpsertWorker(name, variant, sub, remoteHost(r))
		writeOK(w, map[string]any{"worker": merged})
	}
}

func (s *Service) handleRemoveWorker(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	body, _ := decodeBody(r)
	if err := s.authorize(r, body); err != nil {
		writeErr(w, http.StatusUnauthorized, err.Error())
		return
	}
	if !s.state.RemoveWorker(ps.ByName("name")) {
		writeErr(w, http.StatusNotFound, "worker not found")
		return
	}
	writeOK(w, nil)
}

func (s *Service) handleUpsertCzar(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := decodeBody(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.authorize(r, body); err != nil {
		writeErr(w, http.StatusUnauthorized, err.Error())
		return
	}
	czar, _ := body["czar"].(map[string]any)
	name, _ := czar["name"].(string)
	if name == "" {
		writeErr(w, http.StatusBadRequest, "missing czar.name")
		return
	}
	merged := s.state.UpsertCzar(name, czar, remoteHost(r))
	writeOK(w, map[string]any{"czar": merged})
}

func (s *Service) handleRemoveCzar(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	body, _ := decodeBody(r)
	if err := s.authorize(r, body); err != nil {
		writeErr(w, http.StatusUnauthorized, err.Error())
		return
	}
	if !s.state.RemoveCzar(ps.ByName("name")) {
		writeErr(w, http.StatusNotFound, "czar not found")
		return
	}
	writeOK(w, nil)
}

func (s *Service) handleUpsertController(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := decodeBody(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.authorize(r, body); err != nil {
		writeErr(w, http.StatusUnauthorized, err.Error())
		return
	}
	controller, _ := body["controller"].(map[string]any)
	name, _ := controller["name"].(string)
	if name == "" {
		writeErr(w, http.StatusBadRequest, "missing controller.name")
		return
	}
	merged := s.state.UpsertController(name, controller, remoteHost(r))
	writeOK(w, map[string]any{"controller": merged})
}

func (s *Service) handleRemoveController(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	body, _ := decodeBody(r)
	if err := s.authorize(r, body); err != nil {
		writeErr(w, http.StatusUnauthorized, err.Error())
		return
	}
	if !s.state.RemoveController(ps.ByName("name")) {
		writeErr(w, http.StatusNotFound, "controller not found")
		return
	}
	writeOK(w, nil)
}

func (s *Service) handleVersion(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeOK(w, map[string]any{"version": s.cfg.Version})
}

var (
	errUnauthorized     = authError("invalid or missing authorization token")
	errInstanceMismatch = authError("instance_id does not match this registry")
)

type authError string

func (e authError) Error() string { return string(e) }
