// Package api implements the daemon's HTTP surface: pull, list, get,
// delete, import, and alias operations over the model catalog, each
// returning the {result, modelHandle?, message} envelope.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumenhq/lumen/internal/descriptor"
	"github.com/lumenhq/lumen/internal/domain"
	"github.com/lumenhq/lumen/internal/logx"
	"github.com/lumenhq/lumen/internal/orchestrator"
)

var log = logx.New("api")

// Server is the lumen HTTP API.
type Server struct {
	catalog        domain.Cataloger
	descriptors    domain.DescriptorStore
	orchestrator   *orchestrator.Orchestrator
	engines        domain.EngineRegistry
	metricsEnabled bool
}

// NewServer returns a Server over the given catalog, orchestrator, and
// engine registry. The descriptor store is the orchestrator's own.
func NewServer(catalog domain.Cataloger, orch *orchestrator.Orchestrator, engines domain.EngineRegistry) *Server {
	return &Server{
		catalog:      catalog,
		descriptors:  orch.Descriptors,
		orchestrator: orch,
		engines:      engines,
	}
}

// EnableMetrics mounts /metrics with the Prometheus handler.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/models/pull", s.handlePull)
	r.Get("/models", s.handleList)
	r.Get("/models/{id}", s.handleGet)
	r.Delete("/models/{id}", s.handleDelete)
	r.Post("/models/import", s.handleImport)
	r.Post("/models/alias", s.handleAlias)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── request/response shapes ────────────────────────────────────────────

type envelope struct {
	Result      string  `json:"result"`
	ModelHandle *string `json:"modelHandle,omitempty"`
	Message     string  `json:"message,omitempty"`
}

func writeEnvelope(w http.ResponseWriter, status int, result, modelHandle, message string) {
	env := envelope{Result: result, Message: message}
	if modelHandle != "" {
		env.ModelHandle = &modelHandle
	}
	writeJSON(w, status, env)
}

type pullRequest struct {
	ModelID string `json:"modelId"`
}

type importRequest struct {
	ModelID   string `json:"modelId"`
	ModelPath string `json:"modelPath"`
}

type aliasRequest struct {
	ModelID    string `json:"modelId"`
	ModelAlias string `json:"modelAlias"`
}

// ─── handlers ────────────────────────────────────────────────────────────

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	var req pullRequest
	if err := decodeJSON(r, &req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, "Bad Request", "", err.Error())
		return
	}
	if req.ModelID == "" {
		writeEnvelope(w, http.StatusBadRequest, "Bad Request", "", "modelId is required")
		return
	}

	handle := domain.ParseHandle(req.ModelID)
	entry, err := s.orchestrator.Pull(r.Context(), handle)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrNetwork) {
			status = http.StatusNotFound
		}
		log.Warnf("pull %s: %v", req.ModelID, err)
		writeEnvelope(w, status, "Error", "", err.Error())
		return
	}
	writeEnvelope(w, http.StatusOK, "OK", entry.ModelID, "")
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.catalog.LoadAll()
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, "Bad Request", "", err.Error())
		return
	}

	data := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		desc, err := s.descriptors.Read(e.PathToDescriptor)
		if err != nil {
			log.Warnf("read descriptor for %s: %v", e.ModelID, err)
			continue
		}
		wire, err := descriptorToWire(desc)
		if err != nil {
			continue
		}
		data = append(data, wire)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"object": "list", "data": data})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, err := s.catalog.GetByID(id)
	if err != nil {
		if e2, err2 := s.catalog.GetByAlias(id); err2 == nil {
			entry = e2
		} else {
			writeEnvelope(w, http.StatusBadRequest, "Bad Request", "", err.Error())
			return
		}
	}
	desc, err := s.descriptors.Read(entry.PathToDescriptor)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, "Bad Request", "", err.Error())
		return
	}
	wire, err := descriptorToWire(desc)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, "Bad Request", "", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"object": "list", "data": []json.RawMessage{wire}})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.catalog.Delete(id); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, domain.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeEnvelope(w, status, "Error", "", err.Error())
		return
	}
	writeEnvelope(w, http.StatusOK, "OK", id, "")
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeJSON(r, &req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, "Bad Request", "", err.Error())
		return
	}
	if req.ModelID == "" || req.ModelPath == "" {
		writeEnvelope(w, http.StatusBadRequest, "Bad Request", "", "modelId and modelPath are required")
		return
	}
	if _, err := s.orchestrator.Import(req.ModelID, req.ModelPath); err != nil {
		writeEnvelope(w, http.StatusBadRequest, "Error", "", err.Error())
		return
	}
	writeEnvelope(w, http.StatusOK, "OK", req.ModelID, "")
}

func (s *Server) handleAlias(w http.ResponseWriter, r *http.Request) {
	var req aliasRequest
	if err := decodeJSON(r, &req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, "Bad Request", "", err.Error())
		return
	}
	if req.ModelID == "" || req.ModelAlias == "" {
		writeEnvelope(w, http.StatusBadRequest, "Bad Request", "", "modelId and modelAlias are required")
		return
	}
	if err := s.catalog.UpdateAlias(req.ModelID, req.ModelAlias); err != nil {
		writeEnvelope(w, http.StatusBadRequest, "Error", "", err.Error())
		return
	}
	writeEnvelope(w, http.StatusOK, "OK", req.ModelID, "")
}

// ─── helpers ─────────────────────────────────────────────────────────────

func descriptorToWire(d *domain.ModelDescriptor) (json.RawMessage, error) {
	b, err := descriptor.ToWire(d)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
