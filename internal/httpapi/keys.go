package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/house-of-vanity/khm/internal/keystore"
)

// keyTripleJSON is the wire shape of one (host, public_key) pair in a batch
// POST body, per spec.md §6.1.
type keyTripleJSON struct {
	Server    string `json:"server"`
	PublicKey string `json:"public_key"`
}

type keyRecordJSON struct {
	Server     string `json:"server"`
	PublicKey  string `json:"public_key"`
	Deprecated bool   `json:"deprecated"`
	CreatedAt  int64  `json:"created_at,omitempty"`
}

func (s *Server) handleGetKeys(w http.ResponseWriter, r *http.Request) {
	flow := flowFromContext(r)

	includeDeprecated := false
	if v := r.URL.Query().Get("include_deprecated"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, kindBadRequest, "include_deprecated must be a boolean")
			return
		}
		includeDeprecated = parsed
	}

	records, err := s.engine.Read(r.Context(), flow, includeDeprecated)
	if err != nil {
		writeKherrors(w, err)
		return
	}

	out := make([]keyRecordJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, keyRecordJSON{
			Server:     rec.Host,
			PublicKey:  rec.PublicKey,
			Deprecated: rec.Deprecated,
			CreatedAt:  rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePostKeys(w http.ResponseWriter, r *http.Request) {
	flow := flowFromContext(r)

	var body []keyTripleJSON
	if err := decodeJSON(r, &body); err != nil {
		writeKherrors(w, err)
		return
	}
	if len(body) == 0 {
		writeError(w, kindBadRequest, "request body must contain at least one key triple")
		return
	}

	triples := make([]keystore.Triple, 0, len(body))
	for _, t := range body {
		if t.Server == "" || t.PublicKey == "" {
			writeError(w, kindBadRequest, "server and public_key are required on every triple")
			return
		}
		triples = append(triples, keystore.Triple{Host: t.Server, PublicKey: t.PublicKey})
	}

	if _, err := s.engine.IngestBatch(r.Context(), flow, triples); err != nil {
		writeKherrors(w, err)
		return
	}

	records, err := s.engine.Read(r.Context(), flow, false)
	if err != nil {
		writeKherrors(w, err)
		return
	}
	out := make([]keyRecordJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, keyRecordJSON{
			Server:     rec.Host,
			PublicKey:  rec.PublicKey,
			Deprecated: rec.Deprecated,
			CreatedAt:  rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeprecateHost(w http.ResponseWriter, r *http.Request) {
	flow := flowFromContext(r)
	host := chi.URLParam(r, "host")

	affected, err := s.engine.DeprecateHost(r.Context(), flow, host)
	switch err {
	case nil:
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "deprecated", "affected": affected})
	case keystore.ErrAlreadyDeprecated:
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "deprecated", "affected": 0})
	default:
		writeKherrors(w, err)
	}
}

func (s *Server) handleRestoreHost(w http.ResponseWriter, r *http.Request) {
	flow := flowFromContext(r)
	host := chi.URLParam(r, "host")

	affected, err := s.engine.RestoreHost(r.Context(), flow, host)
	switch err {
	case nil:
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "restored", "affected": affected})
	case keystore.ErrNotDeprecated:
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "restored", "affected": 0})
	default:
		writeKherrors(w, err)
	}
}

func (s *Server) handlePermanentDelete(w http.ResponseWriter, r *http.Request) {
	flow := flowFromContext(r)
	host := chi.URLParam(r, "host")

	affected, err := s.engine.PermanentDeleteHost(r.Context(), flow, host)
	if err != nil {
		writeKherrors(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "deleted", "affected": affected})
}
