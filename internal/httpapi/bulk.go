package httpapi

import (
	"fmt"
	"net/http"

	"github.com/house-of-vanity/khm/internal/keystore"
)

type bulkRequestJSON struct {
	Servers []string `json:"servers"`
}

func (s *Server) handleBulkDeprecate(w http.ResponseWriter, r *http.Request) {
	flow := flowFromContext(r)

	var body bulkRequestJSON
	if err := decodeJSON(r, &body); err != nil {
		writeKherrors(w, err)
		return
	}
	if len(body.Servers) == 0 {
		writeError(w, kindBadRequest, "servers must be a non-empty array")
		return
	}

	stats, err := s.engine.BulkDeprecate(r.Context(), flow, body.Servers)
	if err != nil {
		writeKherrors(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  bulkMessage("deprecated", stats),
		"affected": stats.Affected,
	})
}

func (s *Server) handleBulkRestore(w http.ResponseWriter, r *http.Request) {
	flow := flowFromContext(r)

	var body bulkRequestJSON
	if err := decodeJSON(r, &body); err != nil {
		writeKherrors(w, err)
		return
	}
	if len(body.Servers) == 0 {
		writeError(w, kindBadRequest, "servers must be a non-empty array")
		return
	}

	stats, err := s.engine.BulkRestore(r.Context(), flow, body.Servers)
	if err != nil {
		writeKherrors(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  bulkMessage("restored", stats),
		"affected": stats.Affected,
	})
}

// bulkMessage reports the outcome in prose, naming any skipped hosts —
// spec.md §6.1 documents only a "message" string, not a structured
// skipped list, so the detail goes into the text instead of a new field.
func bulkMessage(verb string, stats keystore.BulkStats) string {
	if len(stats.Skipped) == 0 {
		return fmt.Sprintf("%d host(s) %s", stats.Affected, verb)
	}
	return fmt.Sprintf("%d host(s) %s, skipped: %v", stats.Affected, verb, stats.Skipped)
}
