package httpapi

import "net/http"

// handleScanDNS resolves every distinct hostname currently known in the
// flow and reports resolved/unresolved (spec §4.3/§6.1). It is read-only:
// the caller reviews the report and issues a separate bulk-deprecate call.
func (s *Server) handleScanDNS(w http.ResponseWriter, r *http.Request) {
	flow := flowFromContext(r)

	hosts, err := s.engine.ListHostnames(r.Context(), flow)
	if err != nil {
		writeKherrors(w, err)
		return
	}

	report := s.scanner.Scan(r.Context(), hosts)
	writeJSON(w, http.StatusOK, report)
}
