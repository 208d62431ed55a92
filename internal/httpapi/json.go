package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/house-of-vanity/khm/internal/kherrors"
)

type errKind string

const (
	kindBadRequest   errKind = "bad_request"
	kindUnauthorized errKind = "unauthorized"
	kindNotFound     errKind = "not_found"
	kindConflict     errKind = "conflict"
	kindUnavailable  errKind = "unavailable"
	kindInternal     errKind = "internal"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return kherrors.Wrap(kherrors.BadRequest, "malformed JSON body", err)
	}
	return nil
}

// writeError writes a non-2xx response as plain text: spec.md §7 is explicit
// that there is no structured error envelope, just a short human-readable
// reason the CLI client can print verbatim (spec.md §4.5).
func writeError(w http.ResponseWriter, kind errKind, msg string) {
	w.WriteHeader(statusForKind(kind))
	_, _ = io.WriteString(w, msg)
}

// writeKherrors maps a kherrors.Kind-tagged error (or any other error,
// treated as Internal) to its HTTP status and writes its message as plain
// text, per spec.md §7.
func writeKherrors(w http.ResponseWriter, err error) {
	kind := kherrors.KindOf(err)
	w.WriteHeader(statusForKherrorsKind(kind))
	_, _ = io.WriteString(w, err.Error())
}

func statusForKherrorsKind(k kherrors.Kind) int {
	switch k {
	case kherrors.BadRequest:
		return http.StatusBadRequest
	case kherrors.Unauthorized:
		return http.StatusUnauthorized
	case kherrors.NotFound:
		return http.StatusNotFound
	case kherrors.Conflict:
		return http.StatusConflict
	case kherrors.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func statusForKind(k errKind) int {
	switch k {
	case kindBadRequest:
		return http.StatusBadRequest
	case kindUnauthorized:
		return http.StatusUnauthorized
	case kindNotFound:
		return http.StatusNotFound
	case kindConflict:
		return http.StatusConflict
	case kindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
