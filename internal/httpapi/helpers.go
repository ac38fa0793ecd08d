package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"arcturus.sanger.ac.uk/internal/auth"
	"arcturus.sanger.ac.uk/internal/binder"
	"arcturus.sanger.ac.uk/internal/directory"
	"arcturus.sanger.ac.uk/internal/obs"
	"arcturus.sanger.ac.uk/internal/records"
	"arcturus.sanger.ac.uk/internal/tenant"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// writeDomainError maps the service's sentinel errors onto HTTP statuses.
// An unknown tenant is indistinguishable from any other missing resource;
// an unreachable directory or database endpoint is a 503, not a 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tenant.ErrUnknownInstance),
		errors.Is(err, tenant.ErrUnknownOrganism),
		errors.Is(err, records.ErrNotFound),
		errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, directory.ErrUnavailable),
		errors.Is(err, binder.ErrConnectionFailed):
		writeError(w, r, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, records.ErrInvalid),
		errors.Is(err, auth.ErrValidation),
		errors.Is(err, tenant.ErrIncompleteEntry):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, auth.ErrBadCredentials):
		writeError(w, r, http.StatusUnauthorized, "access denied")
	default:
		obs.LogEvent("error", "request failed", map[string]any{
			"error":      err.Error(),
			"path":       r.URL.Path,
			"request_id": RequestIDFromContext(r.Context()),
		})
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// recordStore returns the record layer over this request's bound
// connection.
func recordStore(r *http.Request) (*records.Store, error) {
	conn, err := binder.FromContext(r.Context())
	if err != nil {
		return nil, err
	}
	return records.New(conn.DB()), nil
}
