package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"

	"solana-marketplace/internal/apperr"
	"solana-marketplace/internal/verification"
)

const maxBodyBytes = 64 << 10

var (
	errBadJSON    = apperr.New(apperr.Validation, "invalid_json", "request body is not valid JSON")
	errBadQuery   = apperr.New(apperr.Validation, "invalid_query", "query parameter is invalid")
	errBadRequest = apperr.New(apperr.Validation, "invalid_request", "required fields are missing")
)

// errorBody is the error response envelope.
type errorBody struct {
	Error       string                    `json:"error"`
	Message     string                    `json:"message"`
	Retryable   bool                      `json:"retryable"`
	Divergences []verification.Divergence `json:"divergences,omitempty"`
	// Record is the settlement or trade left behind by a failed payout.
	Record any `json:"record,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to its class status. record may be nil.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, record any) {
	if v := reflect.ValueOf(record); v.Kind() == reflect.Pointer && v.IsNil() {
		record = nil
	}
	class := apperr.ClassOf(err)
	body := errorBody{
		Error:     apperr.CodeOf(err),
		Message:   err.Error(),
		Retryable: apperr.Retryable(class),
		Record:    record,
	}
	var mm *verification.MismatchError
	if errors.As(err, &mm) {
		body.Divergences = mm.Divergences
	}

	status := apperr.HTTPStatus(class)
	if status >= http.StatusInternalServerError && class == apperr.Internal {
		s.logger.Error("request failed", "route", r.URL.Path, "error", err)
		body.Message = "internal error"
	}
	writeJSON(w, status, body)
}

// decode reads a JSON body into v and validates it.
func decode(r *http.Request, v interface{ validate() error }) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(apperr.Validation, "invalid_json", fmt.Errorf("%s: %w", errBadJSON.Message, err))
	}
	return v.validate()
}

// queryInt parses an optional integer query parameter within [min, max].
func queryInt(r *http.Request, name string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		return 0, apperr.Wrap(apperr.Validation, errBadQuery.Code, fmt.Errorf("%s must be an integer in [%d, %d]", name, min, max))
	}
	return n, nil
}
