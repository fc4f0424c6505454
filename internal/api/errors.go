package api

import (
	"errors"
	"net/http"

	"github.com/bytedance/sonic"

	"github.com/tbxark/formfiller/internal/log"
	"github.com/tbxark/formfiller/types"
)

type errorBody struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

var errBadRequest = errors.New("bad request")

// statusFor maps domain errors to HTTP status codes and stable error codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, types.ErrSchemaInvalid):
		return http.StatusBadRequest, "schema_invalid"
	case errors.Is(err, types.ErrEmptyUtterance):
		return http.StatusBadRequest, "empty_utterance"
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, types.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, types.ErrSessionComplete):
		return http.StatusConflict, "session_complete"
	case errors.Is(err, types.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	logger := log.WithContext(r.Context(), log.WithComponent("api"))
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str(log.FieldEvent, code).Msg("request failed")
	} else {
		logger.Debug().Err(err).Str(log.FieldEvent, code).Msg("request rejected")
	}
	writeJSON(w, status, errorBody{
		Error:     code,
		Detail:    err.Error(),
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal_error","detail":"failed to encode response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
