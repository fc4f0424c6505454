package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"

	"github.com/tbxark/formfiller/flow"
	"github.com/tbxark/formfiller/internal/log"
	"github.com/tbxark/formfiller/types"
)

type handlers struct {
	deps Deps
}

// formField is a field as posted by clients. Value, when set, prefills the
// field as already confirmed.
type formField struct {
	types.FieldSpec
	Value string `json:"value,omitempty"`
}

type startBody struct {
	Utterance string      `json:"utterance"`
	Fields    []formField `json:"form_fields"`
}

type turnResponse struct {
	SessionID        string            `json:"session_id"`
	Status           types.Status      `json:"status"`
	Filled           map[string]string `json:"filled"`
	MissingRequired  []string          `json:"missing_required_ids"`
	PendingFocus     string            `json:"pending_focus"`
	QuestionText     string            `json:"question_text"`
	ExtractionFailed bool              `json:"extraction_failed"`
}

func newTurnResponse(res *flow.Result) turnResponse {
	missing := res.MissingRequired
	if missing == nil {
		missing = []string{}
	}
	filled := res.Filled
	if filled == nil {
		filled = map[string]string{}
	}
	return turnResponse{
		SessionID:        res.SessionID,
		Status:           res.Status,
		Filled:           filled,
		MissingRequired:  missing,
		PendingFocus:     res.PendingFocus,
		QuestionText:     res.QuestionText,
		ExtractionFailed: res.ExtractionFailed,
	}
}

func (h *handlers) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.deps.MaxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", errBadRequest, err)
	}
	if err := sonic.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return nil
}

func (h *handlers) start(w http.ResponseWriter, r *http.Request) {
	var body startBody
	if err := h.decode(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	req := flow.StartRequest{Utterance: body.Utterance}
	for _, f := range body.Fields {
		req.Fields = append(req.Fields, f.FieldSpec)
		if f.Value != "" {
			if req.Values == nil {
				req.Values = map[string]string{}
			}
			req.Values[f.FieldID] = f.Value
		}
	}
	res, err := h.deps.Controller.Start(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTurnResponse(res))
}

func (h *handlers) continueTurn(w http.ResponseWriter, r *http.Request) {
	var req flow.ContinueRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.SessionID == "" {
		writeError(w, r, fmt.Errorf("%w: session_id is required", errBadRequest))
		return
	}
	ctx := log.ContextWithSessionID(r.Context(), req.SessionID)
	res, err := h.deps.Controller.Continue(ctx, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTurnResponse(res))
}

func (h *handlers) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := h.deps.Controller.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_ids": ids})
}

func (h *handlers) getSession(w http.ResponseWriter, r *http.Request) {
	state, err := h.deps.Controller.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *handlers) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Controller.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if h.deps.Health != nil {
		if err := h.deps.Health.Ping(r.Context()); err != nil {
			if !errors.Is(err, types.ErrStoreUnavailable) {
				err = fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
			}
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

var requestDocs = map[string]any{
	"start_request": map[string]any{
		"utterance": "string: the user's first message",
		"form_fields": []map[string]any{{
			"field_id":    "string: unique field key",
			"label":       "string: text shown to the user",
			"type":        "string: text | email | phone | date | number | select | radio | checkbox",
			"required":    "bool",
			"description": "string, optional",
			"options":     "[]string, for select, radio and checkbox",
			"value":       "string, optional prefilled value",
		}},
	},
	"continue_request": map[string]any{
		"session_id": "string: id returned by /formfiller/start",
		"utterance":  "string: the user's reply",
	},
	"response": map[string]any{
		"session_id":           "string",
		"status":               "awaiting_info | complete",
		"filled":               "map of field_id to value",
		"missing_required_ids": "[]string",
		"pending_focus":        "string: field the question asks about",
		"question_text":        "string: next question, empty when complete",
		"extraction_failed":    "bool: the turn ran without new values",
	},
}

func (h *handlers) schema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, requestDocs)
}
