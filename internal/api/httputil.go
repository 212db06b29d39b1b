package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MrWong99/npcforge/internal/app"
	"github.com/MrWong99/npcforge/internal/collection"
	"github.com/MrWong99/npcforge/internal/factory"
	"github.com/MrWong99/npcforge/internal/form"
	"github.com/MrWong99/npcforge/internal/npcstore"
	"github.com/MrWong99/npcforge/internal/observe"
	"github.com/MrWong99/npcforge/internal/resilience"
	"github.com/MrWong99/npcforge/internal/wizard"
)

// maxBodyBytes bounds request bodies. Entity records are small.
const maxBodyBytes = 1 << 20

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("api: encode response", "err", err)
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: message, Code: code})
}

// decodeJSON decodes the request body into v. Unknown fields are rejected
// for request types; records decode into maps and accept anything.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// errorStatus maps a domain error onto a status code and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, wizard.ErrNoSession), errors.Is(err, app.ErrNoSession):
		return http.StatusNotFound, "NO_SESSION"
	case errors.Is(err, app.ErrSessionActive):
		return http.StatusConflict, "SESSION_ACTIVE"
	case errors.Is(err, wizard.ErrInvalidDraft):
		return http.StatusUnprocessableEntity, "INVALID_DRAFT"
	case errors.Is(err, wizard.ErrStepIncomplete):
		return http.StatusConflict, "STEP_INCOMPLETE"
	case errors.Is(err, wizard.ErrVariantLocked):
		return http.StatusConflict, "VARIANT_LOCKED"
	case errors.Is(err, form.ErrImmutableField):
		return http.StatusBadRequest, "IMMUTABLE_FIELD"
	case errors.Is(err, form.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, factory.ErrUnknownVariant):
		return http.StatusBadRequest, "UNKNOWN_VARIANT"
	case errors.Is(err, collection.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, collection.ErrNotConfirmed):
		return http.StatusPreconditionFailed, "NOT_CONFIRMED"
	case errors.Is(err, collection.ErrStale):
		return http.StatusConflict, "STALE"
	case errors.Is(err, collection.ErrNoScope):
		return http.StatusConflict, "NO_SCOPE"
	case errors.Is(err, npcstore.ErrInvalidRecord):
		return http.StatusBadRequest, "INVALID_RECORD"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable, "STORE_UNAVAILABLE"
	case errors.Is(err, npcstore.ErrPersistence):
		return http.StatusBadGateway, "STORE_ERROR"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// errorToHTTP writes err as a JSON error response.
func errorToHTTP(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		observe.Logger(r.Context()).Error("api: request failed", "path", r.URL.Path, "code", code, "err", err)
	}
	if status == http.StatusInternalServerError {
		writeError(w, status, code, "internal server error")
		return
	}
	writeError(w, status, code, err.Error())
}
