package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrWong99/npcforge/internal/collection"
	"github.com/MrWong99/npcforge/internal/npcstore"
	"github.com/MrWong99/npcforge/internal/record"
	"github.com/MrWong99/npcforge/internal/validate"
)

type entityListResponse struct {
	Scope    string          `json:"scope"`
	Entities []record.Record `json:"entities"`

	// Error is set when the backend could not be read. Entities is then
	// empty.
	Error string `json:"error,omitempty"`
}

type entityResponse struct {
	Entity record.Record    `json:"entity"`
	Result *validate.Result `json:"result,omitempty"`
}

type invalidEntityResponse struct {
	errorBody
	Result validate.Result `json:"result"`
}

// ensureScope loads scope unless it is already the editor's active scope.
func (h *Handler) ensureScope(ctx context.Context, scope string) error {
	if h.app.Editor().Entities().Scope() == scope {
		return nil
	}
	_, err := h.app.Editor().OpenScope(ctx, scope)
	return err
}

// handleListEntities loads a scope and returns its entities in stored order.
// A backend failure still answers 200 with an empty list and the error.
// GET /v1/scopes/{scope}/entities
func (h *Handler) handleListEntities(w http.ResponseWriter, r *http.Request) {
	scope := chi.URLParam(r, "scope")
	recs, err := h.app.Editor().OpenScope(r.Context(), scope)
	switch {
	case errors.Is(err, npcstore.ErrPersistence):
		writeJSON(w, http.StatusOK, entityListResponse{Scope: scope, Entities: []record.Record{}, Error: err.Error()})
		return
	case err != nil:
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entityListResponse{Scope: scope, Entities: recs})
}

// handleSaveEntity creates or replaces an entity. Records with validation
// errors are refused with 422 and their findings; a replacement that
// changes the entity's type is refused with 409.
// PUT /v1/scopes/{scope}/entities/{id}
func (h *Handler) handleSaveEntity(w http.ResponseWriter, r *http.Request) {
	scope, id := chi.URLParam(r, "scope"), chi.URLParam(r, "id")

	var rec record.Record
	if err := decodeJSON(w, r, &rec); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if rec == nil {
		rec = record.Record{}
	}
	switch rec.ID() {
	case "":
		rec["id"] = id
	case id:
	default:
		writeError(w, http.StatusBadRequest, "ID_MISMATCH", "body id "+rec.ID()+" does not match path id "+id)
		return
	}
	rec = record.NormalizeRecord(rec)

	res := h.app.Validator().Validate(rec)
	if !res.Valid {
		writeJSON(w, http.StatusUnprocessableEntity, invalidEntityResponse{
			errorBody: errorBody{Error: "entity has validation errors", Code: "INVALID_ENTITY"},
			Result:    res,
		})
		return
	}
	if err := h.ensureScope(r.Context(), scope); err != nil {
		errorToHTTP(w, r, err)
		return
	}
	if err := h.app.Editor().Entities().Save(r.Context(), rec); err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entityResponse{Entity: rec, Result: &res})
}

// handleDeleteEntity removes an entity. The confirm query parameter must
// repeat the id.
// DELETE /v1/scopes/{scope}/entities/{id}?confirm={id}
func (h *Handler) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	scope, id := chi.URLParam(r, "scope"), chi.URLParam(r, "id")
	if err := h.ensureScope(r.Context(), scope); err != nil {
		errorToHTTP(w, r, err)
		return
	}
	conf := collection.Confirm(r.URL.Query().Get("confirm"))
	if err := h.app.Editor().Entities().Delete(r.Context(), id, conf); err != nil {
		errorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDuplicateEntity persists a copy of an entity and returns it.
// POST /v1/scopes/{scope}/entities/{id}/duplicate
func (h *Handler) handleDuplicateEntity(w http.ResponseWriter, r *http.Request) {
	scope, id := chi.URLParam(r, "scope"), chi.URLParam(r, "id")
	if err := h.ensureScope(r.Context(), scope); err != nil {
		errorToHTTP(w, r, err)
		return
	}
	cp, err := h.app.Editor().Entities().Duplicate(r.Context(), id)
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entityResponse{Entity: cp})
}
