package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrWong99/npcforge/internal/form"
	"github.com/MrWong99/npcforge/internal/record"
	"github.com/MrWong99/npcforge/internal/schema"
	"github.com/MrWong99/npcforge/internal/validate"
	"github.com/MrWong99/npcforge/internal/wizard"
)

// sessionView is the JSON shape of the edit session.
type sessionView struct {
	Scope           string          `json:"scope"`
	Step            int             `json:"step"`
	StepName        string          `json:"step_name"`
	EditingExisting bool            `json:"editing_existing"`
	Draft           record.Record   `json:"draft"`
	Form            *form.Form      `json:"form,omitempty"`
	Result          validate.Result `json:"result"`
}

type startRequest struct {
	// Edit names an existing entity to edit. Empty starts a new one.
	Edit string `json:"edit"`
}

type stepRequest struct {
	Step int `json:"step"`
}

type savedResponse struct {
	Entity record.Record   `json:"entity"`
	Result validate.Result `json:"result"`
}

type invalidDraftResponse struct {
	errorBody
	Result validate.Result `json:"result"`
}

// view snapshots the session for a response.
func (h *Handler) view() (sessionView, error) {
	wz := h.app.Editor().Wizard()
	s, ok := wz.Session()
	if !ok {
		return sessionView{}, wizard.ErrNoSession
	}
	v := sessionView{
		Scope:           h.app.Editor().Info().Scope,
		Step:            int(s.Step),
		StepName:        s.Step.String(),
		EditingExisting: s.EditingExisting,
		Draft:           s.Draft,
		Result:          wz.Result(),
	}
	if f, err := wz.Form(); err == nil {
		v.Form = &f
	}
	return v, nil
}

func (h *Handler) writeView(w http.ResponseWriter, r *http.Request, status int) {
	v, err := h.view()
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, status, v)
}

// handleStartWizard opens the edit session in a scope, for a new entity or a
// copy of an existing one.
// POST /v1/scopes/{scope}/wizard
func (h *Handler) handleStartWizard(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if err := h.ensureScope(r.Context(), chi.URLParam(r, "scope")); err != nil {
		errorToHTTP(w, r, err)
		return
	}
	ed := h.app.Editor()
	var err error
	if req.Edit == "" {
		_, err = ed.StartNew(r.Context())
	} else {
		_, err = ed.StartEdit(r.Context(), req.Edit)
	}
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	h.writeView(w, r, http.StatusCreated)
}

// handleWizard returns the session with its form and findings.
// GET /v1/wizard
func (h *Handler) handleWizard(w http.ResponseWriter, r *http.Request) {
	h.writeView(w, r, http.StatusOK)
}

// handleCancelWizard discards the session.
// DELETE /v1/wizard
func (h *Handler) handleCancelWizard(w http.ResponseWriter, r *http.Request) {
	h.app.Editor().Cancel(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// handleSelectVariant chooses the variant of a new entity.
// POST /v1/wizard/variant
func (h *Handler) handleSelectVariant(w http.ResponseWriter, r *http.Request) {
	var req variantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if _, ok := h.describe(req.Variant); !ok {
		writeError(w, http.StatusBadRequest, "UNKNOWN_VARIANT",
			fmt.Sprintf("unknown variant %q%s", req.Variant, h.variantHint(req.Variant)))
		return
	}
	if _, err := h.app.Editor().Wizard().SelectVariant(schema.Variant(req.Variant)); err != nil {
		errorToHTTP(w, r, err)
		return
	}
	h.writeView(w, r, http.StatusOK)
}

// handleGoToStep moves the session to a step.
// POST /v1/wizard/step
func (h *Handler) handleGoToStep(w http.ResponseWriter, r *http.Request) {
	var req stepRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	n := wizard.Step(req.Step)
	if n < wizard.StepVariantSelect || n > wizard.StepPreview {
		writeError(w, http.StatusBadRequest, "INVALID_STEP", fmt.Sprintf("no step %d", req.Step))
		return
	}
	if _, err := h.app.Editor().Wizard().GoToStep(r.Context(), n); err != nil {
		errorToHTTP(w, r, err)
		return
	}
	h.writeView(w, r, http.StatusOK)
}

// handleApplyEdit applies one inline field edit.
// POST /v1/wizard/edits
func (h *Handler) handleApplyEdit(w http.ResponseWriter, r *http.Request) {
	var cmd form.EditCommand
	if err := decodeJSON(w, r, &cmd); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if _, err := h.app.Editor().Wizard().Apply(cmd); err != nil {
		errorToHTTP(w, r, err)
		return
	}
	h.writeView(w, r, http.StatusOK)
}

// handleMigrateShop rewrites superseded merchant shop data in the draft.
// POST /v1/wizard/migrate-shop
func (h *Handler) handleMigrateShop(w http.ResponseWriter, r *http.Request) {
	if _, err := h.app.Editor().Wizard().MigrateLegacyShop(); err != nil {
		errorToHTTP(w, r, err)
		return
	}
	h.writeView(w, r, http.StatusOK)
}

// handleSaveWizard saves the draft and closes the session. A draft with
// validation errors is refused with 422 and its findings.
// POST /v1/wizard/save
func (h *Handler) handleSaveWizard(w http.ResponseWriter, r *http.Request) {
	ed := h.app.Editor()
	id := ed.Info().EntityID
	res, err := ed.Save(r.Context())
	switch {
	case errors.Is(err, wizard.ErrInvalidDraft):
		writeJSON(w, http.StatusUnprocessableEntity, invalidDraftResponse{
			errorBody: errorBody{Error: err.Error(), Code: "INVALID_DRAFT"},
			Result:    res,
		})
		return
	case err != nil:
		errorToHTTP(w, r, err)
		return
	}
	saved, err := ed.Entities().Get(id)
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, savedResponse{Entity: saved, Result: res})
}
