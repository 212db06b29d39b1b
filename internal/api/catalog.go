package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrWong99/npcforge/internal/notify"
	"github.com/MrWong99/npcforge/internal/record"
	"github.com/MrWong99/npcforge/internal/schema"
	"github.com/MrWong99/npcforge/internal/validate"
)

// handleCatalog returns every variant descriptor.
// GET /v1/catalog
func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, schema.Catalog(h.app.Registry()))
}

// handleDescribe returns one variant descriptor.
// GET /v1/catalog/{variant}
func (h *Handler) handleDescribe(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "variant")
	if _, ok := h.describe(raw); !ok {
		writeError(w, http.StatusNotFound, "UNKNOWN_VARIANT",
			fmt.Sprintf("unknown variant %q%s", raw, h.variantHint(raw)))
		return
	}
	for _, cv := range schema.Catalog(h.app.Registry()).Variants {
		if string(cv.ID) == raw {
			writeJSON(w, http.StatusOK, cv)
			return
		}
	}
}

// handleValidate validates the record in the body. Findings are data: an
// invalid record still answers 200.
// POST /v1/validate
func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var rec record.Record
	if err := decodeJSON(w, r, &rec); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	rec = record.NormalizeRecord(rec)
	res := h.app.Validator().Validate(rec)
	h.app.Metrics().RecordValidation(r.Context(), rec.Type(), res.Valid, len(res.Errors), len(res.Warnings), len(res.Suggestions))
	writeJSON(w, http.StatusOK, res)
}

type variantRequest struct {
	Variant string `json:"variant"`
}

type draftResponse struct {
	Draft  record.Record   `json:"draft"`
	Result validate.Result `json:"result"`
}

// handleCreateDraft returns a new, unsaved draft of a variant with its
// initial findings.
// POST /v1/drafts
func (h *Handler) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
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
	draft, err := h.app.Editor().Entities().CreateFrom(schema.Variant(req.Variant))
	if err != nil {
		errorToHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draftResponse{Draft: draft, Result: h.app.Validator().Validate(draft)})
}

// handleNotices returns and clears the pending user notices.
// GET /v1/notices
func (h *Handler) handleNotices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Notices []notify.Notification `json:"notices"`
	}{h.app.Notices().Drain()})
}
