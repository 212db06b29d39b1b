// Package api exposes the editor over HTTP.
//
// Routes, all under /v1:
//
//	GET    /catalog                                 every variant descriptor
//	GET    /catalog/{variant}                       one descriptor
//	POST   /validate                                validate a record
//	POST   /drafts                                  new unsaved draft of a variant
//	GET    /scopes/{scope}/entities                 load and list a scope
//	PUT    /scopes/{scope}/entities/{id}            save a valid entity
//	DELETE /scopes/{scope}/entities/{id}?confirm=id delete an entity
//	POST   /scopes/{scope}/entities/{id}/duplicate  persist a copy
//	POST   /scopes/{scope}/wizard                   start the edit session
//	GET    /wizard                                  session, form and findings
//	POST   /wizard/variant                          choose the variant
//	POST   /wizard/step                             move to a step
//	POST   /wizard/edits                            apply an inline field edit
//	POST   /wizard/migrate-shop                     rewrite legacy shop data
//	POST   /wizard/save                             save and close the session
//	DELETE /wizard                                  discard the session
//	GET    /notices                                 drain pending notices
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrWong99/npcforge/internal/app"
	"github.com/MrWong99/npcforge/internal/health"
	"github.com/MrWong99/npcforge/internal/observe"
	"github.com/MrWong99/npcforge/internal/schema"
	"github.com/MrWong99/npcforge/internal/suggest"
)

// Handler implements the /v1 routes on top of an [app.App].
type Handler struct {
	app     *app.App
	matcher *suggest.Matcher
}

// New creates a Handler serving a.
func New(a *app.App) *Handler {
	return &Handler{app: a, matcher: suggest.New()}
}

// Routes registers the /v1 routes on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/catalog", h.handleCatalog)
	r.Get("/catalog/{variant}", h.handleDescribe)
	r.Post("/validate", h.handleValidate)
	r.Post("/drafts", h.handleCreateDraft)
	r.Get("/notices", h.handleNotices)

	r.Route("/scopes/{scope}", func(r chi.Router) {
		r.Get("/entities", h.handleListEntities)
		r.Put("/entities/{id}", h.handleSaveEntity)
		r.Delete("/entities/{id}", h.handleDeleteEntity)
		r.Post("/entities/{id}/duplicate", h.handleDuplicateEntity)
		r.Post("/wizard", h.handleStartWizard)
	})

	r.Route("/wizard", func(r chi.Router) {
		r.Get("/", h.handleWizard)
		r.Delete("/", h.handleCancelWizard)
		r.Post("/variant", h.handleSelectVariant)
		r.Post("/step", h.handleGoToStep)
		r.Post("/edits", h.handleApplyEdit)
		r.Post("/migrate-shop", h.handleMigrateShop)
		r.Post("/save", h.handleSaveWizard)
	})
}

// NewRouter assembles the full HTTP surface: tracing and metrics middleware,
// health probes, the Prometheus endpoint and the /v1 API.
func NewRouter(a *app.App) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(observe.Middleware(a.Metrics()))

	health.New(a.Checkers()...).Register(r)
	r.Handle("/metrics", observe.MetricsHandler())
	r.Route("/v1", New(a).Routes)
	return r
}

// variantHint returns a did-you-mean suffix for an unknown variant id.
func (h *Handler) variantHint(raw string) string {
	vs := h.app.Registry().Variants()
	ids := make([]string, len(vs))
	for i, v := range vs {
		ids[i] = string(v)
	}
	return h.matcher.Hint(raw, ids)
}

// describe resolves a variant id against the catalog.
func (h *Handler) describe(raw string) (*schema.Descriptor, bool) {
	v, ok := schema.ParseVariant(raw)
	if !ok {
		return nil, false
	}
	return h.app.Registry().Describe(v)
}
