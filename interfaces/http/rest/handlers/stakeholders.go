package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"reqtrack-backend/infrastructure/graph"
	"reqtrack-backend/internal/store"
)

// StakeholderHandler serves the non-versioned stakeholder records.
type StakeholderHandler struct {
	substrate graph.Substrate
	store     *store.StakeholderStore
	logger    *zap.Logger
}

// NewStakeholderHandler creates the stakeholder handler.
func NewStakeholderHandler(substrate graph.Substrate, s *store.StakeholderStore, logger *zap.Logger) *StakeholderHandler {
	return &StakeholderHandler{substrate: substrate, store: s, logger: logger}
}

// Mount registers the stakeholder routes on r.
func (h *StakeholderHandler) Mount(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{stakeholderId}", h.Get)
	r.Delete("/{stakeholderId}", h.Delete)
}

func (h *StakeholderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var sh store.Stakeholder
	if !decodeBody(w, r, h.logger, &sh) {
		return
	}

	tx, err := h.substrate.Begin(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	created, err := h.store.Create(r.Context(), tx, sh)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *StakeholderHandler) List(w http.ResponseWriter, r *http.Request) {
	tx, err := h.substrate.Begin(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer tx.Rollback()

	stakeholders, err := h.store.GetAll(r.Context(), tx)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stakeholders)
}

func (h *StakeholderHandler) Get(w http.ResponseWriter, r *http.Request) {
	tx, err := h.substrate.Begin(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer tx.Rollback()

	sh, err := h.store.GetByID(r.Context(), tx, chi.URLParam(r, "stakeholderId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

func (h *StakeholderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tx, err := h.substrate.Begin(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.store.Delete(r.Context(), tx, chi.URLParam(r, "stakeholderId")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
