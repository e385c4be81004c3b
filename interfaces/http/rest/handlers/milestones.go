package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "reqtrack-backend/pkg/errors"

	"reqtrack-backend/domain/model"
	"reqtrack-backend/infrastructure/graph"
	"reqtrack-backend/internal/entities"
)

// MilestoneHandler serves milestone operations nested under changes.
// Every milestone write is a full version write of the parent change,
// so the same optimistic-lock parameter applies.
type MilestoneHandler struct {
	substrate graph.Substrate
	service   *entities.MilestoneService
	logger    *zap.Logger
}

// NewMilestoneHandler creates the milestone handler.
func NewMilestoneHandler(substrate graph.Substrate, service *entities.MilestoneService, logger *zap.Logger) *MilestoneHandler {
	return &MilestoneHandler{substrate: substrate, service: service, logger: logger}
}

// Mount registers the milestone routes on r, nested under a change.
func (h *MilestoneHandler) Mount(r chi.Router) {
	r.Post("/", h.Add)
	r.Put("/{milestoneKey}", h.Update)
	r.Delete("/{milestoneKey}", h.Delete)
}

func (h *MilestoneHandler) Add(w http.ResponseWriter, r *http.Request) {
	expected := r.URL.Query().Get(paramExpectedVersion)
	if expected == "" {
		writeError(w, h.logger, apperrors.NewValidation("milestone add requires optimistic lock", paramExpectedVersion+" is required"))
		return
	}
	var m model.Milestone
	if !decodeBody(w, r, h.logger, &m) {
		return
	}

	tx, err := h.substrate.Begin(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.service.Add(r.Context(), tx, chi.URLParam(r, "itemId"), m, expected)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *MilestoneHandler) Update(w http.ResponseWriter, r *http.Request) {
	expected := r.URL.Query().Get(paramExpectedVersion)
	if expected == "" {
		writeError(w, h.logger, apperrors.NewValidation("milestone update requires optimistic lock", paramExpectedVersion+" is required"))
		return
	}
	var m model.Milestone
	if !decodeBody(w, r, h.logger, &m) {
		return
	}

	tx, err := h.substrate.Begin(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.service.Update(r.Context(), tx, chi.URLParam(r, "itemId"), chi.URLParam(r, "milestoneKey"), m, expected)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *MilestoneHandler) Delete(w http.ResponseWriter, r *http.Request) {
	expected := r.URL.Query().Get(paramExpectedVersion)
	if expected == "" {
		writeError(w, h.logger, apperrors.NewValidation("milestone delete requires optimistic lock", paramExpectedVersion+" is required"))
		return
	}

	tx, err := h.substrate.Begin(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	pointer, err := h.service.Delete(r.Context(), tx, chi.URLParam(r, "itemId"), chi.URLParam(r, "milestoneKey"), expected)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pointer)
}
