package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "reqtrack-backend/pkg/errors"

	"reqtrack-backend/infrastructure/graph"
	"reqtrack-backend/infrastructure/messaging"
	"reqtrack-backend/internal/store"
)

// BaselineHandler serves baseline capture and replay. Baselines are
// write-once: PUT and DELETE answer with the unsupported-operation
// error rather than 404, making the immutability explicit.
type BaselineHandler struct {
	substrate graph.Substrate
	store     *store.BaselineStore
	publisher messaging.Publisher
	logger    *zap.Logger
}

// NewBaselineHandler creates the baseline handler.
func NewBaselineHandler(substrate graph.Substrate, s *store.BaselineStore, publisher messaging.Publisher, logger *zap.Logger) *BaselineHandler {
	return &BaselineHandler{substrate: substrate, store: s, publisher: publisher, logger: logger}
}

// Mount registers the baseline routes on r.
func (h *BaselineHandler) Mount(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{baselineId}", h.Get)
	r.Get("/{baselineId}/items", h.Items)
	r.Put("/{baselineId}", h.Unsupported("baseline update"))
	r.Patch("/{baselineId}", h.Unsupported("baseline update"))
	r.Delete("/{baselineId}", h.Unsupported("baseline delete"))
}

func (h *BaselineHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input store.CreateBaselineInput
	if !decodeBody(w, r, h.logger, &input) {
		return
	}

	tx, err := h.substrate.Begin(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	baseline, err := h.store.Create(r.Context(), tx, input)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	n := messaging.Notification{
		Kind:       messaging.KindBaselineCreated,
		BaselineID: baseline.ID,
		UserID:     userID(r),
		Timestamp:  time.Now().UTC(),
	}
	if err := h.publisher.Publish(r.Context(), n); err != nil {
		h.logger.Warn("Failed to publish notification", zap.Error(err))
	}
	writeJSON(w, http.StatusCreated, baseline)
}

func (h *BaselineHandler) List(w http.ResponseWriter, r *http.Request) {
	tx, err := h.substrate.Begin(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer tx.Rollback()

	baselines, err := h.store.GetAll(r.Context(), tx)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, baselines)
}

func (h *BaselineHandler) Get(w http.ResponseWriter, r *http.Request) {
	tx, err := h.substrate.Begin(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer tx.Rollback()

	baseline, err := h.store.GetByID(r.Context(), tx, chi.URLParam(r, "baselineId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, baseline)
}

func (h *BaselineHandler) Items(w http.ResponseWriter, r *http.Request) {
	tx, err := h.substrate.Begin(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer tx.Rollback()

	items, err := h.store.GetBaselineItems(r.Context(), tx, chi.URLParam(r, "baselineId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Unsupported answers for the operations baselines do not have.
func (h *BaselineHandler) Unsupported(operation string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeError(w, h.logger, apperrors.NewUnsupported(operation))
	}
}
