package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"reqtrack-backend/domain/model"
	"reqtrack-backend/infrastructure/graph"
	"reqtrack-backend/internal/store"
)

// WaveHandler serves the wave timeline.
type WaveHandler struct {
	substrate graph.Substrate
	store     *store.WaveStore
	logger    *zap.Logger
}

// NewWaveHandler creates the wave handler.
func NewWaveHandler(substrate graph.Substrate, s *store.WaveStore, logger *zap.Logger) *WaveHandler {
	return &WaveHandler{substrate: substrate, store: s, logger: logger}
}

// Mount registers the wave routes on r.
func (h *WaveHandler) Mount(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{waveId}", h.Get)
}

func (h *WaveHandler) Create(w http.ResponseWriter, r *http.Request) {
	var wave model.Wave
	if !decodeBody(w, r, h.logger, &wave) {
		return
	}

	tx, err := h.substrate.Begin(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	created, err := h.store.Create(r.Context(), tx, wave)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *WaveHandler) List(w http.ResponseWriter, r *http.Request) {
	tx, err := h.substrate.Begin(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer tx.Rollback()

	waves, err := h.store.GetAll(r.Context(), tx)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, waves)
}

func (h *WaveHandler) Get(w http.ResponseWriter, r *http.Request) {
	tx, err := h.substrate.Begin(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer tx.Rollback()

	wave, err := h.store.GetByID(r.Context(), tx, chi.URLParam(r, "waveId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, wave)
}
