package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "reqtrack-backend/pkg/errors"

	"reqtrack-backend/domain/model"
	"reqtrack-backend/infrastructure/graph"
	"reqtrack-backend/infrastructure/messaging"
	"reqtrack-backend/internal/store"
)

// Query parameters shared by item endpoints.
const (
	paramBaseline        = "baseline"
	paramFromWave        = "fromWave"
	paramExpectedVersion = "expectedVersionId"
)

// ItemHandler serves one versioned entity type. Requirements and
// changes differ only in their content and patch types, so one generic
// handler covers both.
type ItemHandler[C, P any] struct {
	substrate graph.Substrate
	store     *store.Store[C, P]
	publisher messaging.Publisher
	logger    *zap.Logger
}

// NewItemHandler creates the handler for one entity type's store.
func NewItemHandler[C, P any](substrate graph.Substrate, s *store.Store[C, P], publisher messaging.Publisher, logger *zap.Logger) *ItemHandler[C, P] {
	return &ItemHandler[C, P]{substrate: substrate, store: s, publisher: publisher, logger: logger}
}

// notifyVersion emits the post-commit notification for a committed
// version write. Best effort only: the write already committed and is
// never unwound on publish failure.
func (h *ItemHandler[C, P]) notifyVersion(r *http.Request, rec *model.Record[C]) {
	n := messaging.Notification{
		Kind:       messaging.KindVersionCreated,
		EntityType: rec.EntityType,
		ItemID:     rec.ItemID,
		VersionID:  rec.VersionID,
		Version:    rec.Version,
		UserID:     userID(r),
		Timestamp:  time.Now().UTC(),
	}
	if err := h.publisher.Publish(r.Context(), n); err != nil {
		h.logger.Warn("Failed to publish notification", zap.Error(err))
	}
}

// Mount registers the item routes on r.
func (h *ItemHandler[C, P]) Mount(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{itemId}", h.Get)
	r.Put("/{itemId}", h.Update)
	r.Patch("/{itemId}", h.Patch)
	r.Delete("/{itemId}", h.Delete)
	r.Get("/{itemId}/versions", h.History)
	r.Get("/{itemId}/versions/{version}", h.GetVersion)
}

func (h *ItemHandler[C, P]) Create(w http.ResponseWriter, r *http.Request) {
	var content C
	if !decodeBody(w, r, h.logger, &content) {
		return
	}

	tx, err := h.substrate.Begin(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	rec, err := h.store.Create(r.Context(), tx, content)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.notifyVersion(r, rec)
	writeJSON(w, http.StatusCreated, rec)
}

func (h *ItemHandler[C, P]) List(w http.ResponseWriter, r *http.Request) {
	tx, err := h.substrate.Begin(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer tx.Rollback()

	opts := store.ReadOptions{
		BaselineID: r.URL.Query().Get(paramBaseline),
		FromWaveID: r.URL.Query().Get(paramFromWave),
	}
	records, err := h.store.GetAll(r.Context(), tx, opts)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *ItemHandler[C, P]) Get(w http.ResponseWriter, r *http.Request) {
	tx, err := h.substrate.Begin(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer tx.Rollback()

	opts := store.ReadOptions{BaselineID: r.URL.Query().Get(paramBaseline)}
	rec, err := h.store.GetByID(r.Context(), tx, chi.URLParam(r, "itemId"), opts)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *ItemHandler[C, P]) Update(w http.ResponseWriter, r *http.Request) {
	expected := r.URL.Query().Get(paramExpectedVersion)
	if expected == "" {
		writeError(w, h.logger, apperrors.NewValidation("update requires optimistic lock", paramExpectedVersion+" is required"))
		return
	}
	var content C
	if !decodeBody(w, r, h.logger, &content) {
		return
	}

	tx, err := h.substrate.Begin(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	rec, err := h.store.Update(r.Context(), tx, chi.URLParam(r, "itemId"), content, expected)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.notifyVersion(r, rec)
	writeJSON(w, http.StatusOK, rec)
}

func (h *ItemHandler[C, P]) Patch(w http.ResponseWriter, r *http.Request) {
	expected := r.URL.Query().Get(paramExpectedVersion)
	if expected == "" {
		writeError(w, h.logger, apperrors.NewValidation("patch requires optimistic lock", paramExpectedVersion+" is required"))
		return
	}
	var patch P
	if !decodeBody(w, r, h.logger, &patch) {
		return
	}

	tx, err := h.substrate.Begin(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	rec, err := h.store.Patch(r.Context(), tx, chi.URLParam(r, "itemId"), patch, expected)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.notifyVersion(r, rec)
	writeJSON(w, http.StatusOK, rec)
}

func (h *ItemHandler[C, P]) Delete(w http.ResponseWriter, r *http.Request) {
	tx, err := h.substrate.Begin(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	itemID := chi.URLParam(r, "itemId")
	if err := h.store.Delete(r.Context(), tx, itemID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	n := messaging.Notification{
		Kind:       messaging.KindItemDeleted,
		EntityType: h.store.EntityType(),
		ItemID:     itemID,
		UserID:     userID(r),
		Timestamp:  time.Now().UTC(),
	}
	if err := h.publisher.Publish(r.Context(), n); err != nil {
		h.logger.Warn("Failed to publish notification", zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ItemHandler[C, P]) History(w http.ResponseWriter, r *http.Request) {
	tx, err := h.substrate.Begin(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer tx.Rollback()

	records, err := h.store.GetVersionHistory(r.Context(), tx, chi.URLParam(r, "itemId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *ItemHandler[C, P]) GetVersion(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 1 {
		writeError(w, h.logger, apperrors.NewValidation("invalid version", "version must be a positive integer"))
		return
	}

	tx, err := h.substrate.Begin(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer tx.Rollback()

	rec, err := h.store.GetByIDAndVersion(r.Context(), tx, chi.URLParam(r, "itemId"), version)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
