package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"reqtrack-backend/infrastructure/graph"
	"reqtrack-backend/internal/store"
)

// AuditHandler serves relationship-ledger reconstruction queries.
type AuditHandler struct {
	substrate graph.Substrate
	audit     *store.AuditLog
	logger    *zap.Logger
}

// NewAuditHandler creates the audit handler.
func NewAuditHandler(substrate graph.Substrate, audit *store.AuditLog, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{substrate: substrate, audit: audit, logger: logger}
}

// Mount registers the audit routes on r.
func (h *AuditHandler) Mount(r chi.Router) {
	r.Get("/targets/{targetId}", h.ForTarget)
	r.Get("/versions/{versionId}", h.ForVersion)
}

// ForTarget lists every ledger entry that ever linked something to or
// from the given target item, oldest first.
func (h *AuditHandler) ForTarget(w http.ResponseWriter, r *http.Request) {
	tx, err := h.substrate.Begin(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer tx.Rollback()

	entries, err := h.audit.EntriesForTarget(r.Context(), tx, chi.URLParam(r, "targetId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// ForVersion lists the ledger entries describing one source version's
// edge changes.
func (h *AuditHandler) ForVersion(w http.ResponseWriter, r *http.Request) {
	tx, err := h.substrate.Begin(r.Context(), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer tx.Rollback()

	entries, err := h.audit.EntriesForVersion(r.Context(), tx, chi.URLParam(r, "versionId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
