package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Dimasikck/teacher-tool/internal/application"
)

type syncService interface {
	Sync(ctx context.Context, ownerID string) (application.SyncSummary, error)
	SyncStatus(ctx context.Context, ownerID string) (application.SyncStatus, error)
}

// SyncHandler exposes the calendar to journal reconciliation.
type SyncHandler struct {
	service   syncService
	responder responder
}

func NewSyncHandler(service syncService, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{service: service, responder: newResponder(logger)}
}

func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ownerID, _ := OwnerIDFromContext(r.Context())
	summary, err := h.service.Sync(r.Context(), ownerID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, syncResponse{
		CreatedCount:       summary.CreatedCount,
		AlreadySyncedCount: summary.AlreadySyncedCount,
	})
}

func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ownerID, _ := OwnerIDFromContext(r.Context())
	status, err := h.service.SyncStatus(r.Context(), ownerID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, syncStatusResponse{
		CalendarEventCount: status.CalendarEventCount,
		JournalLessonCount: status.JournalLessonCount,
		MissingCount:       status.MissingCount,
		InSync:             status.InSync,
	})
}

type syncResponse struct {
	CreatedCount       int `json:"created_count"`
	AlreadySyncedCount int `json:"already_synced_count"`
}

type syncStatusResponse struct {
	CalendarEventCount int  `json:"calendar_event_count"`
	JournalLessonCount int  `json:"journal_lesson_count"`
	MissingCount       int  `json:"missing_count"`
	InSync             bool `json:"in_sync"`
}
