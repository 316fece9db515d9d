package handler

import (
	"net/http"

	"github.com/sakif/bookburst/internal/model"
	"github.com/sakif/bookburst/internal/notify"
	"github.com/sakif/bookburst/internal/service"
)

// StatusHandler serves the polling endpoints the front end uses for its
// spinners and toasts.
type StatusHandler struct {
	sessions *service.SessionService
	catalog  *service.CatalogService
	feed     *notify.Feed
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(sessions *service.SessionService, catalog *service.CatalogService, feed *notify.Feed) *StatusHandler {
	return &StatusHandler{sessions: sessions, catalog: catalog, feed: feed}
}

// StatusResponse is a snapshot of the loading flags and the active identity.
type StatusResponse struct {
	SessionLoading bool            `json:"sessionLoading"`
	CatalogLoading bool            `json:"catalogLoading"`
	User           *model.Identity `json:"user"`
}

// HandleStatus: GET /api/status
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		SessionLoading: h.sessions.Loading(),
		CatalogLoading: h.catalog.Loading(),
	}
	if me, ok := h.sessions.Current(); ok {
		resp.User = &me
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleNotifications returns and clears the pending notifications, oldest first.
//
// HTTP: GET /api/notifications
func (h *StatusHandler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.feed.Drain())
}
