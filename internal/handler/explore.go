package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/bookburst/internal/apperror"
	"github.com/sakif/bookburst/internal/service"
)

// ExploreHandler serves the read-only pages computed from the catalog:
// explore tabs, the reading timeline, profiles and the add-book search.
type ExploreHandler struct {
	catalog *service.CatalogService
	logger  *slog.Logger
}

// NewExploreHandler creates an ExploreHandler.
func NewExploreHandler(catalog *service.CatalogService, logger *slog.Logger) *ExploreHandler {
	return &ExploreHandler{catalog: catalog, logger: logger}
}

// HandleTrending: GET /api/explore/trending
func (h *ExploreHandler) HandleTrending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, service.Trending(h.catalog.Books()))
}

// HandleTopRated: GET /api/explore/top-rated
func (h *ExploreHandler) HandleTopRated(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, service.TopRated(h.catalog.Books()))
}

// HandleLatestReviews: GET /api/explore/reviews
func (h *ExploreHandler) HandleLatestReviews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, service.LatestReviews(h.catalog.Reviews()))
}

// HandleTimeline groups finished books by month.
//
// HTTP: GET /api/timeline[?tz=Europe/Berlin]
//
// Months are calendar months in tz, so the browser can pass its own zone.
// The default is UTC.
func (h *ExploreHandler) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	loc := time.UTC
	if tz := r.URL.Query().Get("tz"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			writeError(w, h.logger, apperror.ValidationFailed("tz", "Unknown time zone "+tz))
			return
		}
		loc = l
	}
	writeJSON(w, http.StatusOK, service.Timeline(h.catalog.Books(), loc))
}

// HandleProfile: GET /api/profile/{username}
func (h *ExploreHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	profile := service.Profile(username, h.catalog.Books(), h.catalog.ReviewsByUsername(username))
	writeJSON(w, http.StatusOK, profile)
}

// HandleSearch looks books up for the add-book dialog.
//
// HTTP: GET /api/search?q=hobbit
func (h *ExploreHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	results, err := h.catalog.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}
