package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/bookburst/internal/apperror"
	"github.com/sakif/bookburst/internal/model"
	"github.com/sakif/bookburst/internal/service"
)

// BookHandler serves the shelf and the reviews attached to shelf books.
//
// Reads are public. Writes require a session; the review author is taken
// from the session, never from the request body.
type BookHandler struct {
	catalog  *service.CatalogService
	sessions *service.SessionService
	logger   *slog.Logger
}

// NewBookHandler creates a BookHandler.
func NewBookHandler(catalog *service.CatalogService, sessions *service.SessionService, logger *slog.Logger) *BookHandler {
	return &BookHandler{catalog: catalog, sessions: sessions, logger: logger}
}

// BookUpdateResponse reports the outcome of a status or rating change.
// Updated is false, and Book is nil, when the id matched no book.
type BookUpdateResponse struct {
	Updated bool        `json:"updated"`
	Book    *model.Book `json:"book"`
}

// BookReviewsResponse lists a book's reviews. HasReviewed tells the page
// whether to offer the review form to the signed-in user.
type BookReviewsResponse struct {
	Reviews     []model.Review `json:"reviews"`
	HasReviewed bool           `json:"hasReviewed"`
}

type statusRequest struct {
	Status model.BookStatus `json:"status"`
}

type ratingRequest struct {
	Rating int `json:"rating"`
}

type reviewRequest struct {
	Rating         int    `json:"rating"`
	Content        string `json:"content"`
	WouldRecommend bool   `json:"wouldRecommend"`
}

// HandleList returns the shelf, optionally one status only.
//
// HTTP: GET /api/books[?status=reading|finished|wanttoread]
func (h *BookHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	status := model.BookStatus(r.URL.Query().Get("status"))
	if status == "" {
		writeJSON(w, http.StatusOK, h.catalog.Books())
		return
	}
	if !status.Valid() {
		writeError(w, h.logger, apperror.ValidationFailed("status", "Unknown status "+string(status)))
		return
	}
	writeJSON(w, http.StatusOK, h.catalog.GetBooksByStatus(status))
}

// HandleCounts returns the per-tab book counts.
//
// HTTP: GET /api/books/counts
func (h *BookHandler) HandleCounts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, service.CountShelves(h.catalog.Books()))
}

// HandleGet returns one book.
//
// HTTP: GET /api/books/{id}
func (h *BookHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	book, ok := h.catalog.GetBookByID(id)
	if !ok {
		writeError(w, h.logger, apperror.NotFound("book", id))
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// HandleCreate adds a book to the shelf.
//
// HTTP: POST /api/books
// Auth: Required
func (h *BookHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in model.NewBook
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := validateNewBook(&in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	book, err := h.catalog.AddBook(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

// validateNewBook applies the add-book form rules and trims the text fields.
func validateNewBook(in *model.NewBook) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	switch {
	case in.Title == "":
		return apperror.ValidationFailed("title", "Title is required")
	case in.Author == "":
		return apperror.ValidationFailed("author", "Author is required")
	case in.Status != "" && !in.Status.Valid():
		return apperror.ValidationFailed("status", "Unknown status "+string(in.Status))
	case in.Rating < 0 || in.Rating > model.MaxRating:
		return apperror.ValidationFailed("rating", "Rating must be between 0 and 5")
	case in.PageCount < 0:
		return apperror.ValidationFailed("pageCount", "Page count cannot be negative")
	}
	if in.Genres == nil {
		in.Genres = []string{}
	}
	return nil
}

// HandleUpdateStatus moves a book to another shelf.
//
// HTTP: PUT /api/books/{id}/status
// Auth: Required
func (h *BookHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.catalog.UpdateBookStatus(r.Context(), id, req.Status); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.writeUpdated(w, id)
}

// HandleUpdateRating rates a book, 0 to clear.
//
// HTTP: PUT /api/books/{id}/rating
// Auth: Required
func (h *BookHandler) HandleUpdateRating(w http.ResponseWriter, r *http.Request) {
	var req ratingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.catalog.UpdateBookRating(r.Context(), id, req.Rating); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.writeUpdated(w, id)
}

// writeUpdated answers a status or rating change. An unknown id is not an
// error: the update was a no-op.
func (h *BookHandler) writeUpdated(w http.ResponseWriter, id string) {
	book, ok := h.catalog.GetBookByID(id)
	if !ok {
		writeJSON(w, http.StatusOK, BookUpdateResponse{})
		return
	}
	writeJSON(w, http.StatusOK, BookUpdateResponse{Updated: true, Book: &book})
}

// HandleListReviews returns the reviews of one book.
//
// HTTP: GET /api/books/{id}/reviews
func (h *BookHandler) HandleListReviews(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	resp := BookReviewsResponse{Reviews: h.catalog.GetReviewsForBook(id)}
	if me, ok := h.sessions.Current(); ok {
		resp.HasReviewed = h.catalog.HasReviewed(id, me.ID)
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleCreateReview posts a review as the signed-in user.
//
// HTTP: POST /api/books/{id}/reviews
// Auth: Required
func (h *BookHandler) HandleCreateReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	id := chi.URLParam(r, "id")
	if _, ok := h.catalog.GetBookByID(id); !ok {
		writeError(w, h.logger, apperror.NotFound("book", id))
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(w, h.logger, apperror.ValidationFailed("content", "Review content is required"))
		return
	}

	me, ok := h.sessions.Current()
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized("You must be logged in"))
		return
	}

	review, err := h.catalog.AddReview(r.Context(), model.NewReview{
		BookID:         id,
		UserID:         me.ID,
		Username:       me.Username,
		Rating:         req.Rating,
		Content:        content,
		WouldRecommend: req.WouldRecommend,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}
