package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/juju/clock"
	"github.com/rs/xid"

	"github.com/sakif/bookburst/internal/apperror"
	"github.com/sakif/bookburst/internal/model"
	"github.com/sakif/bookburst/internal/notify"
	"github.com/sakif/bookburst/internal/repository"
)

// CatalogDeps are the collaborators of a CatalogService.
type CatalogDeps struct {
	Store    repository.KVStore
	Notifier notify.Notifier
	Clock    clock.Clock
	Logger   *slog.Logger
	Delays   Delays
}

// CatalogService owns the shelf and the reviews.
//
// Mutations wait out their simulated latency first and only then take the
// write lock, so two overlapping mutations both apply. Each one writes the
// whole collection to the store before it replaces the in-memory copy; a
// failed write leaves memory untouched.
//
// Everything handed out is a copy.
type CatalogService struct {
	store    repository.KVStore
	notifier notify.Notifier
	clock    clock.Clock
	logger   *slog.Logger
	delays   Delays
	lat      latency

	mu      sync.RWMutex
	books   []model.Book
	reviews []model.Review
}

// NewCatalogService loads the shelf and the reviews from the store.
// A missing or unreadable collection starts from the seed data.
func NewCatalogService(ctx context.Context, deps CatalogDeps) (*CatalogService, error) {
	s := &CatalogService{
		store:    deps.Store,
		notifier: deps.Notifier,
		clock:    deps.Clock,
		logger:   deps.Logger,
		delays:   deps.Delays,
		lat:      latency{clock: deps.Clock},
	}

	found, err := getJSON(ctx, s.store, s.logger, repository.KeyBooks, &s.books)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: loading books: %w", err)
	}
	if !found {
		s.books = SeedBooks()
	}

	found, err = getJSON(ctx, s.store, s.logger, repository.KeyReviews, &s.reviews)
	if err != nil {
		return nil, fmt.Errorf("service/catalog: loading reviews: %w", err)
	}
	if !found {
		s.reviews = SeedReviews()
	}

	s.logger.Info("catalog loaded",
		slog.Int("books", len(s.books)),
		slog.Int("reviews", len(s.reviews)),
	)
	return s, nil
}

// Loading reports whether any catalog mutation is in flight.
func (s *CatalogService) Loading() bool {
	return s.lat.loading()
}

// =========================================================================
// MUTATIONS
// =========================================================================

// AddBook appends a book to the shelf with a fresh id and the current time
// as AddedAt. Required-field checks belong to the caller.
func (s *CatalogService) AddBook(ctx context.Context, in model.NewBook) (model.Book, error) {
	ctx = context.WithoutCancel(ctx)
	defer s.lat.begin()()
	s.lat.wait(s.delays.Create)

	book := in.Book(xid.New().String(), s.clock.Now().UTC())

	s.mu.Lock()
	next := append(slices.Clone(s.books), book)
	err := s.saveBooks(ctx, next)
	s.mu.Unlock()

	if err != nil {
		s.notifier.Notify(ctx, notify.Error, "Failed to add book. Please try again.")
		return model.Book{}, err
	}

	s.logger.Info("book added", slog.String("bookID", book.ID), slog.String("title", book.Title))
	s.notifier.Notify(ctx, notify.Success, fmt.Sprintf("'%s' added to your bookshelf!", book.Title))
	return book.Clone(), nil
}

// UpdateBookStatus moves a book to another shelf.
//
// The first move to "finished" stamps FinishedAt. Later moves, to "finished"
// or away from it, keep the original stamp. An unknown id changes nothing.
func (s *CatalogService) UpdateBookStatus(ctx context.Context, bookID string, status model.BookStatus) error {
	ctx = context.WithoutCancel(ctx)
	if !status.Valid() {
		err := apperror.ValidationFailed("status", fmt.Sprintf("Unknown status %q", status))
		s.notifier.Notify(ctx, notify.Error, "Failed to update book status: "+err.Message)
		return err
	}

	defer s.lat.begin()()
	s.lat.wait(s.delays.Update)

	applied, err := s.updateBook(ctx, bookID, func(b *model.Book) {
		b.Status = status
		if status == model.StatusFinished && b.FinishedAt == nil {
			now := s.clock.Now().UTC()
			b.FinishedAt = &now
		}
	})
	switch {
	case err != nil:
		s.notifier.Notify(ctx, notify.Error, "Failed to update book status. Please try again.")
		return err
	case !applied:
		s.notifyUnknownBook(ctx, bookID)
		return nil
	}

	s.logger.Info("book status updated", slog.String("bookID", bookID), slog.String("status", string(status)))
	s.notifier.Notify(ctx, notify.Success, fmt.Sprintf("Book status updated to %s!", status))
	return nil
}

// UpdateBookRating sets a book's rating. 0 clears it. An unknown id changes nothing.
func (s *CatalogService) UpdateBookRating(ctx context.Context, bookID string, rating int) error {
	ctx = context.WithoutCancel(ctx)
	if rating < 0 || rating > model.MaxRating {
		err := apperror.ValidationFailed("rating", fmt.Sprintf("Rating must be between 0 and %d", model.MaxRating))
		s.notifier.Notify(ctx, notify.Error, "Failed to update book rating: "+err.Message)
		return err
	}

	defer s.lat.begin()()
	s.lat.wait(s.delays.Update)

	applied, err := s.updateBook(ctx, bookID, func(b *model.Book) {
		b.Rating = rating
	})
	switch {
	case err != nil:
		s.notifier.Notify(ctx, notify.Error, "Failed to update book rating. Please try again.")
		return err
	case !applied:
		s.notifyUnknownBook(ctx, bookID)
		return nil
	}

	s.logger.Info("book rating updated", slog.String("bookID", bookID), slog.Int("rating", rating))
	s.notifier.Notify(ctx, notify.Success, "Book rating updated!")
	return nil
}

// updateBook applies fn to a copy of the book with the given id and commits
// the result. It reports false, without writing, when no book matches.
func (s *CatalogService) updateBook(ctx context.Context, bookID string, fn func(*model.Book)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.books, func(b model.Book) bool { return b.ID == bookID })
	if i < 0 {
		return false, nil
	}

	next := slices.Clone(s.books)
	updated := next[i].Clone()
	fn(&updated)
	next[i] = updated

	if err := s.saveBooks(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

func (s *CatalogService) notifyUnknownBook(ctx context.Context, bookID string) {
	s.logger.Debug("update of unknown book ignored", slog.String("bookID", bookID))
	s.notifier.Notify(ctx, notify.Neutral, fmt.Sprintf("No book with id %s on your shelf", bookID))
}

// saveBooks writes next and installs it. Callers hold mu.
func (s *CatalogService) saveBooks(ctx context.Context, next []model.Book) error {
	if err := putJSON(ctx, s.store, repository.KeyBooks, next); err != nil {
		return fmt.Errorf("service/catalog: %w", err)
	}
	s.books = next
	return nil
}

// AddReview appends a review with a fresh id and the current time.
// Nothing stops a user from reviewing the same book twice; see HasReviewed.
func (s *CatalogService) AddReview(ctx context.Context, in model.NewReview) (model.Review, error) {
	ctx = context.WithoutCancel(ctx)
	if in.Rating < model.MinReviewRating || in.Rating > model.MaxRating {
		err := apperror.ValidationFailed("rating",
			fmt.Sprintf("Rating must be between %d and %d", model.MinReviewRating, model.MaxRating))
		s.notifier.Notify(ctx, notify.Error, "Failed to post review: "+err.Message)
		return model.Review{}, err
	}

	defer s.lat.begin()()
	s.lat.wait(s.delays.Create)

	review := in.Review(xid.New().String(), s.clock.Now().UTC())

	s.mu.Lock()
	next := append(slices.Clone(s.reviews), review)
	err := putJSON(ctx, s.store, repository.KeyReviews, next)
	if err == nil {
		s.reviews = next
	}
	s.mu.Unlock()

	if err != nil {
		s.notifier.Notify(ctx, notify.Error, "Failed to post review. Please try again.")
		return model.Review{}, fmt.Errorf("service/catalog: %w", err)
	}

	s.logger.Info("review posted",
		slog.String("reviewID", review.ID),
		slog.String("bookID", review.BookID),
		slog.String("userID", review.UserID),
	)
	s.notifier.Notify(ctx, notify.Success, "Review posted successfully!")
	return review, nil
}

// =========================================================================
// LOOKUPS
// =========================================================================

// Books returns the whole shelf in insertion order.
func (s *CatalogService) Books() []model.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneBooks(s.books, func(model.Book) bool { return true })
}

// GetBookByID returns the shelf book with the given id.
func (s *CatalogService) GetBookByID(bookID string) (model.Book, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.books {
		if b.ID == bookID {
			return b.Clone(), true
		}
	}
	return model.Book{}, false
}

// GetBooksByStatus returns the books on one shelf, in insertion order.
func (s *CatalogService) GetBooksByStatus(status model.BookStatus) []model.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneBooks(s.books, func(b model.Book) bool { return b.Status == status })
}

// Reviews returns every review in posting order.
func (s *CatalogService) Reviews() []model.Review {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterReviews(s.reviews, func(model.Review) bool { return true })
}

// GetReviewsForBook returns the reviews of one book in posting order.
func (s *CatalogService) GetReviewsForBook(bookID string) []model.Review {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterReviews(s.reviews, func(r model.Review) bool { return r.BookID == bookID })
}

// ReviewsByUsername returns the reviews posted under a username, ignoring case.
func (s *CatalogService) ReviewsByUsername(username string) []model.Review {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := model.IdentityKey(username)
	return filterReviews(s.reviews, func(r model.Review) bool { return model.IdentityKey(r.Username) == key })
}

// HasReviewed reports whether userID has already reviewed bookID.
func (s *CatalogService) HasReviewed(bookID, userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.ContainsFunc(s.reviews, func(r model.Review) bool {
		return r.BookID == bookID && r.UserID == userID
	})
}

// Search looks a query up in the external book index (a fixed catalogue),
// matching title, author or ISBN without regard to case. The results are
// inputs for AddBook.
func (s *CatalogService) Search(ctx context.Context, query string) ([]model.NewBook, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		err := apperror.ValidationFailed("q", "Please enter a search query")
		s.notifier.Notify(ctx, notify.Error, err.Message)
		return nil, err
	}

	defer s.lat.begin()()
	s.lat.wait(s.delays.Search)

	out := []model.NewBook{}
	for _, c := range searchCandidates() {
		if matchesQuery(c, query) {
			out = append(out, c)
		}
	}
	return out, nil
}

// matchesQuery reports whether query occurs in the title, author or ISBN,
// ignoring case. ISBN-10 check digits may be a lower- or upper-case x.
func matchesQuery(b model.NewBook, query string) bool {
	q := strings.ToLower(query)
	for _, field := range []string{b.Title, b.Author, b.ISBN} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func cloneBooks(books []model.Book, keep func(model.Book) bool) []model.Book {
	out := []model.Book{}
	for _, b := range books {
		if keep(b) {
			out = append(out, b.Clone())
		}
	}
	return out
}

func filterReviews(reviews []model.Review, keep func(model.Review) bool) []model.Review {
	out := []model.Review{}
	for _, r := range reviews {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
