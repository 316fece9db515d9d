package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/bookburst/internal/auth"
	"github.com/sakif/bookburst/internal/model"
	"github.com/sakif/bookburst/internal/repository"
)

// Demo account created on an empty identity store.
const (
	DemoEmail    = "demo@bookburst.com"
	DemoUsername = "bookworm"
	DemoPassword = "password123"
)

// SeedIdentity creates the demo account when no identity exists yet.
// It is a no-op on every later start.
func SeedIdentity(ctx context.Context, users repository.UserRepository, passwords *auth.PasswordService, logger *slog.Logger) error {
	n, err := users.Count(ctx)
	if err != nil {
		return fmt.Errorf("service/seed: counting users: %w", err)
	}
	if n > 0 {
		return nil
	}

	hash, err := passwords.Hash(DemoPassword)
	if err != nil {
		return fmt.Errorf("service/seed: hashing demo password: %w", err)
	}
	user := &model.User{Email: DemoEmail, Username: DemoUsername, PasswordHash: hash}
	if err := users.Create(ctx, user); err != nil {
		return fmt.Errorf("service/seed: creating demo user: %w", err)
	}

	logger.Info("seeded demo identity",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)
	return nil
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func timePtr(s string) *time.Time {
	t := mustTime(s)
	return &t
}

// SeedBooks is the shelf a fresh install starts with.
// It returns a new slice on every call.
func SeedBooks() []model.Book {
	return []model.Book{
		{
			ID:            "1",
			Title:         "To Kill a Mockingbird",
			Author:        "Harper Lee",
			Cover:         "https://m.media-amazon.com/images/I/81aY1lxk+9L._SL1500_.jpg",
			Description:   "A novel by Harper Lee published in 1960. It was immediately successful, winning the Pulitzer Prize, and has become a classic of modern American literature.",
			PublishedDate: "1960-07-11",
			ISBN:          "9780446310789",
			Genres:        []string{"Fiction", "Classic", "Historical"},
			PageCount:     336,
			Status:        model.StatusReading,
			AddedAt:       mustTime("2023-05-15T14:22:10Z"),
			Notes:         "Started reading for book club",
		},
		{
			ID:            "2",
			Title:         "1984",
			Author:        "George Orwell",
			Cover:         "https://m.media-amazon.com/images/I/71kxa1-0mfL._SL1500_.jpg",
			Description:   "The book is set in 1984 in Oceania, one of three perpetually warring totalitarian states. Winston Smith is a low-ranking member of the ruling Party in London, in the nation of Oceania.",
			PublishedDate: "1949-06-08",
			ISBN:          "9780451524935",
			Genres:        []string{"Fiction", "Dystopian", "Classic"},
			PageCount:     328,
			Status:        model.StatusFinished,
			Rating:        5,
			AddedAt:       mustTime("2023-02-10T08:15:32Z"),
			FinishedAt:    timePtr("2023-03-15T21:45:12Z"),
		},
		{
			ID:            "3",
			Title:         "The Great Gatsby",
			Author:        "F. Scott Fitzgerald",
			Cover:         "https://m.media-amazon.com/images/I/71FTb9X6wsL._SL1500_.jpg",
			Description:   "The Great Gatsby is a 1925 novel by American writer F. Scott Fitzgerald. Set in the Jazz Age on Long Island, the novel depicts narrator Nick Carraway's interactions with mysterious millionaire Jay Gatsby.",
			PublishedDate: "1925-04-10",
			ISBN:          "9780743273565",
			Genres:        []string{"Fiction", "Classic"},
			PageCount:     180,
			Status:        model.StatusWantToRead,
			AddedAt:       mustTime("2023-04-22T16:08:45Z"),
		},
		{
			ID:            "4",
			Title:         "Brave New World",
			Author:        "Aldous Huxley",
			Cover:         "https://m.media-amazon.com/images/I/81zE42gT3xL._SL1500_.jpg",
			Description:   "Brave New World is a dystopian novel by English author Aldous Huxley, written in 1931 and published in 1932.",
			PublishedDate: "1932-01-01",
			ISBN:          "9780060850524",
			Genres:        []string{"Fiction", "Science Fiction", "Dystopian"},
			PageCount:     288,
			Status:        model.StatusFinished,
			Rating:        4,
			AddedAt:       mustTime("2022-11-05T10:32:18Z"),
			FinishedAt:    timePtr("2022-12-20T22:15:42Z"),
		},
		{
			ID:            "5",
			Title:         "Pride and Prejudice",
			Author:        "Jane Austen",
			Cover:         "https://m.media-amazon.com/images/I/71Q1tPupKjL._SL1360_.jpg",
			Description:   "Pride and Prejudice is an 1813 romantic novel of manners written by Jane Austen.",
			PublishedDate: "1813-01-28",
			ISBN:          "9780141439518",
			Genres:        []string{"Fiction", "Classic", "Romance"},
			PageCount:     432,
			Status:        model.StatusWantToRead,
			AddedAt:       mustTime("2023-06-02T09:12:35Z"),
		},
	}
}

// SeedReviews are the reviews a fresh install starts with. They belong to
// the demo account and reference seed books 2 and 4.
func SeedReviews() []model.Review {
	return []model.Review{
		{
			ID:             "1",
			BookID:         "2",
			UserID:         "1",
			Username:       DemoUsername,
			Rating:         5,
			Content:        "One of the most prophetic and insightful books about society I've ever read. Orwell's vision of a totalitarian future is still relevant today.",
			WouldRecommend: true,
			CreatedAt:      mustTime("2023-03-15T22:10:05Z"),
		},
		{
			ID:             "2",
			BookID:         "4",
			UserID:         "1",
			Username:       DemoUsername,
			Rating:         4,
			Content:        "A fascinating dystopian vision that explores themes of technology, social engineering, and the cost of perceived utopia. The comparison with Orwell's 1984 is inevitable, but Huxley's vision is unique in that it shows how people can be controlled through pleasure rather than pain.",
			WouldRecommend: true,
			CreatedAt:      mustTime("2022-12-21T08:45:22Z"),
		},
	}
}

// searchCandidates stands in for an external book lookup.
func searchCandidates() []model.NewBook {
	return []model.NewBook{
		{
			Title:         "The Catcher in the Rye",
			Author:        "J.D. Salinger",
			Cover:         "https://m.media-amazon.com/images/I/81OthjkJBuL._SL1500_.jpg",
			Description:   "The Catcher in the Rye is an American novel by J. D. Salinger that was partially published in serial form 1945–46 before being novelized in 1951.",
			Genres:        []string{"Fiction", "Coming-of-age"},
			PublishedDate: "1951-07-16",
			PageCount:     277,
			ISBN:          "9780316769174",
		},
		{
			Title:         "The Hobbit",
			Author:        "J.R.R. Tolkien",
			Cover:         "https://m.media-amazon.com/images/I/710+HcoP38L._SL1500_.jpg",
			Description:   "The Hobbit, or There and Back Again is a children's fantasy novel by English author J. R. R. Tolkien.",
			Genres:        []string{"Fantasy", "Adventure"},
			PublishedDate: "1937-09-21",
			PageCount:     310,
			ISBN:          "9780547928227",
		},
	}
}
