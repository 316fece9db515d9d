package service

import (
	"cmp"
	"slices"
	"time"

	"github.com/sakif/bookburst/internal/model"
)

// Derived views. These are pure functions over snapshots returned by
// CatalogService, so handlers can combine them freely.

// ExploreLimit caps the trending and top-rated lists.
const ExploreLimit = 10

// Trending is the most recently added books, newest first.
func Trending(books []model.Book) []model.Book {
	out := slices.Clone(books)
	slices.SortStableFunc(out, func(a, b model.Book) int {
		return b.AddedAt.Compare(a.AddedAt)
	})
	return capList(out, ExploreLimit)
}

// TopRated is the rated books, best first. Books rated the same keep their
// shelf order.
func TopRated(books []model.Book) []model.Book {
	out := slices.DeleteFunc(slices.Clone(books), func(b model.Book) bool { return b.Rating <= 0 })
	slices.SortStableFunc(out, func(a, b model.Book) int {
		return cmp.Compare(b.Rating, a.Rating)
	})
	return capList(out, ExploreLimit)
}

// LatestReviews is every review, newest first.
func LatestReviews(reviews []model.Review) []model.Review {
	out := slices.Clone(reviews)
	slices.SortStableFunc(out, func(a, b model.Review) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if out == nil {
		out = []model.Review{}
	}
	return out
}

func capList[T any](s []T, n int) []T {
	if s == nil {
		return []T{}
	}
	if len(s) > n {
		return s[:n]
	}
	return s
}

// TimelineGroup is one calendar month of finished books.
type TimelineGroup struct {
	Label string       `json:"label"` // "January 2006"
	Month time.Time    `json:"month"` // first instant of the month
	Books []model.Book `json:"books"`
}

// Timeline groups the finished books that carry a FinishedAt by the month
// they were finished in, as seen in loc. Groups and the books inside each
// group run most recent first.
func Timeline(books []model.Book, loc *time.Location) []TimelineGroup {
	if loc == nil {
		loc = time.UTC
	}

	var finished []model.Book
	for _, b := range books {
		if b.Status == model.StatusFinished && b.FinishedAt != nil {
			finished = append(finished, b)
		}
	}
	slices.SortStableFunc(finished, func(a, b model.Book) int {
		return b.FinishedAt.Compare(*a.FinishedAt)
	})

	groups := []TimelineGroup{}
	for _, b := range finished {
		t := b.FinishedAt.In(loc)
		month := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
		// Books are sorted, so a book either joins the last group or opens a new one.
		if n := len(groups); n > 0 && groups[n-1].Month.Equal(month) {
			groups[n-1].Books = append(groups[n-1].Books, b)
			continue
		}
		groups = append(groups, TimelineGroup{
			Label: month.Format("January 2006"),
			Month: month,
			Books: []model.Book{b},
		})
	}
	return groups
}

// ProfileView is a user's public page: the shelf split by status plus the
// reviews posted under that username.
//
// The application tracks a single shelf, so every profile shows it.
type ProfileView struct {
	Username   string         `json:"username"`
	Reading    []model.Book   `json:"reading"`
	Finished   []model.Book   `json:"finished"`
	WantToRead []model.Book   `json:"wantToRead"`
	Reviews    []model.Review `json:"reviews"`
}

// Profile builds the profile page of username from the shelf and the
// reviews posted under that name (CatalogService.ReviewsByUsername).
func Profile(username string, books []model.Book, reviews []model.Review) ProfileView {
	p := ProfileView{
		Username:   username,
		Reading:    []model.Book{},
		Finished:   []model.Book{},
		WantToRead: []model.Book{},
		Reviews:    []model.Review{},
	}
	for _, b := range books {
		switch b.Status {
		case model.StatusReading:
			p.Reading = append(p.Reading, b)
		case model.StatusFinished:
			p.Finished = append(p.Finished, b)
		case model.StatusWantToRead:
			p.WantToRead = append(p.WantToRead, b)
		}
	}
	p.Reviews = append(p.Reviews, reviews...)
	return p
}

// ShelfCounts is the number of books on each shelf tab. Books without a
// status are only counted in All.
type ShelfCounts struct {
	All        int `json:"all"`
	Reading    int `json:"reading"`
	Finished   int `json:"finished"`
	WantToRead int `json:"wanttoread"`
}

// CountShelves tallies books per status.
func CountShelves(books []model.Book) ShelfCounts {
	c := ShelfCounts{All: len(books)}
	for _, b := range books {
		switch b.Status {
		case model.StatusReading:
			c.Reading++
		case model.StatusFinished:
			c.Finished++
		case model.StatusWantToRead:
			c.WantToRead++
		}
	}
	return c
}
