package model

import (
	"slices"
	"time"
)

// BookStatus is where a book sits on the shelf.
// The empty value means the book hasn't been categorized yet.
type BookStatus string

const (
	StatusReading    BookStatus = "reading"
	StatusFinished   BookStatus = "finished"
	StatusWantToRead BookStatus = "wanttoread"
)

// Statuses lists the shelf tabs in display order.
var Statuses = []BookStatus{StatusReading, StatusFinished, StatusWantToRead}

// Valid reports whether s is one of the three shelf statuses.
func (s BookStatus) Valid() bool {
	return slices.Contains(Statuses, s)
}

// Rating bounds. A book rating of 0 means "unrated"; a review must carry 1-5.
const (
	MaxRating       = 5
	MinReviewRating = 1
)

// Book is one entry on the user's shelf.
//
// The JSON field names are the storage format of the bookburst_userBooks key,
// so renaming a tag breaks previously persisted shelves.
//
// FinishedAt is stamped the first time the status becomes "finished" and is
// never cleared afterwards, even if the status moves away from "finished".
type Book struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Author        string     `json:"author"`
	Cover         string     `json:"cover"`
	Description   string     `json:"description"`
	PublishedDate string     `json:"publishedDate,omitempty"`
	ISBN          string     `json:"isbn,omitempty"`
	Genres        []string   `json:"genres"`
	PageCount     int        `json:"pageCount,omitempty"`
	Status        BookStatus `json:"status,omitempty"`
	Rating        int        `json:"rating,omitempty"`
	AddedAt       time.Time  `json:"addedAt"`
	FinishedAt    *time.Time `json:"finishedAt,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

// Clone returns a deep copy so callers can't reach into the service's slice.
func (b Book) Clone() Book {
	b.Genres = slices.Clone(b.Genres)
	if b.FinishedAt != nil {
		t := *b.FinishedAt
		b.FinishedAt = &t
	}
	return b
}

// NewBook is the caller-supplied part of a Book: everything except the
// generated ID and AddedAt timestamp.
type NewBook struct {
	Title         string     `json:"title"`
	Author        string     `json:"author"`
	Cover         string     `json:"cover"`
	Description   string     `json:"description"`
	PublishedDate string     `json:"publishedDate,omitempty"`
	ISBN          string     `json:"isbn,omitempty"`
	Genres        []string   `json:"genres"`
	PageCount     int        `json:"pageCount,omitempty"`
	Status        BookStatus `json:"status,omitempty"`
	Rating        int        `json:"rating,omitempty"`
	FinishedAt    *time.Time `json:"finishedAt,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

// Book builds the full record from the input plus the generated fields.
func (n NewBook) Book(id string, addedAt time.Time) Book {
	b := Book{
		ID:            id,
		Title:         n.Title,
		Author:        n.Author,
		Cover:         n.Cover,
		Description:   n.Description,
		PublishedDate: n.PublishedDate,
		ISBN:          n.ISBN,
		Genres:        n.Genres,
		PageCount:     n.PageCount,
		Status:        n.Status,
		Rating:        n.Rating,
		AddedAt:       addedAt,
		FinishedAt:    n.FinishedAt,
		Notes:         n.Notes,
	}
	return b.Clone()
}
