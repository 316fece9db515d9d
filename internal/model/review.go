package model

import "time"

// Review is a user's verdict on a shelf book. Reviews are immutable once posted.
//
// UserID and Username are a snapshot of the author at posting time; a later
// rename does not rewrite old reviews.
type Review struct {
	ID             string    `json:"id"`
	BookID         string    `json:"bookId"`
	UserID         string    `json:"userId"`
	Username       string    `json:"username"`
	Rating         int       `json:"rating"`
	Content        string    `json:"content"`
	WouldRecommend bool      `json:"wouldRecommend"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NewReview is a Review without its generated ID and CreatedAt.
type NewReview struct {
	BookID         string `json:"bookId"`
	UserID         string `json:"userId"`
	Username       string `json:"username"`
	Rating         int    `json:"rating"`
	Content        string `json:"content"`
	WouldRecommend bool   `json:"wouldRecommend"`
}

// Review builds the full record from the input plus the generated fields.
func (n NewReview) Review(id string, createdAt time.Time) Review {
	return Review{
		ID:             id,
		BookID:         n.BookID,
		UserID:         n.UserID,
		Username:       n.Username,
		Rating:         n.Rating,
		Content:        n.Content,
		WouldRecommend: n.WouldRecommend,
		CreatedAt:      createdAt,
	}
}
