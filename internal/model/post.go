package model

import "time"

// Post is a community-submitted event listing. Date is YYYY-MM-DD and Time is
// HH:MM; both are kept as the submitted strings since posts are unverified.
type Post struct {
	ID         string    `json:"id"`
	EventTitle string    `json:"eventTitle"`
	ArtistName string    `json:"artistName"`
	Genre      string    `json:"genre"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	Venue      string    `json:"venue"`
	Address    string    `json:"address"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	ZipCode    string    `json:"zipCode"`
	CreatedAt  time.Time `json:"createdAt"`
}

// PostStats is a post together with its vote tally.
type PostStats struct {
	Post
	Likes    int     `json:"likes"`
	Dislikes int     `json:"dislikes"`
	Ratio    float64 `json:"ratio"`
}

// Ratio is likes / (likes + dislikes + 1). It is 0 with no votes and always
// below 1, so a post needs several votes before it can rank near the top.
func Ratio(likes, dislikes int) float64 {
	return float64(likes) / float64(likes+dislikes+1)
}

// NewPostStats computes the derived ratio for p.
func NewPostStats(p Post, likes, dislikes int) PostStats {
	return PostStats{Post: p, Likes: likes, Dislikes: dislikes, Ratio: Ratio(likes, dislikes)}
}
