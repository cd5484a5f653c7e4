// Package v1 holds the read API's response bodies.
package v1

import "time"

// Headline is a stored headline as clients see it.
type Headline struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	DisplayTime string    `json:"time"`
	Timestamp   time.Time `json:"timestamp"`
}

// ListNewsResponse is the body of GET /api/news.
type ListNewsResponse struct {
	News []Headline `json:"news"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
