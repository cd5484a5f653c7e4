// Package juicer holds the domain types shared by the scraper, the store
// and the read side.
package juicer

import (
	"context"
	"fmt"
	"time"
)

// SourceURL is the page the scraper renders every cycle.
const SourceURL = "https://www.financialjuice.com/home"

// Retention is how long a headline lives in the store after its last sighting.
const Retention = 48 * time.Hour

type (
	// Headline is a single entry of the news ticker.
	Headline struct {
		ID          string    `bson:"_id" json:"_id"`
		Title       string    `bson:"title" json:"title"`
		DisplayTime string    `bson:"time" json:"time"` // The label shown on the page when first seen
		Timestamp   time.Time `bson:"timestamp" json:"timestamp"`
	}

	// Counts summarizes what a reconciliation did to the store.
	Counts struct {
		Inserted int
		Updated  int
	}

	// UpsertResult is the outcome of a single upsert.
	//
	// Both are false when only the timestamp moved forward.
	UpsertResult struct {
		Inserted bool
		Updated  bool
	}

	// Repository is the surface of the document store holding headlines.
	Repository interface {
		Ping(ctx context.Context) error
		// Makes sure the store expires headlines after [Retention].
		EnsureExpiry(ctx context.Context) error
		UpsertHeadline(ctx context.Context, h Headline, policy DisplayTimePolicy) (UpsertResult, error)
		LatestHeadlines(ctx context.Context, limit int) ([]Headline, error)
	}
)

// Add folds a single upsert into the counts.
func (c *Counts) Add(r UpsertResult) {
	switch {
	case r.Inserted:
		c.Inserted++
	case r.Updated:
		c.Updated++
	}
}

// DisplayTimePolicy decides what happens to the display time of a headline
// that is already stored.
type DisplayTimePolicy string

const (
	// DisplayTimePreserve keeps the label from the first sighting.
	DisplayTimePreserve DisplayTimePolicy = "preserve"
	// DisplayTimeRefresh overwrites the label on every sighting.
	DisplayTimeRefresh DisplayTimePolicy = "refresh"
)

// ParseDisplayTimePolicy validates a policy name coming from configuration.
func ParseDisplayTimePolicy(s string) (DisplayTimePolicy, error) {
	switch p := DisplayTimePolicy(s); p {
	case DisplayTimePreserve, DisplayTimeRefresh:
		return p, nil
	case "":
		return DisplayTimePreserve, nil
	default:
		return "", fmt.Errorf("%w: unknown display time policy %q", ErrConfig, s)
	}
}
