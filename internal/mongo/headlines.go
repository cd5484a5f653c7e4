package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jdholdren/juicer/internal/juicer"
)

const (
	fieldTitle     = "title"
	fieldTime      = "time"
	fieldTimestamp = "timestamp"
)

// EnsureExpiry creates the TTL index on the timestamp. Creating it again is a no-op.
func (r Repo) EnsureExpiry(ctx context.Context) error {
	model := mongo.IndexModel{
		Keys:    bson.D{{Key: fieldTimestamp, Value: 1}},
		Options: expiryIndexOptions(),
	}
	if _, err := r.coll.Indexes().CreateOne(ctx, model); err != nil {
		return fmt.Errorf("error creating expiry index: %w", err)
	}

	return nil
}

func expiryIndexOptions() *options.IndexOptions {
	return options.Index().SetExpireAfterSeconds(int32(juicer.Retention.Seconds()))
}

// UpsertHeadline inserts the headline or refreshes the stored one in a single
// atomic operation.
//
// The document as it was before the update is used to tell whether anything
// besides the timestamp changed.
func (r Repo) UpsertHeadline(ctx context.Context, h juicer.Headline, policy juicer.DisplayTimePolicy) (juicer.UpsertResult, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.Before).
		SetProjection(bson.D{{Key: fieldTitle, Value: 1}, {Key: fieldTime, Value: 1}})

	var before juicer.Headline
	err := r.coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: h.ID}}, upsertUpdate(h, policy), opts).Decode(&before)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return juicer.UpsertResult{Inserted: true}, nil
	}
	if err != nil {
		return juicer.UpsertResult{}, fmt.Errorf("error upserting headline %s: %w", h.ID, err)
	}

	changed := before.Title != h.Title
	if policy == juicer.DisplayTimeRefresh && before.DisplayTime != h.DisplayTime {
		changed = true
	}

	return juicer.UpsertResult{Updated: changed}, nil
}

// Builds the update document for an upsert.
//
// The id is only ever part of the filter so it's never rewritten.
func upsertUpdate(h juicer.Headline, policy juicer.DisplayTimePolicy) bson.D {
	set := bson.D{
		{Key: fieldTitle, Value: h.Title},
		{Key: fieldTimestamp, Value: h.Timestamp},
	}
	if policy == juicer.DisplayTimeRefresh {
		set = append(set, bson.E{Key: fieldTime, Value: h.DisplayTime})
		return bson.D{{Key: "$set", Value: set}}
	}

	return bson.D{
		{Key: "$set", Value: set},
		{Key: "$setOnInsert", Value: bson.D{{Key: fieldTime, Value: h.DisplayTime}}},
	}
}

// LatestHeadlines fetches the most recently seen headlines, newest first.
func (r Repo) LatestHeadlines(ctx context.Context, limit int) ([]juicer.Headline, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: fieldTimestamp, Value: -1}}).
		SetLimit(int64(limit))

	cur, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("error finding latest headlines: %w", err)
	}

	headlines := []juicer.Headline{}
	if err := cur.All(ctx, &headlines); err != nil {
		return nil, fmt.Errorf("error decoding latest headlines: %w", err)
	}

	return headlines, nil
}
