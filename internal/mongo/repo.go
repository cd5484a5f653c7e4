// Package mongo stores headlines in a MongoDB collection.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/jdholdren/juicer/internal/juicer"
)

// Ensure Repo implements the Repository interface
var _ juicer.Repository = Repo{}

// Repo is the headline collection.
type Repo struct {
	coll *mongo.Collection
}

func New(coll *mongo.Collection) Repo {
	return Repo{coll: coll}
}

// Connect creates a client for the deployment at uri.
//
// The driver connects lazily, so an unreachable server is only noticed on
// first use. A malformed uri fails here.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetServerSelectionTimeout(10 * time.Second)

	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: error creating mongo client: %s", juicer.ErrConfig, err)
	}

	return cli, nil
}

func (r Repo) Ping(ctx context.Context) error {
	if err := r.coll.Database().Client().Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("error pinging mongo: %w", err)
	}

	return nil
}
