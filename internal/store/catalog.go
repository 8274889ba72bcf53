package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CachedResource is a property resource list snapshot cached for a remote
// MUID, so a reconnecting client's ResourceList doesn't have to be
// re-fetched before other property reads can be attempted against it.
type CachedResource struct {
	MUID      uint32    `bson:"muid"`
	Resource  string    `bson:"resource"`
	Body      []byte    `bson:"body"`
	MediaType string    `bson:"media_type"`
	CachedAt  time.Time `bson:"cached_at"`
}

// CatalogCache is a MongoDB-backed cache of remote property catalogs.
type CatalogCache struct {
	coll *mongo.Collection
}

// OpenCatalogCache connects to mongoURI and selects database/collection
// for property catalog caching.
func OpenCatalogCache(mongoURI, database, collection string) (*CatalogCache, error) {
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, err
	}
	return &CatalogCache{coll: client.Database(database).Collection(collection)}, nil
}

// Put stores or refreshes the cached body for (muid, resource).
func (c *CatalogCache) Put(ctx context.Context, entry CachedResource) error {
	entry.CachedAt = time.Now()
	_, err := c.coll.UpdateOne(ctx,
		bson.M{"muid": entry.MUID, "resource": entry.Resource},
		bson.M{"$set": entry},
		options.Update().SetUpsert(true),
	)
	return err
}

// Get returns the cached entry for (muid, resource), if present and not
// older than maxAge.
func (c *CatalogCache) Get(ctx context.Context, muid uint32, resource string, maxAge time.Duration) (CachedResource, bool, error) {
	var entry CachedResource
	err := c.coll.FindOne(ctx, bson.M{"muid": muid, "resource": resource}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return CachedResource{}, false, nil
	}
	if err != nil {
		return CachedResource{}, false, err
	}
	if maxAge > 0 && time.Since(entry.CachedAt) > maxAge {
		return CachedResource{}, false, nil
	}
	return entry, true, nil
}

// Purge drops every cached resource for muid.
func (c *CatalogCache) Purge(ctx context.Context, muid uint32) error {
	_, err := c.coll.DeleteMany(ctx, bson.M{"muid": muid})
	return err
}
