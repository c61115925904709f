// Package mongo implements archive.Writer as one BSON document per plan in
// a capped collection (spec.md §6's alternative archival backend),
// mirroring the teacher's registry/store/mongo durability pattern adapted
// to the v2 driver.
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/fractalhq/orcha/archive"
)

// Writer persists archive.Records into a MongoDB collection.
type Writer struct {
	collection *mongo.Collection
}

var _ archive.Writer = (*Writer)(nil)

// New builds a Writer over an already-connected collection. The caller
// owns the collection's lifecycle (and, if desired, its capped-ness — see
// EnsureCappedCollection).
func New(collection *mongo.Collection) *Writer {
	return &Writer{collection: collection}
}

// WritePlan inserts rec as a single document, keyed by RunID.
func (w *Writer) WritePlan(ctx context.Context, rec archive.Record) error {
	if _, err := w.collection.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("archive/mongo: insert plan %s: %w", rec.RunID, err)
	}
	return nil
}

// EnsureCappedCollection creates name as a capped collection bounded by
// sizeBytes if it does not already exist, and returns a handle to it.
// Capping bounds the archive's own storage growth independently of the
// engine's LoopBudget (spec.md §5) bounding its execution.
func EnsureCappedCollection(ctx context.Context, db *mongo.Database, name string, sizeBytes int64) (*mongo.Collection, error) {
	names, err := db.ListCollectionNames(ctx, map[string]any{"name": name})
	if err != nil {
		return nil, fmt.Errorf("archive/mongo: list collections: %w", err)
	}
	if len(names) == 0 {
		opts := options.CreateCollection().SetCapped(true).SetSizeInBytes(sizeBytes)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return nil, fmt.Errorf("archive/mongo: create capped collection %s: %w", name, err)
		}
	}
	return db.Collection(name), nil
}
