package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type indexSpec struct {
	collection string
	model      mongo.IndexModel
	// required indexes back an invariant no handler checks on its own.
	required bool
}

func indexName(model mongo.IndexModel) string {
	if model.Options != nil && model.Options.Name != nil {
		return *model.Options.Name
	}
	return ""
}

var indexSpecs = []indexSpec{
	{
		collection: "users",
		model: mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		},
	},
	{
		collection: "products",
		model: mongo.IndexModel{
			Keys:    bson.D{{Key: "vendor", Value: 1}},
			Options: options.Index().SetName("vendor_index"),
		},
	},
	{
		collection: "products",
		model: mongo.IndexModel{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("category_createdAt_index"),
		},
	},
	// one cart document per user
	{
		collection: "carts",
		model: mongo.IndexModel{
			Keys:    bson.D{{Key: "user", Value: 1}},
			Options: options.Index().SetName("user_unique").SetUnique(true),
		},
		required: true,
	},
	{
		collection: "orders",
		model: mongo.IndexModel{
			Keys:    bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("user_createdAt_index"),
		},
	},
	// one review per (user, vendor) pair
	{
		collection: "reviews",
		model: mongo.IndexModel{
			Keys:    bson.D{{Key: "user", Value: 1}, {Key: "vendor", Value: 1}},
			Options: options.Index().SetName("user_vendor_unique").SetUnique(true),
		},
		required: true,
	},
	{
		collection: "reviews",
		model: mongo.IndexModel{
			Keys:    bson.D{{Key: "vendor", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("vendor_createdAt_index"),
		},
	},
	{
		collection: "prescriptions",
		model: mongo.IndexModel{
			Keys:    bson.D{{Key: "user", Value: 1}, {Key: "product", Value: 1}},
			Options: options.Index().SetName("user_product_index"),
		},
	},
	{
		collection: "waitlist",
		model: mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}, {Key: "role", Value: 1}},
			Options: options.Index().SetName("email_role_unique").SetUnique(true),
		},
		required: true,
	},
}

// IndexErrors lists every index that could not be created.
type IndexErrors struct {
	Required []error
	Optional []error
}

func (e *IndexErrors) Error() string {
	return fmt.Sprintf("%d required and %d optional indexes failed: %v",
		len(e.Required), len(e.Optional), errors.Join(append(append([]error{}, e.Required...), e.Optional...)...))
}

// Fatal reports whether the service must not start.
func (e *IndexErrors) Fatal() bool {
	return len(e.Required) > 0
}

func ensureIndex(db *mongo.Database, spec indexSpec) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	name := indexName(spec.model)
	log.Printf("EnsureIndexes: creating %s.%s index", spec.collection, name)
	if _, err := db.Collection(spec.collection).Indexes().CreateOne(ctx, spec.model); err != nil {
		log.Printf("EnsureIndexes: %s.%s index error: %v", spec.collection, name, err)
		return fmt.Errorf("%s.%s: %w", spec.collection, name, err)
	}
	log.Printf("EnsureIndexes: %s.%s index created", spec.collection, name)
	return nil
}

// EnsureIndexes attempts every index even after a failure. The returned error,
// if any, is an *IndexErrors.
func EnsureIndexes(db *mongo.Database) error {
	return ensureIndexes(db, indexSpecs)
}

func ensureIndexes(db *mongo.Database, specs []indexSpec) error {
	failed := &IndexErrors{}
	for _, spec := range specs {
		err := ensureIndex(db, spec)
		switch {
		case err == nil:
		case spec.required:
			failed.Required = append(failed.Required, err)
		default:
			failed.Optional = append(failed.Optional, err)
		}
	}
	if len(failed.Required) == 0 && len(failed.Optional) == 0 {
		return nil
	}
	return failed
}
