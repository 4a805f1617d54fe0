package handlers

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"expiryeaze/internal/models"
)

// normalizeProductDocument tolerates legacy documents whose stock was stored as
// a float or string and derives the computed flags.
func normalizeProductDocument(raw bson.M) (models.Product, error) {
	if val, ok := raw["stock"]; ok {
		switch typed := val.(type) {
		case int32:
			raw["stock"] = int(typed)
		case int64:
			raw["stock"] = int(typed)
		case float64:
			raw["stock"] = int(typed)
		case int:
			raw["stock"] = typed
		default:
			raw["stock"] = 0
		}
	} else {
		raw["stock"] = 0
	}

	if val, ok := raw["requiresPrescription"]; ok {
		switch typed := val.(type) {
		case string:
			raw["requiresPrescription"] = typed == "true"
		case bool:
		default:
			raw["requiresPrescription"] = false
		}
	}

	if val, ok := raw["discountedPrice"]; ok && val == nil {
		delete(raw, "discountedPrice")
	}

	data, err := bson.Marshal(raw)
	if err != nil {
		return models.Product{}, err
	}

	var p models.Product
	if err := bson.Unmarshal(data, &p); err != nil {
		return models.Product{}, err
	}

	finalizeProduct(&p)
	return p, nil
}

func finalizeProduct(p *models.Product) {
	p.InStock = p.Stock > 0
	p.IsDiscounted = isProductDiscounted(p.Price, p.DiscountedPrice)
	if p.Images == nil {
		p.Images = models.StringList{}
	}
}

func decodeProducts(ctx context.Context, cursor *mongo.Cursor) ([]models.Product, error) {
	products := make([]models.Product, 0)

	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}

		product, err := normalizeProductDocument(raw)
		if err != nil {
			return nil, err
		}

		products = append(products, product)
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func findProduct(ctx context.Context, db *mongo.Database, filter bson.M) (models.Product, error) {
	var raw bson.M
	if err := db.Collection("products").FindOne(ctx, filter).Decode(&raw); err != nil {
		return models.Product{}, err
	}
	return normalizeProductDocument(raw)
}
