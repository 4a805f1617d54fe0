package handlers

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNormalizeProductDocument(t *testing.T) {
	t.Run("legacy float stock and string flags", func(t *testing.T) {
		p, err := normalizeProductDocument(bson.M{
			"_id":                  primitive.NewObjectID(),
			"name":                 "Paracetamol",
			"price":                10.0,
			"stock":                float64(7),
			"requiresPrescription": "true",
			"images":               "  uploads/products/a.png ",
		})
		if err != nil {
			t.Fatalf("normalize: %v", err)
		}
		if p.Stock != 7 || !p.InStock {
			t.Fatalf("expected stock 7 in stock, got %d/%v", p.Stock, p.InStock)
		}
		if !p.RequiresPrescription {
			t.Fatalf("expected prescription flag")
		}
		if len(p.Images) != 1 || p.Images[0] != "uploads/products/a.png" {
			t.Fatalf("unexpected images %v", p.Images)
		}
	})

	t.Run("missing stock means out of stock", func(t *testing.T) {
		p, err := normalizeProductDocument(bson.M{"name": "Bread", "price": 2.0})
		if err != nil {
			t.Fatalf("normalize: %v", err)
		}
		if p.Stock != 0 || p.InStock {
			t.Fatalf("expected out of stock, got %d/%v", p.Stock, p.InStock)
		}
		if p.Images == nil {
			t.Fatalf("images should never be nil")
		}
	})

	t.Run("discount flag", func(t *testing.T) {
		p, err := normalizeProductDocument(bson.M{"price": 20.0, "discountedPrice": 15.0, "stock": int32(1)})
		if err != nil {
			t.Fatalf("normalize: %v", err)
		}
		if !p.IsDiscounted || p.DiscountedPrice == nil || *p.DiscountedPrice != 15 {
			t.Fatalf("expected discount, got %+v", p)
		}

		p, err = normalizeProductDocument(bson.M{"price": 20.0, "discountedPrice": nil, "stock": int64(3)})
		if err != nil {
			t.Fatalf("normalize: %v", err)
		}
		if p.IsDiscounted || p.DiscountedPrice != nil || p.Stock != 3 {
			t.Fatalf("expected no discount, got %+v", p)
		}

		p, err = normalizeProductDocument(bson.M{"price": 20.0, "discountedPrice": 25.0})
		if err != nil {
			t.Fatalf("normalize: %v", err)
		}
		if p.IsDiscounted {
			t.Fatalf("discount above price must not count")
		}
	})
}
