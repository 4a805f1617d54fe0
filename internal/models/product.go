package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Product struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name                 string             `bson:"name" json:"name"`
	Description          string             `bson:"description,omitempty" json:"description,omitempty"`
	Price                float64            `bson:"price" json:"price"`
	DiscountedPrice      *float64           `bson:"discountedPrice,omitempty" json:"discountedPrice,omitempty"`
	IsDiscounted         bool               `bson:"-" json:"isDiscounted"`
	Stock                int                `bson:"stock" json:"stock"`
	InStock              bool               `bson:"-" json:"inStock"`
	ExpiryDate           time.Time          `bson:"expiryDate" json:"expiryDate"`
	Category             string             `bson:"category" json:"category"`
	RequiresPrescription bool               `bson:"requiresPrescription" json:"requiresPrescription"`
	Images               StringList         `bson:"images" json:"images"`
	ExpiryPhoto          string             `bson:"expiryPhoto,omitempty" json:"expiryPhoto,omitempty"`
	Vendor               primitive.ObjectID `bson:"vendor" json:"vendor"`
	CreatedAt            time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time          `bson:"updatedAt" json:"updatedAt"`
}
