package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser   = "user"
	RoleVendor = "vendor"
	RoleAdmin  = "admin"
)

// RatingDistribution counts reviews per star value.
type RatingDistribution struct {
	One   int `bson:"1" json:"1"`
	Two   int `bson:"2" json:"2"`
	Three int `bson:"3" json:"3"`
	Four  int `bson:"4" json:"4"`
	Five  int `bson:"5" json:"5"`
}

// RatingStats is the denormalized review aggregate stored on a vendor.
type RatingStats struct {
	AverageRating      float64            `bson:"averageRating" json:"averageRating"`
	NumReviews         int                `bson:"numReviews" json:"numReviews"`
	RatingDistribution RatingDistribution `bson:"ratingDistribution" json:"ratingDistribution"`
}

// User represents the application user account. Vendors are users with RoleVendor.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"passwordHash" json:"-"`
	Role         string             `bson:"role" json:"role"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Address      string             `bson:"address,omitempty" json:"address,omitempty"`
	Location     string             `bson:"location,omitempty" json:"location,omitempty"`
	ProfileImage string             `bson:"profileImage,omitempty" json:"profileImage,omitempty"`

	RatingStats `bson:",inline"`

	ResetOTPHash      string     `bson:"resetOtpHash,omitempty" json:"-"`
	ResetOTPExpiresAt *time.Time `bson:"resetOtpExpiresAt,omitempty" json:"-"`
	OrderSeq          int64      `bson:"orderSeq,omitempty" json:"-"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
