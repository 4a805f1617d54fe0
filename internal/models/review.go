package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HelpfulVote is a single user's verdict on a review.
type HelpfulVote struct {
	User    primitive.ObjectID `bson:"user" json:"user"`
	Helpful bool               `bson:"helpful" json:"helpful"`
}

// Review is a buyer's review of a vendor. One per (user, vendor).
type Review struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	Vendor    primitive.ObjectID `bson:"vendor" json:"vendor"`
	Rating    int                `bson:"rating" json:"rating"`
	Title     string             `bson:"title" json:"title"`
	Comment   string             `bson:"comment" json:"comment"`
	Images    StringList         `bson:"images" json:"images"`
	Helpful   []HelpfulVote      `bson:"helpful" json:"helpful"`
	Verified  bool               `bson:"verified" json:"verified"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
