package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"expiryeaze/internal/events"
	"expiryeaze/internal/models"
)

type createReviewRequest struct {
	VendorID string   `json:"vendorId" binding:"required"`
	Rating   int      `json:"rating" binding:"required,min=1,max=5"`
	Title    string   `json:"title" binding:"required,max=100"`
	Comment  string   `json:"comment" binding:"required,max=500"`
	Images   []string `json:"images"`
}

type updateReviewRequest struct {
	Rating  *int      `json:"rating" binding:"omitempty,min=1,max=5"`
	Title   *string   `json:"title" binding:"omitempty,max=100"`
	Comment *string   `json:"comment" binding:"omitempty,max=500"`
	Images  *[]string `json:"images"`
}

type helpfulVoteRequest struct {
	Helpful *bool `json:"helpful"`
}

func findVendor(ctx context.Context, db *mongo.Database, vendorID primitive.ObjectID) (models.User, error) {
	var vendor models.User
	err := db.Collection("users").FindOne(ctx, bson.M{"_id": vendorID, "role": models.RoleVendor}).Decode(&vendor)
	return vendor, err
}

func trimImages(images []string) models.StringList {
	return models.StringList(images).Compact()
}

// recomputeVendorRating rebuilds the vendor's denormalized rating aggregate from its reviews.
func recomputeVendorRating(ctx context.Context, db *mongo.Database, vendorID primitive.ObjectID) (models.RatingStats, error) {
	cursor, err := db.Collection("reviews").Find(ctx,
		bson.M{"vendor": vendorID},
		options.Find().SetProjection(bson.M{"rating": 1}),
	)
	if err != nil {
		return models.RatingStats{}, err
	}
	defer cursor.Close(ctx)

	ratings := make([]int, 0)
	for cursor.Next(ctx) {
		var row struct {
			Rating int `bson:"rating"`
		}
		if err := cursor.Decode(&row); err != nil {
			return models.RatingStats{}, err
		}
		ratings = append(ratings, row.Rating)
	}
	if err := cursor.Err(); err != nil {
		return models.RatingStats{}, err
	}

	stats := computeRatingStats(ratings)
	_, err = db.Collection("users").UpdateOne(ctx, bson.M{"_id": vendorID}, bson.M{"$set": bson.M{
		"averageRating":      stats.AverageRating,
		"numReviews":         stats.NumReviews,
		"ratingDistribution": stats.RatingDistribution,
	}})
	return stats, err
}

func afterReviewChange(ctx context.Context, db *mongo.Database, publisher events.Publisher, vendorID primitive.ObjectID, action string) {
	stats, err := recomputeVendorRating(ctx, db, vendorID)
	if err != nil {
		log.Printf("[REVIEW] [ERROR] rating recompute for vendor %s failed: %v", vendorID.Hex(), err)
		return
	}
	publish(ctx, publisher, events.ReviewChanged, vendorID.Hex(), gin.H{
		"vendorId":      vendorID.Hex(),
		"action":        action,
		"averageRating": stats.AverageRating,
		"numReviews":    stats.NumReviews,
	})
}

// hasPurchasedFromVendor reports whether the buyer ever ordered one of the vendor's products.
func hasPurchasedFromVendor(ctx context.Context, db *mongo.Database, userID, vendorID primitive.ObjectID) bool {
	productIDs, err := db.Collection("products").Distinct(ctx, "_id", bson.M{"vendor": vendorID})
	if err != nil || len(productIDs) == 0 {
		return false
	}
	count, err := db.Collection("orders").CountDocuments(ctx, bson.M{
		"user":             userID,
		"products.product": bson.M{"$in": productIDs},
	}, options.Count().SetLimit(1))
	return err == nil && count > 0
}

func loadOwnedReview(c *gin.Context, ctx context.Context, db *mongo.Database, route string, userID primitive.ObjectID) (models.Review, bool) {
	reviewID, ok := objectIDParam(c, route, "id")
	if !ok {
		return models.Review{}, false
	}

	var review models.Review
	err := db.Collection("reviews").FindOne(ctx, bson.M{"_id": reviewID}).Decode(&review)
	if errors.Is(err, mongo.ErrNoDocuments) {
		respondWithError(c, http.StatusNotFound, route, "Review not found")
		return models.Review{}, false
	}
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, route, "db error")
		return models.Review{}, false
	}
	if review.User != userID {
		respondWithError(c, http.StatusForbidden, route, "You can only modify your own review")
		return models.Review{}, false
	}
	return review, true
}

func CreateReview(db *mongo.Database, publisher events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /reviews"
		defer handlePanic(c, route)

		userID, _, ok := currentUser(c, route)
		if !ok {
			return
		}

		var req createReviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		vendorID, err := primitive.ObjectIDFromHex(req.VendorID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid vendorId")
			return
		}
		if vendorID == userID {
			respondWithError(c, http.StatusForbidden, route, "You cannot review yourself")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		if _, err := findVendor(ctx, db, vendorID); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				respondWithError(c, http.StatusNotFound, route, "Vendor not found")
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		now := time.Now()
		review := models.Review{
			User:      userID,
			Vendor:    vendorID,
			Rating:    req.Rating,
			Title:     strings.TrimSpace(req.Title),
			Comment:   strings.TrimSpace(req.Comment),
			Images:    trimImages(req.Images),
			Helpful:   []models.HelpfulVote{},
			Verified:  hasPurchasedFromVendor(ctx, db, userID, vendorID),
			CreatedAt: now,
			UpdatedAt: now,
		}

		res, err := db.Collection("reviews").InsertOne(ctx, review)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				respondWithError(c, http.StatusBadRequest, route, "You have already reviewed this vendor")
				return
			}
			log.Println("[REVIEW] [ERROR] insert failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if id, ok := res.InsertedID.(primitive.ObjectID); ok {
			review.ID = id
		}

		afterReviewChange(ctx, db, publisher, vendorID, "created")

		c.JSON(http.StatusCreated, gin.H{"success": true, "review": review})
	}
}

func UpdateReview(db *mongo.Database, publisher events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /reviews/:id"
		defer handlePanic(c, route)

		userID, _, ok := currentUser(c, route)
		if !ok {
			return
		}

		var req updateReviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		review, ok := loadOwnedReview(c, ctx, db, route, userID)
		if !ok {
			return
		}

		set := bson.M{"updatedAt": time.Now()}
		if req.Rating != nil {
			set["rating"] = *req.Rating
		}
		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				respondWithError(c, http.StatusBadRequest, route, "title cannot be empty")
				return
			}
			set["title"] = title
		}
		if req.Comment != nil {
			comment := strings.TrimSpace(*req.Comment)
			if comment == "" {
				respondWithError(c, http.StatusBadRequest, route, "comment cannot be empty")
				return
			}
			set["comment"] = comment
		}
		if req.Images != nil {
			set["images"] = trimImages(*req.Images)
		}

		var updated models.Review
		err := db.Collection("reviews").FindOneAndUpdate(ctx,
			bson.M{"_id": review.ID, "user": userID},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "Review not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		afterReviewChange(ctx, db, publisher, review.Vendor, "updated")

		c.JSON(http.StatusOK, gin.H{"success": true, "review": updated})
	}
}

func DeleteReview(db *mongo.Database, publisher events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /reviews/:id"
		defer handlePanic(c, route)

		userID, _, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		review, ok := loadOwnedReview(c, ctx, db, route, userID)
		if !ok {
			return
		}

		res, err := db.Collection("reviews").DeleteOne(ctx, bson.M{"_id": review.ID, "user": userID})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.DeletedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "Review not found")
			return
		}

		afterReviewChange(ctx, db, publisher, review.Vendor, "deleted")

		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Review deleted"})
	}
}

func GetVendorReviews(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /reviews/vendor/:vendorId"
		defer handlePanic(c, route)

		vendorID, ok := objectIDParam(c, route, "vendorId")
		if !ok {
			return
		}

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		filter := bson.M{"vendor": vendorID}
		total, err := db.Collection("reviews").CountDocuments(ctx, filter)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		cursor, err := db.Collection("reviews").Find(ctx, filter, options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}}).
			SetSkip((page-1)*limit).
			SetLimit(limit),
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		reviews := make([]models.Review, 0)
		if err := cursor.All(ctx, &reviews); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"reviews": reviews,
			"pagination": gin.H{
				"page":  page,
				"limit": limit,
				"total": total,
				"pages": totalPages(total, limit),
			},
		})
	}
}

func GetVendorReviewStats(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /reviews/vendor/:vendorId/stats"
		defer handlePanic(c, route)

		vendorID, ok := objectIDParam(c, route, "vendorId")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		vendor, err := findVendor(ctx, db, vendorID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "Vendor not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "stats": vendor.RatingStats})
	}
}

func GetMyVendorReview(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /reviews/vendor/:vendorId/my-review"
		defer handlePanic(c, route)

		userID, _, ok := currentUser(c, route)
		if !ok {
			return
		}
		vendorID, ok := objectIDParam(c, route, "vendorId")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		var review models.Review
		err := db.Collection("reviews").FindOne(ctx, bson.M{"user": userID, "vendor": vendorID}).Decode(&review)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "Review not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "review": review})
	}
}

// MarkReviewHelpful records one vote per user; voting again replaces the earlier vote.
func MarkReviewHelpful(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /reviews/:id/helpful"
		defer handlePanic(c, route)

		userID, _, ok := currentUser(c, route)
		if !ok {
			return
		}
		reviewID, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		var req helpfulVoteRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondValidationError(c, err)
			return
		}
		helpful := true
		if req.Helpful != nil {
			helpful = *req.Helpful
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		reviews := db.Collection("reviews")
		res, err := reviews.UpdateOne(ctx,
			bson.M{"_id": reviewID, "user": bson.M{"$ne": userID}, "helpful.user": userID},
			bson.M{"$set": bson.M{"helpful.$.helpful": helpful}},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			res, err = reviews.UpdateOne(ctx,
				bson.M{"_id": reviewID, "user": bson.M{"$ne": userID}, "helpful.user": bson.M{"$ne": userID}},
				bson.M{"$push": bson.M{"helpful": models.HelpfulVote{User: userID, Helpful: helpful}}},
			)
			if err != nil {
				respondWithError(c, http.StatusInternalServerError, route, "db error")
				return
			}
		}

		var review models.Review
		if err := reviews.FindOne(ctx, bson.M{"_id": reviewID}).Decode(&review); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				respondWithError(c, http.StatusNotFound, route, "Review not found")
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 && review.User == userID {
			respondWithError(c, http.StatusBadRequest, route, "You cannot vote on your own review")
			return
		}

		helpfulCount := 0
		for _, vote := range review.Helpful {
			if vote.Helpful {
				helpfulCount++
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"success":      true,
			"helpfulCount": helpfulCount,
			"totalVotes":   len(review.Helpful),
		})
	}
}
