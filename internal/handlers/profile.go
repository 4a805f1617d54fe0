package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"expiryeaze/internal/models"
)

type updateProfileRequest struct {
	Name         *string `json:"name"`
	Phone        *string `json:"phone"`
	Address      *string `json:"address"`
	Location     *string `json:"location"`
	ProfileImage *string `json:"profileImage"`
}

func (r updateProfileRequest) setFields() (bson.M, error) {
	set := bson.M{}
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" {
			return nil, errors.New("name cannot be empty")
		}
		set["name"] = name
	}
	for field, value := range map[string]*string{
		"phone":        r.Phone,
		"address":      r.Address,
		"location":     r.Location,
		"profileImage": r.ProfileImage,
	} {
		if value != nil {
			set[field] = strings.TrimSpace(*value)
		}
	}
	return set, nil
}

func GetMe(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /auth/me"
		defer handlePanic(c, route)

		userID, role, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		var user models.User
		err := db.Collection("users").FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "User not found")
			return
		}
		if err != nil {
			log.Println("[AUTH] [ERROR] get me failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		body := userResponse(user, role)
		body["createdAt"] = user.CreatedAt
		body["updatedAt"] = user.UpdatedAt
		if user.Role == models.RoleVendor {
			body["ratingStats"] = user.RatingStats
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "user": body})
	}
}

func UpdateMe(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /auth/me"
		defer handlePanic(c, route)

		userID, role, ok := currentUser(c, route)
		if !ok {
			return
		}

		var req updateProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		set, err := req.setFields()
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		if len(set) == 0 {
			respondWithError(c, http.StatusBadRequest, route, "no updatable fields provided")
			return
		}
		set["updatedAt"] = time.Now()

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		var user models.User
		err = db.Collection("users").FindOneAndUpdate(ctx,
			bson.M{"_id": userID},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&user)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "User not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "user": userResponse(user, role)})
	}
}

// GetVendorProfile is the public view of a vendor with its rating aggregate.
func GetVendorProfile(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /vendors/:id"
		defer handlePanic(c, route)

		vendorID, ok := objectIDParam(c, route, "id")
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

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"vendor": gin.H{
				"id":                 vendor.ID.Hex(),
				"name":               vendor.Name,
				"location":           vendor.Location,
				"profileImage":       vendor.ProfileImage,
				"averageRating":      vendor.AverageRating,
				"numReviews":         vendor.NumReviews,
				"ratingDistribution": vendor.RatingDistribution,
			},
		})
	}
}
