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
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"expiryeaze/internal/models"
)

type WaitlistRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	Role     string `json:"role" binding:"required,oneof=user vendor"`
}

func findWaitlistEntry(ctx context.Context, db *mongo.Database, email, role string) (models.WaitlistEntry, error) {
	var entry models.WaitlistEntry
	err := db.Collection("waitlist").FindOne(ctx, bson.M{"email": email, "role": role}).Decode(&entry)
	return entry, err
}

// JoinWaitlist is idempotent: a repeat join returns the stored entry with 200.
func JoinWaitlist(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/waitlist/join"
		defer handlePanic(c, route)

		var req WaitlistRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		name := strings.TrimSpace(req.Name)
		if name == "" {
			respondWithError(c, http.StatusBadRequest, route, "name is required")
			return
		}
		email := normalizeEmail(req.Email)

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		existing, err := findWaitlistEntry(ctx, db, email, req.Role)
		if err == nil {
			c.JSON(http.StatusOK, gin.H{"success": true, "data": existing})
			return
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			log.Println("[WAITLIST] [ERROR] lookup failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		entry := models.WaitlistEntry{
			Name:      name,
			Email:     email,
			Phone:     strings.TrimSpace(req.Phone),
			Location:  strings.TrimSpace(req.Location),
			Role:      req.Role,
			CreatedAt: time.Now(),
		}
		res, err := db.Collection("waitlist").InsertOne(ctx, entry)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				// lost a race with a concurrent join
				if existing, ferr := findWaitlistEntry(ctx, db, email, req.Role); ferr == nil {
					c.JSON(http.StatusOK, gin.H{"success": true, "data": existing})
					return
				}
			}
			log.Println("[WAITLIST] [ERROR] insert failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if id, ok := res.InsertedID.(primitive.ObjectID); ok {
			entry.ID = id
		}

		log.Println("[WAITLIST] [INFO] joined:", email, req.Role)
		c.JSON(http.StatusCreated, gin.H{"success": true, "data": entry})
	}
}

func CheckWaitlist(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /auth/waitlist/check"
		defer handlePanic(c, route)

		email := normalizeEmail(c.Query("email"))
		role := strings.TrimSpace(c.Query("role"))
		if email == "" || role == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success": false,
				"joined":  false,
				"error":   "email and role are required",
			})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		_, err := findWaitlistEntry(ctx, db, email, role)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, gin.H{"success": true, "joined": true})
		case errors.Is(err, mongo.ErrNoDocuments):
			c.JSON(http.StatusOK, gin.H{"success": true, "joined": false})
		default:
			log.Println("[WAITLIST] [ERROR] check failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
		}
	}
}
