package handlers

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"expiryeaze/internal/events"
	"expiryeaze/internal/models"
)

const otpTTL = 10 * time.Minute

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,strongpassword"`
	Role     string `json:"role" binding:"required,oneof=user vendor"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Email    string `json:"email" binding:"required,email"`
	OTP      string `json:"otp" binding:"required,len=6,numeric"`
	Password string `json:"password" binding:"required,strongpassword"`
}

// TokenIssuer signs the session JWTs handed out at login.
type TokenIssuer struct {
	Secret       string
	TTL          time.Duration
	IsAdminEmail func(email string) bool
}

// roleFor grants the admin claim to allow-listed emails; everyone else keeps their stored role.
func (t TokenIssuer) roleFor(user models.User) string {
	if t.IsAdminEmail != nil && t.IsAdminEmail(user.Email) {
		return models.RoleAdmin
	}
	return user.Role
}

func (t TokenIssuer) issue(user models.User, role string) (string, error) {
	claims := jwt.MapClaims{
		"userId":      user.ID.Hex(),
		"role":        role,
		"accountRole": user.Role,
		"email":       user.Email,
		"iat":         time.Now().Unix(),
		"exp":         time.Now().Add(t.TTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(t.Secret))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// otpMatches checks the code against the stored hash and expiry.
func otpMatches(user models.User, otp string, now time.Time) bool {
	if user.ResetOTPHash == "" || user.ResetOTPExpiresAt == nil || now.After(*user.ResetOTPExpiresAt) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(user.ResetOTPHash), []byte(hashToken(otp))) == 1
}

func userResponse(user models.User, role string) gin.H {
	return gin.H{
		"id":           user.ID.Hex(),
		"name":         user.Name,
		"email":        user.Email,
		"role":         role,
		"accountRole":  user.Role,
		"phone":        user.Phone,
		"address":      user.Address,
		"location":     user.Location,
		"profileImage": user.ProfileImage,
	}
}

func Register(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/register"
		defer handlePanic(c, route)

		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		email := normalizeEmail(req.Email)
		name := strings.TrimSpace(req.Name)
		if name == "" {
			respondWithError(c, http.StatusBadRequest, route, "name is required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		count, err := db.Collection("users").CountDocuments(ctx, bson.M{"email": email})
		if err != nil {
			log.Println("[AUTH] [ERROR] register db error:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if count > 0 {
			log.Println("[AUTH] [ERROR] register email exists:", email)
			respondWithError(c, http.StatusBadRequest, route, "Email already registered")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Println("[AUTH] [ERROR] register password hash failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "password hash failed")
			return
		}

		now := time.Now()
		user := models.User{
			Name:         name,
			Email:        email,
			PasswordHash: string(hash),
			Role:         req.Role,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		res, err := db.Collection("users").InsertOne(ctx, user)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				respondWithError(c, http.StatusBadRequest, route, "Email already registered")
				return
			}
			log.Println("[AUTH] [ERROR] register insert failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if id, ok := res.InsertedID.(primitive.ObjectID); ok {
			user.ID = id
		}

		log.Println("[AUTH] [INFO] user registered:", email)
		c.JSON(http.StatusCreated, gin.H{
			"success": true,
			"message": "Registration successful",
			"user":    userResponse(user, user.Role),
		})
	}
}

func Login(db *mongo.Database, issuer TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/login"
		defer handlePanic(c, route)

		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		email := normalizeEmail(req.Email)

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		var user models.User
		err := db.Collection("users").FindOne(ctx, bson.M{"email": email}).Decode(&user)
		if errors.Is(err, mongo.ErrNoDocuments) {
			log.Println("[AUTH] [ERROR] login unknown email")
			respondWithError(c, http.StatusUnauthorized, route, "Invalid credentials")
			return
		}
		if err != nil {
			log.Println("[AUTH] [ERROR] login user lookup failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			log.Println("[AUTH] [ERROR] login invalid password")
			respondWithError(c, http.StatusUnauthorized, route, "Invalid credentials")
			return
		}

		role := issuer.roleFor(user)
		token, err := issuer.issue(user, role)
		if err != nil {
			log.Println("[AUTH] [ERROR] login token generation failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "token generation failed")
			return
		}

		log.Println("[AUTH] [INFO] login succeeded:", user.Email)
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"token":   token,
			"user":    userResponse(user, role),
		})
	}
}

func ForgotPassword(db *mongo.Database, publisher events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/forgotpassword"
		defer handlePanic(c, route)

		var req ForgotPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		email := normalizeEmail(req.Email)

		otp, err := generateOTP()
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "could not generate code")
			return
		}
		expiresAt := time.Now().Add(otpTTL)

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		res, err := db.Collection("users").UpdateOne(ctx,
			bson.M{"email": email},
			bson.M{"$set": bson.M{
				"resetOtpHash":      hashToken(otp),
				"resetOtpExpiresAt": expiresAt,
			}},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "User not found with this email")
			return
		}

		// The mail worker consuming this event delivers the code.
		publish(c.Request.Context(), publisher, events.PasswordResetRequested, email, gin.H{
			"email":     email,
			"otp":       otp,
			"expiresAt": expiresAt,
		})

		log.Println("[AUTH] [INFO] password reset requested:", email)
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Reset code sent"})
	}
}

func ResetPassword(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/resetpassword"
		defer handlePanic(c, route)

		var req ResetPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		email := normalizeEmail(req.Email)

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		var user models.User
		err := db.Collection("users").FindOne(ctx, bson.M{"email": email}).Decode(&user)
		if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if err != nil || !otpMatches(user, strings.TrimSpace(req.OTP), time.Now()) {
			respondWithError(c, http.StatusBadRequest, route, "Invalid email or OTP is invalid/expired")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "password hash failed")
			return
		}

		res, err := db.Collection("users").UpdateOne(ctx,
			bson.M{"_id": user.ID, "resetOtpHash": user.ResetOTPHash},
			bson.M{
				"$set":   bson.M{"passwordHash": string(hash), "updatedAt": time.Now()},
				"$unset": bson.M{"resetOtpHash": "", "resetOtpExpiresAt": ""},
			},
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.MatchedCount == 0 {
			respondWithError(c, http.StatusBadRequest, route, "Invalid email or OTP is invalid/expired")
			return
		}

		log.Println("[AUTH] [INFO] password reset completed:", email)
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password reset successful"})
	}
}
