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
	"go.mongodb.org/mongo-driver/mongo/options"

	"expiryeaze/internal/events"
	"expiryeaze/internal/middleware"
	"expiryeaze/internal/models"
)

type updatePrescriptionStatusRequest struct {
	VerificationStatus string `json:"verificationStatus" binding:"required,oneof=approved rejected needs_clarification"`
	ReviewNotes        string `json:"reviewNotes"`
}

func findPrescriptions(ctx context.Context, db *mongo.Database, filter bson.M) ([]models.Prescription, error) {
	cursor, err := db.Collection("prescriptions").Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	prescriptions := make([]models.Prescription, 0)
	if err := cursor.All(ctx, &prescriptions); err != nil {
		return nil, err
	}
	return prescriptions, nil
}

func CreatePrescription(db *mongo.Database, uploads UploadStore, publisher events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /prescriptions"
		defer handlePanic(c, route)

		userID, _, ok := currentUser(c, route)
		if !ok {
			return
		}

		form, err := parsePrescriptionForm(c)
		if err != nil {
			respondMultipartError(c, route, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		product, err := findProduct(ctx, db, bson.M{"_id": form.Product})
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "Product not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if !product.RequiresPrescription {
			respondWithError(c, http.StatusBadRequest, route, "This product does not require a prescription")
			return
		}

		documents, err := uploads.saveAll("prescriptions", form.PrescriptionDocuments)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "failed to store prescription documents")
			return
		}
		reports, err := uploads.saveAll("prescriptions", form.MedicalReports)
		if err != nil {
			uploads.deleteAll(documents)
			respondWithError(c, http.StatusInternalServerError, route, "failed to store medical reports")
			return
		}

		prescription := models.Prescription{
			User:                  userID,
			Product:               form.Product,
			PatientName:           form.PatientName,
			PatientAge:            form.PatientAge,
			PatientGender:         form.PatientGender,
			ReasonForPurchase:     form.ReasonForPurchase,
			MedicalCondition:      form.MedicalCondition,
			DoctorName:            form.DoctorName,
			DoctorPhone:           form.DoctorPhone,
			HospitalClinicName:    form.HospitalClinicName,
			ContactNumber:         form.ContactNumber,
			EmergencyContact:      form.EmergencyContact,
			PrescriptionDocuments: documents,
			MedicalReports:        reports,
			VerificationStatus:    models.PrescriptionPending,
			CreatedAt:             time.Now(),
		}

		res, err := db.Collection("prescriptions").InsertOne(ctx, prescription)
		if err != nil {
			log.Println("[PRESCRIPTION] [ERROR] insert failed, removing uploads:", err)
			uploads.deleteAll(documents)
			uploads.deleteAll(reports)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if insertedID, ok := res.InsertedID.(primitive.ObjectID); ok {
			prescription.ID = insertedID
		}

		publish(c.Request.Context(), publisher, events.PrescriptionSubmitted, prescription.ID.Hex(), gin.H{
			"prescriptionId": prescription.ID.Hex(),
			"userId":         userID.Hex(),
			"productId":      form.Product.Hex(),
		})

		log.Printf("[PRESCRIPTION] [INFO] %s submitted by %s for %s", prescription.ID.Hex(), userID.Hex(), form.Product.Hex())
		c.JSON(http.StatusCreated, gin.H{
			"success":      true,
			"message":      "Prescription submitted for review",
			"prescription": prescription,
		})
	}
}

func GetMyPrescriptions(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /prescriptions/my-prescriptions"
		defer handlePanic(c, route)

		userID, _, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		prescriptions, err := findPrescriptions(ctx, db, bson.M{"user": userID})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "count": len(prescriptions), "prescriptions": prescriptions})
	}
}

// GetPrescriptions lists every prescription for reviewers, optionally by status.
func GetPrescriptions(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /prescriptions"
		defer handlePanic(c, route)

		filter := bson.M{}
		if status := strings.TrimSpace(c.Query("status")); status != "" {
			switch status {
			case models.PrescriptionPending, models.PrescriptionApproved,
				models.PrescriptionRejected, models.PrescriptionNeedsClarification:
				filter["verificationStatus"] = status
			default:
				respondWithError(c, http.StatusBadRequest, route, "invalid status filter")
				return
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		prescriptions, err := findPrescriptions(ctx, db, filter)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "count": len(prescriptions), "prescriptions": prescriptions})
	}
}

func GetPrescription(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /prescriptions/:id"
		defer handlePanic(c, route)

		userID, role, ok := currentUser(c, route)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		var prescription models.Prescription
		err := db.Collection("prescriptions").FindOne(ctx, bson.M{"_id": id}).Decode(&prescription)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "Prescription not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if prescription.User != userID && !isAdmin(role) {
			respondWithError(c, http.StatusForbidden, route, "not allowed to view this prescription")
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "prescription": prescription})
	}
}

func UpdatePrescriptionStatus(db *mongo.Database, publisher events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /prescriptions/:id/status"
		defer handlePanic(c, route)

		reviewerID, _, ok := currentUser(c, route)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		var req updatePrescriptionStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		reviewer := c.GetString(middleware.ContextEmail)
		if reviewer == "" {
			reviewer = reviewerID.Hex()
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		var current models.Prescription
		err := db.Collection("prescriptions").FindOne(ctx, bson.M{"_id": id}).Decode(&current)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "Prescription not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if !canTransitionPrescription(current.VerificationStatus, req.VerificationStatus) {
			respondWithDetails(c, http.StatusBadRequest, route, "Prescription can no longer change status", gin.H{
				"currentStatus": current.VerificationStatus,
			})
			return
		}

		now := time.Now()
		var updated models.Prescription
		err = db.Collection("prescriptions").FindOneAndUpdate(ctx,
			bson.M{"_id": id, "verificationStatus": current.VerificationStatus},
			bson.M{"$set": bson.M{
				"verificationStatus": req.VerificationStatus,
				"reviewNotes":        strings.TrimSpace(req.ReviewNotes),
				"reviewedBy":         reviewer,
				"reviewedAt":         now,
			}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusConflict, route, "prescription was reviewed concurrently")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		publish(c.Request.Context(), publisher, events.PrescriptionReviewed, updated.ID.Hex(), gin.H{
			"prescriptionId":     updated.ID.Hex(),
			"userId":             updated.User.Hex(),
			"productId":          updated.Product.Hex(),
			"verificationStatus": updated.VerificationStatus,
			"reviewedBy":         reviewer,
		})

		log.Printf("[PRESCRIPTION] [INFO] %s moved %s -> %s by %s", id.Hex(), current.VerificationStatus, updated.VerificationStatus, reviewer)
		c.JSON(http.StatusOK, gin.H{"success": true, "prescription": updated})
	}
}
