package handlers

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"expiryeaze/internal/models"
)

type prescriptionRequiredError struct {
	ProductIDs []primitive.ObjectID
	Names      []string
}

func (e prescriptionRequiredError) Error() string {
	return "approved prescription required"
}

// productsMissingApproval lists prescription-only products without an approved prescription.
func productsMissingApproval(products []models.Product, approved map[primitive.ObjectID]bool) error {
	var blocked prescriptionRequiredError
	for _, product := range products {
		if !product.RequiresPrescription || approved[product.ID] {
			continue
		}
		blocked.ProductIDs = append(blocked.ProductIDs, product.ID)
		blocked.Names = append(blocked.Names, product.Name)
	}
	if len(blocked.ProductIDs) == 0 {
		return nil
	}
	return blocked
}

func isReviewablePrescriptionStatus(status string) bool {
	return status == models.PrescriptionPending || status == models.PrescriptionNeedsClarification
}

func canTransitionPrescription(from, to string) bool {
	if !isReviewablePrescriptionStatus(from) {
		return false
	}
	switch to {
	case models.PrescriptionApproved, models.PrescriptionRejected, models.PrescriptionNeedsClarification:
		return true
	default:
		return false
	}
}
