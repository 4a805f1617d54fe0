package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	PrescriptionPending            = "pending"
	PrescriptionApproved           = "approved"
	PrescriptionRejected           = "rejected"
	PrescriptionNeedsClarification = "needs_clarification"
)

type Prescription struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User    primitive.ObjectID `bson:"user" json:"user"`
	Product primitive.ObjectID `bson:"product" json:"product"`

	PatientName   string `bson:"patientName" json:"patientName"`
	PatientAge    int    `bson:"patientAge" json:"patientAge"`
	PatientGender string `bson:"patientGender" json:"patientGender"`

	ReasonForPurchase  string `bson:"reasonForPurchase" json:"reasonForPurchase"`
	MedicalCondition   string `bson:"medicalCondition" json:"medicalCondition"`
	DoctorName         string `bson:"doctorName,omitempty" json:"doctorName,omitempty"`
	DoctorPhone        string `bson:"doctorPhone,omitempty" json:"doctorPhone,omitempty"`
	HospitalClinicName string `bson:"hospitalClinicName,omitempty" json:"hospitalClinicName,omitempty"`

	ContactNumber    string `bson:"contactNumber" json:"contactNumber"`
	EmergencyContact string `bson:"emergencyContact,omitempty" json:"emergencyContact,omitempty"`

	PrescriptionDocuments []string `bson:"prescriptionDocuments" json:"prescriptionDocuments"`
	MedicalReports        []string `bson:"medicalReports" json:"medicalReports"`

	VerificationStatus string     `bson:"verificationStatus" json:"verificationStatus"`
	ReviewedBy         string     `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
	ReviewNotes        string     `bson:"reviewNotes,omitempty" json:"reviewNotes,omitempty"`
	ReviewedAt         *time.Time `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}
