package handlers

import (
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxFilesPerField = 5

/*
=======================
  INPUT STRUCT
=======================
*/

type prescriptionForm struct {
	Product primitive.ObjectID

	PatientName   string
	PatientAge    int
	PatientGender string

	ReasonForPurchase  string
	MedicalCondition   string
	DoctorName         string
	DoctorPhone        string
	HospitalClinicName string

	ContactNumber    string
	EmergencyContact string

	PrescriptionDocuments []*multipart.FileHeader
	MedicalReports        []*multipart.FileHeader
}

/*
=======================
  PARSER
=======================
*/

func parsePrescriptionForm(c *gin.Context) (prescriptionForm, error) {
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		log.Println("[PRESCRIPTION] [ERROR] multipart parse failed:", err)
		return prescriptionForm{}, fmt.Errorf("invalid multipart body")
	}

	form := prescriptionForm{}
	missing := make([]string, 0)

	required := func(name string) string {
		value := strings.TrimSpace(c.PostForm(name))
		if value == "" {
			missing = append(missing, name)
		}
		return value
	}

	productRaw := required("product")
	form.PatientName = required("patientName")
	ageRaw := required("patientAge")
	form.PatientGender = strings.ToLower(required("patientGender"))
	form.ReasonForPurchase = required("reasonForPurchase")
	form.MedicalCondition = required("medicalCondition")
	form.ContactNumber = required("contactNumber")

	if len(missing) > 0 {
		return prescriptionForm{}, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	productID, err := primitive.ObjectIDFromHex(productRaw)
	if err != nil {
		return prescriptionForm{}, fmt.Errorf("invalid product")
	}
	form.Product = productID

	age, err := strconv.Atoi(ageRaw)
	if err != nil || age < 0 || age > 150 {
		return prescriptionForm{}, fmt.Errorf("patientAge must be a number between 0 and 150")
	}
	form.PatientAge = age

	switch form.PatientGender {
	case "male", "female", "other":
	default:
		return prescriptionForm{}, fmt.Errorf("patientGender must be one of: male, female, other")
	}

	form.DoctorName = strings.TrimSpace(c.PostForm("doctorName"))
	form.DoctorPhone = strings.TrimSpace(c.PostForm("doctorPhone"))
	form.HospitalClinicName = strings.TrimSpace(c.PostForm("hospitalClinicName"))
	form.EmergencyContact = strings.TrimSpace(c.PostForm("emergencyContact"))

	// ---- FILES ----

	if c.Request.MultipartForm != nil {
		form.PrescriptionDocuments = c.Request.MultipartForm.File["prescriptionDocuments"]
		form.MedicalReports = c.Request.MultipartForm.File["medicalReports"]
	}

	if len(form.PrescriptionDocuments) == 0 {
		return prescriptionForm{}, fmt.Errorf("at least one prescription document is required")
	}
	for field, files := range map[string][]*multipart.FileHeader{
		"prescriptionDocuments": form.PrescriptionDocuments,
		"medicalReports":        form.MedicalReports,
	} {
		if len(files) > maxFilesPerField {
			return prescriptionForm{}, fmt.Errorf("%s accepts at most %d files", field, maxFilesPerField)
		}
		for _, file := range files {
			if _, err := validateUpload(file); err != nil {
				return prescriptionForm{}, err
			}
		}
	}

	return form, nil
}

// saveAll stores every file under subdir; on failure the files already written are removed.
func (s UploadStore) saveAll(subdir string, files []*multipart.FileHeader) ([]string, error) {
	saved := make([]string, 0, len(files))
	for _, file := range files {
		p, err := s.save(subdir, file)
		if err != nil {
			s.deleteAll(saved)
			return nil, err
		}
		saved = append(saved, p)
	}
	return saved, nil
}

func respondMultipartError(c *gin.Context, route string, err error) {
	respondWithError(c, http.StatusBadRequest, route, err.Error())
}
