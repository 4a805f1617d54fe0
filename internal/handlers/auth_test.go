package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"expiryeaze/internal/events"
	"expiryeaze/internal/mocks"
	"expiryeaze/internal/models"
)

const testSecret = "test-secret"

func TestRegisterRejectsWeakPassword(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("weak password", func(mt *mtest.T) {
		r := newTestRouter()
		r.POST("/register", Register(mt.DB))

		w := performJSON(mt.T, r, http.MethodPost, "/register", map[string]any{
			"name":     "Asha",
			"email":    "asha@example.com",
			"password": "password",
			"role":     "user",
		})
		if w.Code != http.StatusBadRequest {
			mt.Fatalf("expected 400, got %d", w.Code)
		}
		body := decodeBody(mt.T, w)
		if body["error"] != "validation failed" {
			mt.Fatalf("expected validation failure, got %v", body)
		}
		if details, _ := body["details"].([]any); len(details) != 1 {
			mt.Fatalf("expected one detail, got %v", body["details"])
		}
	})

	mt.Run("admin role cannot be self-assigned", func(mt *mtest.T) {
		r := newTestRouter()
		r.POST("/register", Register(mt.DB))

		w := performJSON(mt.T, r, http.MethodPost, "/register", map[string]any{
			"name":     "Asha",
			"email":    "asha@example.com",
			"password": "Str0ng!pass",
			"role":     models.RoleAdmin,
		})
		if w.Code != http.StatusBadRequest {
			mt.Fatalf("expected 400, got %d", w.Code)
		}
	})

	mt.Run("duplicate email", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "expiryeaze.users", mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}))
		r := newTestRouter()
		r.POST("/register", Register(mt.DB))

		w := performJSON(mt.T, r, http.MethodPost, "/register", map[string]any{
			"name":     "Asha",
			"email":    "Asha@Example.com",
			"password": "Str0ng!pass",
			"role":     models.RoleVendor,
		})
		if w.Code != http.StatusBadRequest {
			mt.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})
}

func TestLogin(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	issuer := TokenIssuer{
		Secret:       testSecret,
		TTL:          time.Hour,
		IsAdminEmail: func(email string) bool { return email == "root@example.com" },
	}

	mt.Run("unknown email", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "expiryeaze.users", mtest.FirstBatch))
		r := newTestRouter()
		r.POST("/login", Login(mt.DB, issuer))

		w := performJSON(mt.T, r, http.MethodPost, "/login", map[string]any{"email": "nobody@example.com", "password": "x"})
		if w.Code != http.StatusUnauthorized {
			mt.Fatalf("expected 401, got %d", w.Code)
		}
	})

	mt.Run("allow-listed email receives admin claim", func(mt *mtest.T) {
		hash, err := bcrypt.GenerateFromPassword([]byte("Str0ng!pass"), bcrypt.MinCost)
		if err != nil {
			mt.Fatalf("hash: %v", err)
		}
		userID := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "expiryeaze.users", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: userID},
			{Key: "name", Value: "Root"},
			{Key: "email", Value: "root@example.com"},
			{Key: "passwordHash", Value: string(hash)},
			{Key: "role", Value: models.RoleVendor},
		}))
		r := newTestRouter()
		r.POST("/login", Login(mt.DB, issuer))

		w := performJSON(mt.T, r, http.MethodPost, "/login", map[string]any{"email": " ROOT@example.com ", "password": "Str0ng!pass"})
		if w.Code != http.StatusOK {
			mt.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		body := decodeBody(mt.T, w)

		claims := jwt.MapClaims{}
		if _, err := jwt.ParseWithClaims(body["token"].(string), claims, func(*jwt.Token) (any, error) {
			return []byte(testSecret), nil
		}); err != nil {
			mt.Fatalf("parse token: %v", err)
		}
		if claims["role"] != models.RoleAdmin || claims["userId"] != userID.Hex() {
			mt.Fatalf("unexpected claims %v", claims)
		}
		if claims["accountRole"] != models.RoleVendor {
			mt.Fatalf("stored role must travel with the admin claim, got %v", claims["accountRole"])
		}
		if _, leaked := body["user"].(map[string]any)["passwordHash"]; leaked {
			mt.Fatalf("password hash leaked in response")
		}
	})

	mt.Run("wrong password", func(mt *mtest.T) {
		hash, _ := bcrypt.GenerateFromPassword([]byte("Str0ng!pass"), bcrypt.MinCost)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "expiryeaze.users", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "email", Value: "asha@example.com"},
			{Key: "passwordHash", Value: string(hash)},
			{Key: "role", Value: models.RoleUser},
		}))
		r := newTestRouter()
		r.POST("/login", Login(mt.DB, issuer))

		w := performJSON(mt.T, r, http.MethodPost, "/login", map[string]any{"email": "asha@example.com", "password": "nope"})
		if w.Code != http.StatusUnauthorized {
			mt.Fatalf("expected 401, got %d", w.Code)
		}
	})
}

func TestForgotPassword(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("known email publishes reset code", func(mt *mtest.T) {
		ctrl := gomock.NewController(mt.T)
		publisher := mocks.NewMockPublisher(ctrl)
		publisher.EXPECT().
			Publish(gomock.Any(), events.PasswordResetRequested, "asha@example.com", gomock.Any()).
			Return(nil)

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		r := newTestRouter()
		r.POST("/forgot", ForgotPassword(mt.DB, publisher))

		w := performJSON(mt.T, r, http.MethodPost, "/forgot", map[string]any{"email": "Asha@example.com"})
		if w.Code != http.StatusOK {
			mt.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		if _, leaked := decodeBody(mt.T, w)["otp"]; leaked {
			mt.Fatalf("reset code must not be returned to the caller")
		}
	})

	mt.Run("unknown email", func(mt *mtest.T) {
		ctrl := gomock.NewController(mt.T)
		publisher := mocks.NewMockPublisher(ctrl)

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))
		r := newTestRouter()
		r.POST("/forgot", ForgotPassword(mt.DB, publisher))

		w := performJSON(mt.T, r, http.MethodPost, "/forgot", map[string]any{"email": "ghost@example.com"})
		if w.Code != http.StatusNotFound {
			mt.Fatalf("expected 404, got %d", w.Code)
		}
	})
}

func TestResetPassword(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	userWithOTP := func(otp string, expires time.Time) bson.D {
		return bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "email", Value: "asha@example.com"},
			{Key: "role", Value: models.RoleUser},
			{Key: "resetOtpHash", Value: hashToken(otp)},
			{Key: "resetOtpExpiresAt", Value: expires},
		}
	}

	mt.Run("valid code resets password", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "expiryeaze.users", mtest.FirstBatch, userWithOTP("123456", time.Now().Add(5*time.Minute))),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)
		r := newTestRouter()
		r.POST("/reset", ResetPassword(mt.DB))

		w := performJSON(mt.T, r, http.MethodPost, "/reset", map[string]any{
			"email":    "asha@example.com",
			"otp":      "123456",
			"password": "N3w!password",
		})
		if w.Code != http.StatusOK {
			mt.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
	})

	mt.Run("expired code", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "expiryeaze.users", mtest.FirstBatch, userWithOTP("123456", time.Now().Add(-time.Minute))),
		)
		r := newTestRouter()
		r.POST("/reset", ResetPassword(mt.DB))

		w := performJSON(mt.T, r, http.MethodPost, "/reset", map[string]any{
			"email":    "asha@example.com",
			"otp":      "123456",
			"password": "N3w!password",
		})
		if w.Code != http.StatusBadRequest {
			mt.Fatalf("expected 400, got %d", w.Code)
		}
	})

	mt.Run("wrong code", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "expiryeaze.users", mtest.FirstBatch, userWithOTP("123456", time.Now().Add(5*time.Minute))),
		)
		r := newTestRouter()
		r.POST("/reset", ResetPassword(mt.DB))

		w := performJSON(mt.T, r, http.MethodPost, "/reset", map[string]any{
			"email":    "asha@example.com",
			"otp":      "654321",
			"password": "N3w!password",
		})
		if w.Code != http.StatusBadRequest {
			mt.Fatalf("expected 400, got %d", w.Code)
		}
	})
}

func TestGenerateOTPIsSixDigits(t *testing.T) {
	for i := 0; i < 50; i++ {
		otp, err := generateOTP()
		if err != nil {
			t.Fatalf("generateOTP: %v", err)
		}
		if len(otp) != 6 || otp[0] == '0' {
			t.Fatalf("unexpected code %q", otp)
		}
	}
}
