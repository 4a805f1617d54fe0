package handlers

import (
	"net/http"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"expiryeaze/internal/events"
	"expiryeaze/internal/models"
)

func reviewBody(vendorID primitive.ObjectID) map[string]any {
	return map[string]any{
		"vendorId": vendorID.Hex(),
		"rating":   4,
		"title":    "Fresh stock",
		"comment":  "Delivered well before expiry",
	}
}

func TestCreateReview(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	newRouter := func(mt *mtest.T, userID primitive.ObjectID) http.Handler {
		r := newTestRouter()
		r.POST("/reviews", asUser(userID, models.RoleUser), CreateReview(mt.DB, events.LogPublisher{}))
		return r
	}

	mt.Run("reviewing yourself", func(mt *mtest.T) {
		userID := primitive.NewObjectID()
		w := performJSON(mt.T, newRouter(mt, userID), http.MethodPost, "/reviews", reviewBody(userID))
		if w.Code != http.StatusForbidden {
			mt.Fatalf("expected 403, got %d", w.Code)
		}
	})

	mt.Run("rating out of range", func(mt *mtest.T) {
		body := reviewBody(primitive.NewObjectID())
		body["rating"] = 6
		w := performJSON(mt.T, newRouter(mt, primitive.NewObjectID()), http.MethodPost, "/reviews", body)
		if w.Code != http.StatusBadRequest {
			mt.Fatalf("expected 400, got %d", w.Code)
		}
	})

	mt.Run("unknown vendor", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "expiryeaze.users", mtest.FirstBatch))
		w := performJSON(mt.T, newRouter(mt, primitive.NewObjectID()), http.MethodPost, "/reviews", reviewBody(primitive.NewObjectID()))
		if w.Code != http.StatusNotFound {
			mt.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
		}
	})

	mt.Run("second review of the same vendor", func(mt *mtest.T) {
		vendorID := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, "expiryeaze.users", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: vendorID},
				{Key: "role", Value: models.RoleVendor},
			}),
			mtest.CreateSuccessResponse(bson.E{Key: "values", Value: bson.A{}}),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key"}),
		)
		w := performJSON(mt.T, newRouter(mt, primitive.NewObjectID()), http.MethodPost, "/reviews", reviewBody(vendorID))
		if w.Code != http.StatusBadRequest {
			mt.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})
}

func TestMarkReviewHelpful(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	reviewDoc := func(id, author primitive.ObjectID, votes bson.A) bson.D {
		return bson.D{
			{Key: "_id", Value: id},
			{Key: "user", Value: author},
			{Key: "vendor", Value: primitive.NewObjectID()},
			{Key: "rating", Value: int32(5)},
			{Key: "helpful", Value: votes},
		}
	}
	notMatched := mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0})

	mt.Run("own review", func(mt *mtest.T) {
		userID := primitive.NewObjectID()
		reviewID := primitive.NewObjectID()
		mt.AddMockResponses(
			notMatched,
			notMatched,
			mtest.CreateCursorResponse(0, "expiryeaze.reviews", mtest.FirstBatch, reviewDoc(reviewID, userID, bson.A{})),
		)
		r := newTestRouter()
		r.POST("/reviews/:id/helpful", asUser(userID, models.RoleUser), MarkReviewHelpful(mt.DB))

		w := performJSON(mt.T, r, http.MethodPost, "/reviews/"+reviewID.Hex()+"/helpful", nil)
		if w.Code != http.StatusBadRequest {
			mt.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})

	mt.Run("first vote is counted", func(mt *mtest.T) {
		userID := primitive.NewObjectID()
		reviewID := primitive.NewObjectID()
		mt.AddMockResponses(
			notMatched,
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateCursorResponse(0, "expiryeaze.reviews", mtest.FirstBatch, reviewDoc(reviewID, primitive.NewObjectID(), bson.A{
				bson.D{{Key: "user", Value: userID}, {Key: "helpful", Value: true}},
				bson.D{{Key: "user", Value: primitive.NewObjectID()}, {Key: "helpful", Value: false}},
			})),
		)
		r := newTestRouter()
		r.POST("/reviews/:id/helpful", asUser(userID, models.RoleUser), MarkReviewHelpful(mt.DB))

		w := performJSON(mt.T, r, http.MethodPost, "/reviews/"+reviewID.Hex()+"/helpful", map[string]any{"helpful": true})
		if w.Code != http.StatusOK {
			mt.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		body := decodeBody(mt.T, w)
		if body["helpfulCount"] != float64(1) || body["totalVotes"] != float64(2) {
			mt.Fatalf("unexpected counts %v", body)
		}
	})
}

func TestHealth(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("database reachable", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		r := newTestRouter()
		r.GET("/health", Health(mt.DB))

		if w := performJSON(mt.T, r, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
			mt.Fatalf("expected 200, got %d", w.Code)
		}
	})
}
