package database

import (
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func indexFailure() mtest.CommandError {
	return mtest.CommandError{Code: 11000, Name: "DuplicateKey", Message: "E11000 duplicate key error"}
}

func TestEnsureIndexesContinuesPastFailures(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("optional failure does not stop later indexes", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(indexFailure()))
		for i := 1; i < len(indexSpecs); i++ {
			mt.AddMockResponses(mtest.CreateSuccessResponse())
		}

		err := EnsureIndexes(mt.DB)
		var idxErr *IndexErrors
		if !errors.As(err, &idxErr) {
			mt.Fatalf("expected *IndexErrors, got %v", err)
		}
		if idxErr.Fatal() || len(idxErr.Optional) != 1 {
			mt.Fatalf("expected one optional failure, got %+v", idxErr)
		}
	})

	mt.Run("required failure is fatal", func(mt *mtest.T) {
		for _, spec := range indexSpecs {
			if indexName(spec.model) == "user_vendor_unique" {
				mt.AddMockResponses(mtest.CreateCommandErrorResponse(indexFailure()))
				continue
			}
			mt.AddMockResponses(mtest.CreateSuccessResponse())
		}

		err := EnsureIndexes(mt.DB)
		var idxErr *IndexErrors
		if !errors.As(err, &idxErr) || !idxErr.Fatal() || len(idxErr.Required) != 1 {
			mt.Fatalf("expected one required failure, got %v", err)
		}
	})

	mt.Run("all created", func(mt *mtest.T) {
		for range indexSpecs {
			mt.AddMockResponses(mtest.CreateSuccessResponse())
		}
		if err := EnsureIndexes(mt.DB); err != nil {
			mt.Fatalf("unexpected error %v", err)
		}
	})
}

func TestUniqueInvariantIndexesAreRequired(t *testing.T) {
	required := map[string]bool{}
	for _, spec := range indexSpecs {
		if spec.required {
			required[spec.collection+"."+indexName(spec.model)] = true
		}
	}
	for _, name := range []string{"reviews.user_vendor_unique", "carts.user_unique", "waitlist.email_role_unique"} {
		if !required[name] {
			t.Fatalf("%s must be required", name)
		}
	}
}
