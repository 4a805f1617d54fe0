package handlers

import (
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"expiryeaze/internal/models"
)

func floatPtr(v float64) *float64 { return &v }

func TestMergeCartLineCreatesAndMerges(t *testing.T) {
	productID := primitive.NewObjectID()

	items, err := mergeCartLine(nil, productID, 3, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].Quantity != 3 || items[0].ID.IsZero() {
		t.Fatalf("expected one new line with quantity 3, got %+v", items)
	}

	items, err = mergeCartLine(items, productID, 4, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].Quantity != 7 {
		t.Fatalf("expected merged quantity 7 in a single line, got %+v", items)
	}
}

func TestMergeCartLineCapLeavesCartUnchanged(t *testing.T) {
	productID := primitive.NewObjectID()
	original := []models.CartItem{{ID: primitive.NewObjectID(), Product: productID, Quantity: 45}}

	items, err := mergeCartLine(original, productID, 10, 50)
	var capErr quantityCapError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected quantityCapError, got %v", err)
	}
	if capErr.Requested != 55 || capErr.Limit != 50 {
		t.Fatalf("unexpected cap error %+v", capErr)
	}
	if items[0].Quantity != 45 || original[0].Quantity != 45 {
		t.Fatalf("cart must be unchanged, got %+v", items)
	}

	if _, err := mergeCartLine(nil, productID, 51, 50); !errors.As(err, &capErr) {
		t.Fatalf("expected cap error for a fresh line above the cap, got %v", err)
	}
	if _, err := mergeCartLine(nil, productID, 50, 50); err != nil {
		t.Fatalf("quantity equal to the cap must be accepted, got %v", err)
	}
}

func TestSetCartLineQuantity(t *testing.T) {
	lineID := primitive.NewObjectID()
	items := []models.CartItem{{ID: lineID, Product: primitive.NewObjectID(), Quantity: 2}}

	updated, err := setCartLineQuantity(items, lineID, 9, 50)
	if err != nil || updated[0].Quantity != 9 {
		t.Fatalf("expected quantity 9, got %+v err=%v", updated, err)
	}
	if items[0].Quantity != 2 {
		t.Fatal("input slice must not be modified")
	}

	removed, err := setCartLineQuantity(items, lineID, 0, 50)
	if err != nil || len(removed) != 0 {
		t.Fatalf("quantity 0 must remove the line, got %+v err=%v", removed, err)
	}

	if _, err := setCartLineQuantity(items, lineID, 51, 50); err == nil {
		t.Fatal("expected cap error")
	}
	if _, err := setCartLineQuantity(items, primitive.NewObjectID(), 1, 50); !errors.Is(err, errCartLineNotFound) {
		t.Fatalf("expected errCartLineNotFound, got %v", err)
	}
}

func TestRemoveCartLineAndOrderedProducts(t *testing.T) {
	keep := models.CartItem{ID: primitive.NewObjectID(), Product: primitive.NewObjectID(), Quantity: 1}
	drop := models.CartItem{ID: primitive.NewObjectID(), Product: primitive.NewObjectID(), Quantity: 1}
	items := []models.CartItem{keep, drop}

	out, err := removeCartLine(items, drop.ID)
	if err != nil || len(out) != 1 || out[0].ID != keep.ID {
		t.Fatalf("unexpected result %+v err=%v", out, err)
	}
	if _, err := removeCartLine(items, primitive.NewObjectID()); !errors.Is(err, errCartLineNotFound) {
		t.Fatalf("expected errCartLineNotFound, got %v", err)
	}

	left := removeOrderedProducts(items, map[primitive.ObjectID]struct{}{drop.Product: {}})
	if len(left) != 1 || left[0].ID != keep.ID {
		t.Fatalf("expected only the unordered line to remain, got %+v", left)
	}
}

func TestIsSelfPurchase(t *testing.T) {
	vendor := primitive.NewObjectID()
	product := models.Product{Vendor: vendor}
	if !isSelfPurchase(product, vendor) {
		t.Fatal("vendor buying own product must be flagged")
	}
	if isSelfPurchase(product, primitive.NewObjectID()) {
		t.Fatal("other buyers must not be flagged")
	}
	if isSelfPurchase(models.Product{}, primitive.NilObjectID) {
		t.Fatal("products without a vendor must not be flagged")
	}
}

func TestStartOfDayUsesLocalMidnight(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	got := startOfDay(time.Date(2026, 3, 14, 0, 10, 0, 0, loc))
	want := time.Date(2026, 3, 14, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestCheckDailySpend(t *testing.T) {
	if err := checkDailySpend(4000, 1000, 5000); err != nil {
		t.Fatalf("reaching the limit exactly must be allowed, got %v", err)
	}

	err := checkDailySpend(4000.5, 1000, 5000)
	var limitErr dailyLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected dailyLimitError, got %v", err)
	}
	if limitErr.Limit != 5000 || limitErr.Spent != 4000.5 || limitErr.Attempted != 1000 {
		t.Fatalf("unexpected disclosure %+v", limitErr)
	}
}

func TestShippingFee(t *testing.T) {
	tests := []struct {
		option string
		lines  int
		want   float64
	}{
		{models.ShippingSelf, 3, 0},
		{models.ShippingPlatform, 1, 7},
		{models.ShippingPlatform, 4, 13},
		{models.ShippingPlatform, 5, 15},
		{models.ShippingPlatform, 20, 15},
	}
	for _, tt := range tests {
		if got := shippingFee(tt.option, tt.lines); got != tt.want {
			t.Fatalf("shippingFee(%s, %d) = %v, want %v", tt.option, tt.lines, got, tt.want)
		}
	}

	if opt, err := normalizeShippingOption(""); err != nil || opt != models.ShippingSelf {
		t.Fatalf("empty option must default to self, got %q %v", opt, err)
	}
	if _, err := normalizeShippingOption("drone"); err == nil {
		t.Fatal("unknown option must be rejected")
	}
}

func TestProductsMissingApproval(t *testing.T) {
	rx := models.Product{ID: primitive.NewObjectID(), Name: "Amoxicillin", RequiresPrescription: true}
	otc := models.Product{ID: primitive.NewObjectID(), Name: "Bread"}

	err := productsMissingApproval([]models.Product{rx, otc}, map[primitive.ObjectID]bool{})
	var rxErr prescriptionRequiredError
	if !errors.As(err, &rxErr) {
		t.Fatalf("expected prescriptionRequiredError, got %v", err)
	}
	if len(rxErr.ProductIDs) != 1 || rxErr.ProductIDs[0] != rx.ID || rxErr.Names[0] != "Amoxicillin" {
		t.Fatalf("unexpected blocked products %+v", rxErr)
	}

	if err := productsMissingApproval([]models.Product{rx, otc}, map[primitive.ObjectID]bool{rx.ID: true}); err != nil {
		t.Fatalf("approved prescription must pass the gate, got %v", err)
	}
}

func TestCanTransitionPrescription(t *testing.T) {
	allowed := [][2]string{
		{models.PrescriptionPending, models.PrescriptionApproved},
		{models.PrescriptionPending, models.PrescriptionRejected},
		{models.PrescriptionPending, models.PrescriptionNeedsClarification},
		{models.PrescriptionNeedsClarification, models.PrescriptionApproved},
	}
	for _, tr := range allowed {
		if !canTransitionPrescription(tr[0], tr[1]) {
			t.Fatalf("expected %s -> %s to be allowed", tr[0], tr[1])
		}
	}

	denied := [][2]string{
		{models.PrescriptionApproved, models.PrescriptionRejected},
		{models.PrescriptionRejected, models.PrescriptionApproved},
		{models.PrescriptionPending, models.PrescriptionPending},
		{models.PrescriptionPending, "archived"},
	}
	for _, tr := range denied {
		if canTransitionPrescription(tr[0], tr[1]) {
			t.Fatalf("expected %s -> %s to be denied", tr[0], tr[1])
		}
	}
}

func TestComputeRatingStats(t *testing.T) {
	stats := computeRatingStats([]int{5, 4, 4, 1, 9})
	if stats.NumReviews != 4 {
		t.Fatalf("expected 4 counted reviews, got %d", stats.NumReviews)
	}
	if stats.AverageRating != 3.5 {
		t.Fatalf("expected average 3.5, got %v", stats.AverageRating)
	}
	d := stats.RatingDistribution
	if d.One != 1 || d.Two != 0 || d.Three != 0 || d.Four != 2 || d.Five != 1 {
		t.Fatalf("unexpected distribution %+v", d)
	}

	if got := computeRatingStats([]int{5, 4, 4}).AverageRating; got != 4.3 {
		t.Fatalf("expected rounding to one decimal (4.3), got %v", got)
	}
	if empty := computeRatingStats(nil); empty.NumReviews != 0 || empty.AverageRating != 0 {
		t.Fatalf("expected zero stats, got %+v", empty)
	}
}

func TestIsStrongPassword(t *testing.T) {
	tests := map[string]bool{
		"Passw0rd!":  true,
		"Abcdef1@":   true,
		"short1A!":   true,
		"Sh0rt!":     false,
		"password1!": false,
		"PASSWORD1!": false,
		"Password!!": false,
		"Password12": false,
		"Passw0rd#!": false,
		"Pass w0rd!": false,
		"Pässw0rd!x": false,
	}
	for password, want := range tests {
		if got := isStrongPassword(password); got != want {
			t.Fatalf("isStrongPassword(%q) = %v, want %v", password, got, want)
		}
	}
}

func TestProductPricingAndEffectivePrice(t *testing.T) {
	if err := validateProductPricing(100, nil); err != nil {
		t.Fatalf("no discount must be valid, got %v", err)
	}
	for _, d := range []float64{0, -1, 100, 120} {
		if err := validateProductPricing(100, floatPtr(d)); err == nil {
			t.Fatalf("expected error for discountedPrice=%v", d)
		}
	}
	if err := validateProductPricing(0, nil); err == nil {
		t.Fatal("expected error for zero price")
	}

	if got := effectiveProductPrice(100, floatPtr(75)); got != 75 {
		t.Fatalf("expected discounted price 75, got %v", got)
	}
	if got := effectiveProductPrice(100, nil); got != 100 {
		t.Fatalf("expected regular price, got %v", got)
	}
	if got := effectiveProductPrice(100, floatPtr(150)); got != 100 {
		t.Fatalf("invalid discount must fall back to price, got %v", got)
	}
}

func TestExpiryRules(t *testing.T) {
	now := time.Date(2026, 5, 10, 15, 0, 0, 0, time.Local)
	earlierToday := time.Date(2026, 5, 10, 1, 0, 0, 0, time.Local)
	yesterday := now.AddDate(0, 0, -1)
	nextWeek := now.AddDate(0, 0, 7)
	nextMonth := now.AddDate(0, 1, 0)

	if err := validateNewExpiry(earlierToday, now); err != nil {
		t.Fatalf("today must be accepted, got %v", err)
	}
	if err := validateNewExpiry(yesterday, now); !errors.Is(err, errExpiryInPast) {
		t.Fatalf("expected errExpiryInPast, got %v", err)
	}

	if err := validateExpiryUpdate(nextMonth, nextWeek, now); err != nil {
		t.Fatalf("moving expiry earlier must be allowed, got %v", err)
	}
	if err := validateExpiryUpdate(nextWeek, nextWeek, now); err != nil {
		t.Fatalf("keeping expiry must be allowed, got %v", err)
	}
	if err := validateExpiryUpdate(nextWeek, nextMonth, now); !errors.Is(err, errExpiryExtended) {
		t.Fatalf("expected errExpiryExtended, got %v", err)
	}
	if err := validateExpiryUpdate(nextWeek, yesterday, now); !errors.Is(err, errExpiryInPast) {
		t.Fatalf("expected errExpiryInPast, got %v", err)
	}
}

func TestExpiryPhotoIsWriteOnce(t *testing.T) {
	if err := validateExpiryPhotoUpdate("", "uploads/a.jpg"); err != nil {
		t.Fatalf("first upload must be accepted, got %v", err)
	}
	if err := validateExpiryPhotoUpdate("uploads/a.jpg", "uploads/a.jpg"); err != nil {
		t.Fatalf("same value must be accepted, got %v", err)
	}
	if err := validateExpiryPhotoUpdate("uploads/a.jpg", "uploads/b.jpg"); !errors.Is(err, errExpiryPhotoLocked) {
		t.Fatalf("expected errExpiryPhotoLocked, got %v", err)
	}
}

func TestResolveProductUpdate(t *testing.T) {
	now := time.Now()
	existing := models.Product{
		Price:           100,
		DiscountedPrice: floatPtr(80),
		ExpiryDate:      now.AddDate(0, 0, 10),
		ExpiryPhoto:     "uploads/expiry.jpg",
	}

	set, err := resolveProductUpdate(existing, ProductUpdateRequest{
		DiscountedPrice: optionalFloat{Set: true, Value: nil},
	}, now)
	if err != nil {
		t.Fatalf("clearing the discount must be allowed, got %v", err)
	}
	if v, ok := set["discountedPrice"]; !ok || v.(*float64) != nil {
		t.Fatalf("expected discountedPrice to be cleared, got %v", set)
	}

	lower := 70.0
	if _, err := resolveProductUpdate(existing, ProductUpdateRequest{Price: &lower}, now); err == nil {
		t.Fatal("lowering price below the existing discount must be rejected")
	}

	later := now.AddDate(0, 0, 20)
	if _, err := resolveProductUpdate(existing, ProductUpdateRequest{ExpiryDate: &later}, now); !errors.Is(err, errExpiryExtended) {
		t.Fatalf("expected errExpiryExtended, got %v", err)
	}

	photo := "uploads/other.jpg"
	if _, err := resolveProductUpdate(existing, ProductUpdateRequest{ExpiryPhoto: &photo}, now); !errors.Is(err, errExpiryPhotoLocked) {
		t.Fatalf("expected errExpiryPhotoLocked, got %v", err)
	}

	category := "Dairy"
	set, err = resolveProductUpdate(existing, ProductUpdateRequest{Category: &category}, now)
	if err != nil || set["category"] != "dairy" {
		t.Fatalf("expected normalized category, got %v err=%v", set, err)
	}
	unknown := "weapons"
	if _, err := resolveProductUpdate(existing, ProductUpdateRequest{Category: &unknown}, now); err == nil {
		t.Fatal("unknown category must be rejected")
	}
}

func TestMergeOrderLinesAndPricing(t *testing.T) {
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()

	lines, err := mergeOrderLines([]orderLineRequest{
		{Product: a.Hex(), Quantity: 2},
		{Product: b.Hex(), Quantity: 1},
		{Product: a.Hex(), Quantity: 3},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 2 || lines[0].ProductID != a || lines[0].Quantity != 5 || lines[1].ProductID != b {
		t.Fatalf("unexpected merged lines %+v", lines)
	}

	if _, err := mergeOrderLines([]orderLineRequest{{Product: "nope", Quantity: 1}}); err == nil {
		t.Fatal("expected invalid product id error")
	}

	priced, subtotal := priceOrderLines(lines, map[primitive.ObjectID]models.Product{
		a: {ID: a, Name: "Milk", Price: 3, DiscountedPrice: floatPtr(2.5)},
		b: {ID: b, Name: "Bread", Price: 4.2},
	})
	if subtotal != 16.7 {
		t.Fatalf("expected subtotal 16.7, got %v", subtotal)
	}
	if priced[0].Price != 2.5 || priced[0].Name != "Milk" || priced[1].Price != 4.2 {
		t.Fatalf("unexpected priced lines %+v", priced)
	}
}

func TestOTPMatches(t *testing.T) {
	now := time.Now()
	future := now.Add(5 * time.Minute)
	past := now.Add(-time.Minute)

	user := models.User{ResetOTPHash: hashToken("123456"), ResetOTPExpiresAt: &future}
	if !otpMatches(user, "123456", now) {
		t.Fatal("expected matching OTP")
	}
	if otpMatches(user, "654321", now) {
		t.Fatal("wrong OTP must not match")
	}

	user.ResetOTPExpiresAt = &past
	if otpMatches(user, "123456", now) {
		t.Fatal("expired OTP must not match")
	}
	if otpMatches(models.User{}, "123456", now) {
		t.Fatal("user without OTP must not match")
	}

	otp, err := generateOTP()
	if err != nil || len(otp) != 6 || otp[0] == '0' {
		t.Fatalf("expected six-digit OTP, got %q err=%v", otp, err)
	}
}

func TestParsePaginationParams(t *testing.T) {
	page, limit, err := parsePaginationParams("", "")
	if err != nil || page != 1 || limit != 20 {
		t.Fatalf("unexpected defaults %d %d %v", page, limit, err)
	}
	if _, limit, _ := parsePaginationParams("2", "500"); limit != maxPageLimit {
		t.Fatalf("expected limit capped at %d, got %d", maxPageLimit, limit)
	}
	for _, bad := range [][2]string{{"0", "10"}, {"x", "10"}, {"1", "-3"}} {
		if _, _, err := parsePaginationParams(bad[0], bad[1]); !errors.Is(err, errInvalidPagination) {
			t.Fatalf("expected errInvalidPagination for %v, got %v", bad, err)
		}
	}
	if got := totalPages(41, 20); got != 3 {
		t.Fatalf("expected 3 pages, got %d", got)
	}
}
