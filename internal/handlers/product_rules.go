package handlers

import (
	"errors"
	"fmt"
	"time"
)

var (
	errExpiryInPast      = errors.New("expiry date cannot be in the past")
	errExpiryExtended    = errors.New("expiry date can only be moved earlier or kept the same")
	errExpiryPhotoLocked = errors.New("expiry photo cannot be changed once uploaded")
)

func isProductDiscounted(price float64, discountedPrice *float64) bool {
	return discountedPrice != nil && *discountedPrice > 0 && *discountedPrice < price
}

// effectiveProductPrice is the unit price a buyer pays.
func effectiveProductPrice(price float64, discountedPrice *float64) float64 {
	if isProductDiscounted(price, discountedPrice) {
		return *discountedPrice
	}
	return price
}

func validateProductPricing(price float64, discountedPrice *float64) error {
	if price <= 0 {
		return fmt.Errorf("price must be greater than 0")
	}
	if discountedPrice == nil {
		return nil
	}
	if *discountedPrice <= 0 {
		return fmt.Errorf("discountedPrice must be greater than 0")
	}
	if *discountedPrice >= price {
		return fmt.Errorf("discountedPrice must be less than price")
	}
	return nil
}

func validateNewExpiry(expiry, now time.Time) error {
	if expiry.Before(startOfDay(now)) {
		return errExpiryInPast
	}
	return nil
}

// validateExpiryUpdate allows moving the date earlier (never into the past) or keeping it.
func validateExpiryUpdate(current, next, now time.Time) error {
	if err := validateNewExpiry(next, now); err != nil {
		return err
	}
	if next.After(current) {
		return errExpiryExtended
	}
	return nil
}

func validateExpiryPhotoUpdate(current, next string) error {
	if current != "" && next != "" && next != current {
		return errExpiryPhotoLocked
	}
	return nil
}
