package handlers

import (
	"fmt"
	"math"

	"expiryeaze/internal/models"
)

const (
	platformShippingBase    = 5.0
	platformShippingPerLine = 2.0
	platformShippingMax     = 15.0
)

func normalizeShippingOption(option string) (string, error) {
	switch option {
	case "", models.ShippingSelf:
		return models.ShippingSelf, nil
	case models.ShippingPlatform:
		return models.ShippingPlatform, nil
	default:
		return "", fmt.Errorf("shippingOption must be %q or %q", models.ShippingSelf, models.ShippingPlatform)
	}
}

func shippingFee(option string, lines int) float64 {
	if option != models.ShippingPlatform || lines <= 0 {
		return 0
	}
	return math.Min(platformShippingBase+platformShippingPerLine*float64(lines), platformShippingMax)
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
