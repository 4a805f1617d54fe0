package handlers

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PurchaseLimits bounds what a single buyer may put in a cart line or spend per day.
type PurchaseLimits struct {
	MaxQuantityPerProduct int
	MaxDailyPurchase      float64
}

type quantityCapError struct {
	ProductID primitive.ObjectID
	Limit     int
	Requested int
}

func (e quantityCapError) Error() string {
	return fmt.Sprintf("maximum %d units allowed per product", e.Limit)
}

type dailyLimitError struct {
	Limit     float64
	Spent     float64
	Attempted float64
}

func (e dailyLimitError) Error() string {
	return fmt.Sprintf("daily purchase limit of %.2f exceeded", e.Limit)
}

// startOfDay returns local midnight of t's day.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func checkQuantityCap(productID primitive.ObjectID, quantity, limit int) error {
	if quantity > limit {
		return quantityCapError{ProductID: productID, Limit: limit, Requested: quantity}
	}
	return nil
}

func checkDailySpend(spent, attempted, limit float64) error {
	if roundMoney(spent+attempted) > limit {
		return dailyLimitError{Limit: limit, Spent: roundMoney(spent), Attempted: roundMoney(attempted)}
	}
	return nil
}
