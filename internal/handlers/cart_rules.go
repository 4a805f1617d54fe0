package handlers

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"expiryeaze/internal/models"
)

var errCartLineNotFound = errors.New("item not found in cart")

func isSelfPurchase(product models.Product, userID primitive.ObjectID) bool {
	return !product.Vendor.IsZero() && product.Vendor == userID
}

func cloneCartItems(items []models.CartItem) []models.CartItem {
	out := make([]models.CartItem, len(items))
	copy(out, items)
	return out
}

// mergeCartLine adds quantity to the product's line, creating it when absent.
// The input slice is never modified, so a cap violation leaves the cart as it was.
func mergeCartLine(items []models.CartItem, productID primitive.ObjectID, quantity, limit int) ([]models.CartItem, error) {
	out := cloneCartItems(items)
	for i := range out {
		if out[i].Product != productID {
			continue
		}
		merged := out[i].Quantity + quantity
		if err := checkQuantityCap(productID, merged, limit); err != nil {
			return items, err
		}
		out[i].Quantity = merged
		return out, nil
	}

	if err := checkQuantityCap(productID, quantity, limit); err != nil {
		return items, err
	}
	return append(out, models.CartItem{
		ID:       primitive.NewObjectID(),
		Product:  productID,
		Quantity: quantity,
	}), nil
}

// setCartLineQuantity overwrites a line's quantity; zero or less drops the line.
func setCartLineQuantity(items []models.CartItem, itemID primitive.ObjectID, quantity, limit int) ([]models.CartItem, error) {
	idx := -1
	for i := range items {
		if items[i].ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return items, errCartLineNotFound
	}
	if quantity <= 0 {
		return removeCartLine(items, itemID)
	}
	if err := checkQuantityCap(items[idx].Product, quantity, limit); err != nil {
		return items, err
	}

	out := cloneCartItems(items)
	out[idx].Quantity = quantity
	return out, nil
}

func removeCartLine(items []models.CartItem, itemID primitive.ObjectID) ([]models.CartItem, error) {
	out := make([]models.CartItem, 0, len(items))
	found := false
	for _, item := range items {
		if item.ID == itemID {
			found = true
			continue
		}
		out = append(out, item)
	}
	if !found {
		return items, errCartLineNotFound
	}
	return out, nil
}

// removeOrderedProducts drops every line whose product was just ordered.
func removeOrderedProducts(items []models.CartItem, ordered map[primitive.ObjectID]struct{}) []models.CartItem {
	out := make([]models.CartItem, 0, len(items))
	for _, item := range items {
		if _, ok := ordered[item.Product]; ok {
			continue
		}
		out = append(out, item)
	}
	return out
}
