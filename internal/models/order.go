package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ShippingSelf     = "self"
	ShippingPlatform = "platform"

	OrderStatusPlaced = "placed"
)

// OrderLine snapshots the product price at the time the order was placed.
type OrderLine struct {
	Product  primitive.ObjectID `bson:"product" json:"product"`
	Name     string             `bson:"name" json:"name"`
	Quantity int                `bson:"quantity" json:"quantity"`
	Price    float64            `bson:"price" json:"price"`
}

// OrderPayment records the verified gateway payment backing an order.
type OrderPayment struct {
	GatewayOrderID string    `bson:"gatewayOrderId" json:"gatewayOrderId"`
	PaymentID      string    `bson:"paymentId" json:"paymentId"`
	VerifiedAt     time.Time `bson:"verifiedAt" json:"verifiedAt"`
}

// Order defines the persisted order document.
type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User            primitive.ObjectID `bson:"user" json:"user"`
	Products        []OrderLine        `bson:"products" json:"products"`
	Subtotal        float64            `bson:"subtotal" json:"subtotal"`
	ShippingOption  string             `bson:"shippingOption" json:"shippingOption"`
	ShippingFee     float64            `bson:"shippingFee" json:"shippingFee"`
	TotalAmount     float64            `bson:"totalAmount" json:"totalAmount"`
	ShippingAddress string             `bson:"shippingAddress" json:"shippingAddress"`
	Payment         *OrderPayment      `bson:"payment,omitempty" json:"payment,omitempty"`
	Status          string             `bson:"status" json:"status"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
}
