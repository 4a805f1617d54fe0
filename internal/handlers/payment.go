package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"expiryeaze/internal/payment"
)

type createPaymentOrderRequest struct {
	Amount   int64  `json:"amount" binding:"required,gt=0"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type verifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

// CreatePaymentOrder opens a gateway order; amount is in the currency's smallest unit.
func CreatePaymentOrder(gateway payment.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /payment/order"
		defer handlePanic(c, route)

		var req createPaymentOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "amount must be a positive integer in the smallest currency unit")
			return
		}

		currency := strings.ToUpper(strings.TrimSpace(req.Currency))
		if currency == "" {
			currency = "INR"
		}
		receipt := strings.TrimSpace(req.Receipt)
		if receipt == "" {
			receipt = fmt.Sprintf("receipt_%d", time.Now().UnixMilli())
		}

		order, err := gateway.CreateOrder(c.Request.Context(), req.Amount, currency, receipt)
		if err != nil {
			if errors.Is(err, payment.ErrGatewayNotConfigured) {
				respondWithError(c, http.StatusInternalServerError, route, "payment gateway is not configured")
				return
			}
			log.Println("[PAYMENT] [ERROR] create order failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "failed to create payment order")
			return
		}

		log.Printf("[PAYMENT] [INFO] gateway order %s created amount=%d %s", order.ID, order.Amount, order.Currency)
		c.JSON(http.StatusCreated, gin.H{
			"success":  true,
			"orderId":  order.ID,
			"amount":   order.Amount,
			"currency": order.Currency,
			"keyId":    gateway.KeyID(),
		})
	}
}

func VerifyPayment(gateway payment.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /payment/verify"
		defer handlePanic(c, route)

		var req verifyPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid body")
			return
		}
		if strings.TrimSpace(req.RazorpayOrderID) == "" ||
			strings.TrimSpace(req.RazorpayPaymentID) == "" ||
			strings.TrimSpace(req.RazorpaySignature) == "" {
			respondWithError(c, http.StatusBadRequest, route, "razorpay_order_id, razorpay_payment_id and razorpay_signature are required")
			return
		}

		secret := gateway.KeySecret()
		if secret == "" {
			respondWithError(c, http.StatusInternalServerError, route, "payment verification is not configured")
			return
		}

		if !payment.VerifySignature(secret, req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
			respondWithError(c, http.StatusBadRequest, route, "Invalid payment signature")
			return
		}

		log.Printf("[PAYMENT] [INFO] payment %s verified for order %s", req.RazorpayPaymentID, req.RazorpayOrderID)
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"message":   "Payment verified successfully",
			"orderId":   req.RazorpayOrderID,
			"paymentId": req.RazorpayPaymentID,
		})
	}
}
