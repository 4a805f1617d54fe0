package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"expiryeaze/internal/events"
	"expiryeaze/internal/models"
	"expiryeaze/internal/payment"
)

/* =========================
   REQUEST DTOs
========================= */

type orderLineRequest struct {
	Product  string `json:"product" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}

type orderPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string `json:"razorpay_signature" binding:"required"`
}

type placeOrderRequest struct {
	Products        []orderLineRequest   `json:"products" binding:"required,min=1,dive"`
	ShippingAddress string               `json:"shippingAddress" binding:"required"`
	ShippingOption  string               `json:"shippingOption"`
	Payment         *orderPaymentRequest `json:"payment"`
}

type orderLineInput struct {
	ProductID primitive.ObjectID
	Quantity  int
}

type outOfStockError struct {
	ProductID primitive.ObjectID
	Available int
	Requested int
}

func (e outOfStockError) Error() string {
	return "product out of stock"
}

type productNotFoundError struct {
	ProductID primitive.ObjectID
}

func (e productNotFoundError) Error() string {
	return "product not found"
}

var errBuyerNotFound = errors.New("buyer account not found")

// mergeOrderLines parses product ids and folds repeated products into one line, keeping first-seen order.
func mergeOrderLines(lines []orderLineRequest) ([]orderLineInput, error) {
	merged := make([]orderLineInput, 0, len(lines))
	index := make(map[primitive.ObjectID]int, len(lines))
	for _, line := range lines {
		productID, err := primitive.ObjectIDFromHex(strings.TrimSpace(line.Product))
		if err != nil {
			return nil, errors.New("invalid product id")
		}
		if i, ok := index[productID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[productID] = len(merged)
		merged = append(merged, orderLineInput{ProductID: productID, Quantity: line.Quantity})
	}
	return merged, nil
}

// priceOrderLines snapshots server-side prices; products must hold every line's product.
func priceOrderLines(lines []orderLineInput, products map[primitive.ObjectID]models.Product) ([]models.OrderLine, float64) {
	priced := make([]models.OrderLine, 0, len(lines))
	subtotal := 0.0
	for _, line := range lines {
		product := products[line.ProductID]
		unit := effectiveProductPrice(product.Price, product.DiscountedPrice)
		priced = append(priced, models.OrderLine{
			Product:  line.ProductID,
			Name:     product.Name,
			Quantity: line.Quantity,
			Price:    unit,
		})
		subtotal += unit * float64(line.Quantity)
	}
	return priced, roundMoney(subtotal)
}

func loadOrderProducts(ctx context.Context, db *mongo.Database, lines []orderLineInput) (map[primitive.ObjectID]models.Product, error) {
	ids := make([]primitive.ObjectID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}

	cursor, err := db.Collection("products").Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	products, err := decodeProducts(ctx, cursor)
	if err != nil {
		return nil, err
	}

	byID := make(map[primitive.ObjectID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, productNotFoundError{ProductID: id}
		}
	}
	return byID, nil
}

func approvedPrescriptionProducts(ctx context.Context, db *mongo.Database, userID primitive.ObjectID, productIDs []primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	approved := make(map[primitive.ObjectID]bool)
	if len(productIDs) == 0 {
		return approved, nil
	}

	cursor, err := db.Collection("prescriptions").Find(ctx, bson.M{
		"user":               userID,
		"product":            bson.M{"$in": productIDs},
		"verificationStatus": models.PrescriptionApproved,
	}, options.Find().SetProjection(bson.M{"product": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var rx struct {
			Product primitive.ObjectID `bson:"product"`
		}
		if err := cursor.Decode(&rx); err != nil {
			return nil, err
		}
		approved[rx.Product] = true
	}
	return approved, cursor.Err()
}

func spentSince(ctx context.Context, db *mongo.Database, userID primitive.ObjectID, since time.Time) (float64, error) {
	cursor, err := db.Collection("orders").Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user": userID, "createdAt": bson.M{"$gte": since}}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$totalAmount"}}}},
	})
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Total float64 `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

/* =========================
   PLACE ORDER
========================= */

func PlaceOrder(db *mongo.Database, limits PurchaseLimits, paymentSecret string, publisher events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders"
		defer handlePanic(c, route)

		userID, _, ok := currentUser(c, route)
		if !ok {
			return
		}

		var req placeOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		shippingAddress := strings.TrimSpace(req.ShippingAddress)
		if shippingAddress == "" {
			respondWithError(c, http.StatusBadRequest, route, "shippingAddress is required")
			return
		}
		shippingOption, err := normalizeShippingOption(strings.TrimSpace(req.ShippingOption))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		lines, err := mergeOrderLines(req.Products)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		for _, line := range lines {
			if err := checkQuantityCap(line.ProductID, line.Quantity, limits.MaxQuantityPerProduct); err != nil {
				var capErr quantityCapError
				errors.As(err, &capErr)
				respondWithDetails(c, http.StatusBadRequest, route, capErr.Error(), gin.H{
					"productId": capErr.ProductID.Hex(),
					"limit":     capErr.Limit,
					"requested": capErr.Requested,
				})
				return
			}
		}

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		products, err := loadOrderProducts(ctx, db, lines)
		if err != nil {
			var notFoundErr productNotFoundError
			if errors.As(err, &notFoundErr) {
				respondWithDetails(c, http.StatusNotFound, route, "Product not found", gin.H{"productId": notFoundErr.ProductID.Hex()})
				return
			}
			log.Println("[ORDER] [ERROR] product lookup failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		ordered := make([]models.Product, 0, len(lines))
		rxProducts := make([]primitive.ObjectID, 0)
		for _, line := range lines {
			product := products[line.ProductID]
			if isSelfPurchase(product, userID) {
				respondWithError(c, http.StatusForbidden, route, "Vendors cannot purchase their own products")
				return
			}
			if product.RequiresPrescription {
				rxProducts = append(rxProducts, product.ID)
			}
			ordered = append(ordered, product)
		}

		approved, err := approvedPrescriptionProducts(ctx, db, userID, rxProducts)
		if err != nil {
			log.Println("[ORDER] [ERROR] prescription lookup failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if err := productsMissingApproval(ordered, approved); err != nil {
			var rxErr prescriptionRequiredError
			errors.As(err, &rxErr)
			ids := make([]string, 0, len(rxErr.ProductIDs))
			for _, id := range rxErr.ProductIDs {
				ids = append(ids, id.Hex())
			}
			respondWithDetails(c, http.StatusForbidden, route, "An approved prescription is required for some products", gin.H{
				"products":     rxErr.Names,
				"productIds":   ids,
				"prescription": true,
			})
			return
		}

		orderLines, subtotal := priceOrderLines(lines, products)
		fee := shippingFee(shippingOption, len(orderLines))
		order := models.Order{
			User:            userID,
			Products:        orderLines,
			Subtotal:        subtotal,
			ShippingOption:  shippingOption,
			ShippingFee:     fee,
			TotalAmount:     roundMoney(subtotal + fee),
			ShippingAddress: shippingAddress,
			Status:          models.OrderStatusPlaced,
			CreatedAt:       time.Now(),
		}

		if req.Payment != nil {
			if paymentSecret == "" {
				respondWithError(c, http.StatusInternalServerError, route, "payment verification is not configured")
				return
			}
			if !payment.VerifySignature(paymentSecret, req.Payment.RazorpayOrderID, req.Payment.RazorpayPaymentID, req.Payment.RazorpaySignature) {
				respondWithError(c, http.StatusBadRequest, route, "Invalid payment signature")
				return
			}
			order.Payment = &models.OrderPayment{
				GatewayOrderID: req.Payment.RazorpayOrderID,
				PaymentID:      req.Payment.RazorpayPaymentID,
				VerifiedAt:     time.Now(),
			}
		}

		session, err := db.Client().StartSession()
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer session.EndSession(ctx)

		_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
			// Writing the buyer document makes concurrent orders of the same buyer conflict.
			res, err := db.Collection("users").UpdateOne(sessCtx, bson.M{"_id": userID}, bson.M{"$inc": bson.M{"orderSeq": 1}})
			if err != nil {
				return nil, err
			}
			if res.MatchedCount == 0 {
				return nil, errBuyerNotFound
			}

			spent, err := spentSince(sessCtx, db, userID, startOfDay(order.CreatedAt))
			if err != nil {
				return nil, err
			}
			if err := checkDailySpend(spent, order.TotalAmount, limits.MaxDailyPurchase); err != nil {
				return nil, err
			}

			for _, line := range order.Products {
				res, err := db.Collection("products").UpdateOne(sessCtx,
					bson.M{"_id": line.Product, "stock": bson.M{"$gte": line.Quantity}},
					bson.M{"$inc": bson.M{"stock": -line.Quantity}, "$set": bson.M{"updatedAt": order.CreatedAt}},
				)
				if err != nil {
					return nil, err
				}
				if res.MatchedCount == 0 {
					return nil, outOfStockError{
						ProductID: line.Product,
						Available: products[line.Product].Stock,
						Requested: line.Quantity,
					}
				}
			}

			inserted, err := db.Collection("orders").InsertOne(sessCtx, order)
			if err != nil {
				return nil, err
			}
			if id, ok := inserted.InsertedID.(primitive.ObjectID); ok {
				order.ID = id
			}
			return nil, nil
		})
		if err != nil {
			var limitErr dailyLimitError
			var stockErr outOfStockError
			switch {
			case errors.As(err, &limitErr):
				respondWithDetails(c, http.StatusBadRequest, route, "Daily purchase limit exceeded", gin.H{
					"limit":     limitErr.Limit,
					"spent":     limitErr.Spent,
					"attempted": limitErr.Attempted,
				})
			case errors.As(err, &stockErr):
				respondWithDetails(c, http.StatusBadRequest, route, "Insufficient stock", gin.H{
					"productId": stockErr.ProductID.Hex(),
					"available": stockErr.Available,
					"requested": stockErr.Requested,
				})
			case errors.Is(err, errBuyerNotFound):
				respondWithError(c, http.StatusUnauthorized, route, "user not found")
			default:
				log.Println("[ORDER] [ERROR] transaction failed:", err)
				respondWithError(c, http.StatusInternalServerError, route, "db error")
			}
			return
		}

		log.Printf("[ORDER] [INFO] order %s placed by %s total=%.2f", order.ID.Hex(), userID.Hex(), order.TotalAmount)

		afterOrderPlaced(c.Request.Context(), db, publisher, order)

		c.JSON(http.StatusCreated, gin.H{"success": true, "order": order})
	}
}

// afterOrderPlaced runs the best-effort follow-ups; its failures never reach the buyer.
func afterOrderPlaced(parent context.Context, db *mongo.Database, publisher events.Publisher, order models.Order) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), storeTimeout)
	defer cancel()

	ordered := make(map[primitive.ObjectID]struct{}, len(order.Products))
	for _, line := range order.Products {
		ordered[line.Product] = struct{}{}
	}
	_, err := mutateCart(ctx, db, order.User, false, func(items []models.CartItem) ([]models.CartItem, error) {
		return removeOrderedProducts(items, ordered), nil
	})
	if err != nil && !errors.Is(err, errCartNotFound) {
		log.Println("[ORDER] [ERROR] cart cleanup failed:", err)
	}

	publish(ctx, publisher, events.OrderPlaced, order.ID.Hex(), gin.H{
		"orderId":     order.ID.Hex(),
		"userId":      order.User.Hex(),
		"totalAmount": order.TotalAmount,
		"lines":       len(order.Products),
		"paid":        order.Payment != nil,
		"createdAt":   order.CreatedAt,
	})
}

/* =========================
   GET ORDERS
========================= */

func GetOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders"
		defer handlePanic(c, route)

		userID, _, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		cursor, err := db.Collection("orders").Find(ctx,
			bson.M{"user": userID},
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "Orders could not be fetched")
			return
		}
		defer cursor.Close(ctx)

		orders := make([]models.Order, 0)
		if err := cursor.All(ctx, &orders); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "Failed to parse orders")
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "count": len(orders), "orders": orders})
	}
}

func GetOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/:id"
		defer handlePanic(c, route)

		userID, role, ok := currentUser(c, route)
		if !ok {
			return
		}
		orderID, ok := objectIDParam(c, route, "id")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		var order models.Order
		err := db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&order)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if order.User != userID && !isAdmin(role) {
			respondWithError(c, http.StatusForbidden, route, "not allowed to view this order")
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
	}
}
