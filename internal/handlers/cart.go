package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"expiryeaze/internal/models"
)

const cartWriteAttempts = 3

var (
	errCartNotFound = errors.New("cart not found")
	errCartConflict = errors.New("cart was modified concurrently")
)

/* =========================
   REQUEST DTOs
========================= */

type addCartItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"omitempty,min=1"`
}

type updateCartItemRequest struct {
	ItemID   string `json:"itemId" binding:"required"`
	Quantity int    `json:"quantity"`
}

type removeCartItemRequest struct {
	ItemID string `json:"itemId" binding:"required"`
}

type cartLineView struct {
	ID        primitive.ObjectID `json:"id"`
	ProductID primitive.ObjectID `json:"productId"`
	Product   *models.Product    `json:"product,omitempty"`
	Quantity  int                `json:"quantity"`
}

type cartView struct {
	User      primitive.ObjectID `json:"user"`
	Items     []cartLineView     `json:"items"`
	UpdatedAt time.Time          `json:"updatedAt,omitempty"`
}

/* =========================
   STORE
========================= */

func loadCart(ctx context.Context, db *mongo.Database, userID primitive.ObjectID) (models.Cart, bool, error) {
	var cart models.Cart
	err := db.Collection("carts").FindOne(ctx, bson.M{"user": userID}).Decode(&cart)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Cart{User: userID, Items: []models.CartItem{}}, false, nil
	}
	if err != nil {
		return models.Cart{}, false, err
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return cart, true, nil
}

// saveCart writes the cart only if nobody else wrote it since it was loaded.
func saveCart(ctx context.Context, db *mongo.Database, cart models.Cart, existed bool) error {
	carts := db.Collection("carts")
	if !existed {
		cart.Version = 1
		if _, err := carts.InsertOne(ctx, cart); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return errCartConflict
			}
			return err
		}
		return nil
	}

	res, err := carts.UpdateOne(ctx,
		bson.M{"_id": cart.ID, "version": cart.Version},
		bson.M{
			"$set": bson.M{"items": cart.Items, "updatedAt": cart.UpdatedAt},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errCartConflict
	}
	return nil
}

// mutateCart applies mutate to the freshest cart, retrying when a concurrent write wins.
func mutateCart(
	ctx context.Context,
	db *mongo.Database,
	userID primitive.ObjectID,
	createIfMissing bool,
	mutate func([]models.CartItem) ([]models.CartItem, error),
) (models.Cart, error) {
	for attempt := 1; attempt <= cartWriteAttempts; attempt++ {
		cart, existed, err := loadCart(ctx, db, userID)
		if err != nil {
			return models.Cart{}, err
		}
		if !existed {
			if !createIfMissing {
				return models.Cart{}, errCartNotFound
			}
			cart.ID = primitive.NewObjectID()
		}

		items, err := mutate(cart.Items)
		if err != nil {
			return models.Cart{}, err
		}
		cart.Items = items
		cart.UpdatedAt = time.Now()

		err = saveCart(ctx, db, cart, existed)
		if errors.Is(err, errCartConflict) {
			log.Printf("[CART] [INFO] write conflict for user %s, attempt %d", userID.Hex(), attempt)
			continue
		}
		if err != nil {
			return models.Cart{}, err
		}
		cart.Version++
		return cart, nil
	}
	return models.Cart{}, errCartConflict
}

func buildCartView(ctx context.Context, db *mongo.Database, cart models.Cart) (cartView, error) {
	view := cartView{User: cart.User, Items: make([]cartLineView, 0, len(cart.Items)), UpdatedAt: cart.UpdatedAt}
	if len(cart.Items) == 0 {
		return view, nil
	}

	ids := make([]primitive.ObjectID, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.Product)
	}

	cursor, err := db.Collection("products").Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return cartView{}, err
	}
	defer cursor.Close(ctx)

	products, err := decodeProducts(ctx, cursor)
	if err != nil {
		return cartView{}, err
	}
	byID := make(map[primitive.ObjectID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	for _, item := range cart.Items {
		view.Items = append(view.Items, cartLineView{
			ID:        item.ID,
			ProductID: item.Product,
			Product:   byID[item.Product],
			Quantity:  item.Quantity,
		})
	}
	return view, nil
}

func respondWithCart(c *gin.Context, ctx context.Context, db *mongo.Database, route string, cart models.Cart) {
	view, err := buildCartView(ctx, db, cart)
	if err != nil {
		log.Println("[CART] [ERROR] cart product lookup failed:", err)
		respondWithError(c, http.StatusInternalServerError, route, "db error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cart": view})
}

func respondCartMutationError(c *gin.Context, route string, err error) {
	var capErr quantityCapError
	switch {
	case errors.As(err, &capErr):
		respondWithDetails(c, http.StatusBadRequest, route, capErr.Error(), gin.H{
			"productId": capErr.ProductID.Hex(),
			"limit":     capErr.Limit,
			"requested": capErr.Requested,
		})
	case errors.Is(err, errCartNotFound):
		respondWithError(c, http.StatusNotFound, route, "Cart not found")
	case errors.Is(err, errCartLineNotFound):
		respondWithError(c, http.StatusNotFound, route, "Item not found in cart")
	case errors.Is(err, errCartConflict):
		respondWithError(c, http.StatusConflict, route, "cart was modified concurrently, please retry")
	default:
		log.Println("[CART] [ERROR] cart write failed:", err)
		respondWithError(c, http.StatusInternalServerError, route, "db error")
	}
}

/* =========================
   HANDLERS
========================= */

func GetCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /cart"
		defer handlePanic(c, route)

		userID, _, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		cart, _, err := loadCart(ctx, db, userID)
		if err != nil {
			log.Println("[CART] [ERROR] load failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		respondWithCart(c, ctx, db, route, cart)
	}
}

func AddToCart(db *mongo.Database, limits PurchaseLimits) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /cart"
		defer handlePanic(c, route)

		userID, _, ok := currentUser(c, route)
		if !ok {
			return
		}

		var req addCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		if req.Quantity == 0 {
			req.Quantity = 1
		}

		productID, err := primitive.ObjectIDFromHex(req.ProductID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid productId")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		product, err := findProduct(ctx, db, bson.M{"_id": productID})
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "Product not found")
			return
		}
		if err != nil {
			log.Println("[CART] [ERROR] product lookup failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if isSelfPurchase(product, userID) {
			respondWithError(c, http.StatusForbidden, route, "Vendors cannot purchase their own products")
			return
		}

		cart, err := mutateCart(ctx, db, userID, true, func(items []models.CartItem) ([]models.CartItem, error) {
			return mergeCartLine(items, productID, req.Quantity, limits.MaxQuantityPerProduct)
		})
		if err != nil {
			respondCartMutationError(c, route, err)
			return
		}

		log.Printf("[CART] [INFO] user %s added %d x %s", userID.Hex(), req.Quantity, productID.Hex())
		respondWithCart(c, ctx, db, route, cart)
	}
}

func UpdateCartItem(db *mongo.Database, limits PurchaseLimits) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /cart"
		defer handlePanic(c, route)

		userID, _, ok := currentUser(c, route)
		if !ok {
			return
		}

		var req updateCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		itemID, err := primitive.ObjectIDFromHex(req.ItemID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid itemId")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		cart, err := mutateCart(ctx, db, userID, false, func(items []models.CartItem) ([]models.CartItem, error) {
			return setCartLineQuantity(items, itemID, req.Quantity, limits.MaxQuantityPerProduct)
		})
		if err != nil {
			respondCartMutationError(c, route, err)
			return
		}

		respondWithCart(c, ctx, db, route, cart)
	}
}

func RemoveCartItem(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /cart"
		defer handlePanic(c, route)

		userID, _, ok := currentUser(c, route)
		if !ok {
			return
		}

		var req removeCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		itemID, err := primitive.ObjectIDFromHex(req.ItemID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid itemId")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		cart, err := mutateCart(ctx, db, userID, false, func(items []models.CartItem) ([]models.CartItem, error) {
			return removeCartLine(items, itemID)
		})
		if err != nil {
			respondCartMutationError(c, route, err)
			return
		}

		respondWithCart(c, ctx, db, route, cart)
	}
}

func ClearCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /cart/items"
		defer handlePanic(c, route)

		userID, _, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		cart, err := mutateCart(ctx, db, userID, false, func([]models.CartItem) ([]models.CartItem, error) {
			return []models.CartItem{}, nil
		})
		if errors.Is(err, errCartNotFound) {
			c.JSON(http.StatusOK, gin.H{"success": true, "cart": cartView{User: userID, Items: []cartLineView{}}})
			return
		}
		if err != nil {
			respondCartMutationError(c, route, err)
			return
		}

		respondWithCart(c, ctx, db, route, cart)
	}
}
