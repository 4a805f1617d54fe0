package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"expiryeaze/internal/models"
)

/* =======================
   REQUEST MODELS
======================= */

type ProductCreateRequest struct {
	Name                 string    `json:"name" binding:"required"`
	Description          string    `json:"description"`
	Price                float64   `json:"price" binding:"required,gt=0"`
	DiscountedPrice      *float64  `json:"discountedPrice"`
	Stock                *int      `json:"stock" binding:"required,min=0"`
	ExpiryDate           time.Time `json:"expiryDate" binding:"required"`
	Category             string    `json:"category" binding:"required"`
	RequiresPrescription bool      `json:"requiresPrescription"`
	Images               []string  `json:"images"`
	ExpiryPhoto          string    `json:"expiryPhoto"`
	Vendor               string    `json:"vendor"`
}

// optionalFloat tells an absent field apart from an explicit null.
type optionalFloat struct {
	Set   bool
	Value *float64
}

func (o *optionalFloat) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

type ProductUpdateRequest struct {
	Name                 *string       `json:"name"`
	Description          *string       `json:"description"`
	Price                *float64      `json:"price" binding:"omitempty,gt=0"`
	DiscountedPrice      optionalFloat `json:"discountedPrice"`
	Stock                *int          `json:"stock" binding:"omitempty,min=0"`
	ExpiryDate           *time.Time    `json:"expiryDate"`
	Category             *string       `json:"category"`
	RequiresPrescription *bool         `json:"requiresPrescription"`
	Images               *[]string     `json:"images"`
	ExpiryPhoto          *string       `json:"expiryPhoto"`
}

/* =======================
   HELPERS
======================= */

func normalizeCategory(value string) (string, error) {
	category := strings.ToLower(strings.TrimSpace(value))
	if !models.IsKnownCategory(category) {
		return "", errors.New("unknown category")
	}
	return category, nil
}

func sanitizeLogValue(value string, max int) string {
	trimmed := strings.TrimSpace(value)
	if max <= 0 {
		max = 80
	}
	if len(trimmed) <= max {
		return trimmed
	}
	return trimmed[:max] + "..."
}

// resolveProductUpdate validates an update against the stored product and returns the $set document.
func resolveProductUpdate(existing models.Product, req ProductUpdateRequest, now time.Time) (bson.M, error) {
	set := bson.M{}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, errors.New("name cannot be empty")
		}
		set["name"] = name
	}
	if req.Description != nil {
		set["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		category, err := normalizeCategory(*req.Category)
		if err != nil {
			return nil, err
		}
		set["category"] = category
	}
	if req.Stock != nil {
		set["stock"] = *req.Stock
	}
	if req.RequiresPrescription != nil {
		set["requiresPrescription"] = *req.RequiresPrescription
	}
	if req.Images != nil {
		set["images"] = trimImages(*req.Images)
	}

	price := existing.Price
	if req.Price != nil {
		price = *req.Price
		set["price"] = price
	}
	discounted := existing.DiscountedPrice
	if req.DiscountedPrice.Set {
		discounted = req.DiscountedPrice.Value
	}
	if req.Price != nil || req.DiscountedPrice.Set {
		if err := validateProductPricing(price, discounted); err != nil {
			return nil, err
		}
		if req.DiscountedPrice.Set {
			set["discountedPrice"] = discounted
		}
	}

	if req.ExpiryDate != nil {
		if err := validateExpiryUpdate(existing.ExpiryDate, *req.ExpiryDate, now); err != nil {
			return nil, err
		}
		set["expiryDate"] = *req.ExpiryDate
	}

	if req.ExpiryPhoto != nil {
		photo := strings.TrimSpace(*req.ExpiryPhoto)
		if err := validateExpiryPhotoUpdate(existing.ExpiryPhoto, photo); err != nil {
			return nil, err
		}
		if existing.ExpiryPhoto == "" && photo != "" {
			set["expiryPhoto"] = photo
		}
	}

	return set, nil
}

func loadOwnedProduct(c *gin.Context, ctx context.Context, db *mongo.Database, route string, userID primitive.ObjectID) (models.Product, bool) {
	productID, ok := objectIDParam(c, route, "id")
	if !ok {
		return models.Product{}, false
	}

	product, err := findProduct(ctx, db, bson.M{"_id": productID})
	if errors.Is(err, mongo.ErrNoDocuments) {
		respondWithError(c, http.StatusNotFound, route, "Product not found")
		return models.Product{}, false
	}
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, route, "db error")
		return models.Product{}, false
	}
	if product.Vendor != userID {
		respondWithError(c, http.StatusForbidden, route, "You can only modify your own products")
		return models.Product{}, false
	}
	return product, true
}

/* =======================
   PUBLIC
======================= */

/*
GET /products
- pagination is applied only when page or limit is given
*/
func GetProducts(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products"
		defer handlePanic(c, route)

		log.Printf(
			"[%s] hit page=%s limit=%s category=%s search=%s",
			route,
			c.Query("page"),
			c.Query("limit"),
			c.Query("category"),
			sanitizeLogValue(c.Query("search"), 40),
		)

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		filter := bson.M{}
		if category := strings.ToLower(strings.TrimSpace(c.Query("category"))); category != "" {
			filter["category"] = category
		}
		if search := strings.TrimSpace(c.Query("search")); search != "" {
			filter["name"] = bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}
		}

		findOptions := options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}})

		pageStr := c.Query("page")
		limitStr := c.Query("limit")
		paginated := pageStr != "" || limitStr != ""
		var page, limit int64
		if paginated {
			var err error
			page, limit, err = parsePaginationParams(pageStr, limitStr)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, err.Error())
				return
			}
			findOptions.
				SetSkip((page - 1) * limit).
				SetLimit(limit)
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		cursor, err := db.Collection("products").Find(ctx, filter, findOptions)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		products, err := decodeProducts(ctx, cursor)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		body := gin.H{"success": true, "count": len(products), "data": products}
		if paginated {
			total, err := db.Collection("products").CountDocuments(ctx, filter)
			if err != nil {
				respondWithError(c, http.StatusInternalServerError, route, "db error")
				return
			}
			body["pagination"] = gin.H{
				"page":  page,
				"limit": limit,
				"total": total,
				"pages": totalPages(total, limit),
			}
		}

		log.Printf("[%s] returning %d products", route, len(products))
		c.JSON(http.StatusOK, body)
	}
}

func GetProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products/:id"
		defer handlePanic(c, route)

		productID, ok := objectIDParam(c, route, "id")
		if !ok {
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
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "data": product})
	}
}

/* =======================
   VENDOR
======================= */

func GetVendorProducts(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products/vendor"
		defer handlePanic(c, route)

		userID, _, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		cursor, err := db.Collection("products").Find(ctx,
			bson.M{"vendor": userID},
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
		)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		products, err := decodeProducts(ctx, cursor)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "count": len(products), "products": products})
	}
}

func CreateProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /products"
		defer handlePanic(c, route)

		userID, _, ok := currentUser(c, route)
		if !ok {
			return
		}

		var req ProductCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		if vendor := strings.TrimSpace(req.Vendor); vendor != "" && vendor != userID.Hex() {
			respondWithError(c, http.StatusForbidden, route, "You can only create products for yourself")
			return
		}

		name := strings.TrimSpace(req.Name)
		if name == "" {
			respondWithError(c, http.StatusBadRequest, route, "name is required")
			return
		}
		category, err := normalizeCategory(req.Category)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		if err := validateProductPricing(req.Price, req.DiscountedPrice); err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		now := time.Now()
		if err := validateNewExpiry(req.ExpiryDate, now); err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		product := models.Product{
			Name:                 name,
			Description:          strings.TrimSpace(req.Description),
			Price:                req.Price,
			DiscountedPrice:      req.DiscountedPrice,
			Stock:                *req.Stock,
			ExpiryDate:           req.ExpiryDate,
			Category:             category,
			RequiresPrescription: req.RequiresPrescription,
			Images:               trimImages(req.Images),
			ExpiryPhoto:          strings.TrimSpace(req.ExpiryPhoto),
			Vendor:               userID,
			CreatedAt:            now,
			UpdatedAt:            now,
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		res, err := db.Collection("products").InsertOne(ctx, product)
		if err != nil {
			log.Println("[PRODUCT] [ERROR] insert failed:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if id, ok := res.InsertedID.(primitive.ObjectID); ok {
			product.ID = id
		}
		finalizeProduct(&product)

		log.Printf("[PRODUCT] [INFO] %s created by vendor %s", product.ID.Hex(), userID.Hex())
		c.JSON(http.StatusCreated, gin.H{"success": true, "data": product})
	}
}

func UpdateProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /products/:id"
		defer handlePanic(c, route)

		userID, _, ok := currentUser(c, route)
		if !ok {
			return
		}

		var req ProductUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		existing, ok := loadOwnedProduct(c, ctx, db, route, userID)
		if !ok {
			return
		}

		now := time.Now()
		set, err := resolveProductUpdate(existing, req, now)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		set["updatedAt"] = now

		var raw bson.M
		err = db.Collection("products").FindOneAndUpdate(ctx,
			bson.M{"_id": existing.ID, "vendor": userID},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&raw)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "Product not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		updated, err := normalizeProductDocument(raw)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "data": updated})
	}
}

func DeleteProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /products/:id"
		defer handlePanic(c, route)

		userID, _, ok := currentUser(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		product, ok := loadOwnedProduct(c, ctx, db, route, userID)
		if !ok {
			return
		}

		res, err := db.Collection("products").DeleteOne(ctx, bson.M{"_id": product.ID, "vendor": userID})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if res.DeletedCount == 0 {
			respondWithError(c, http.StatusNotFound, route, "Product not found")
			return
		}

		if _, err := db.Collection("carts").UpdateMany(ctx,
			bson.M{"items.product": product.ID},
			bson.M{
				"$pull": bson.M{"items": bson.M{"product": product.ID}},
				"$inc":  bson.M{"version": 1},
			},
		); err != nil {
			log.Println("[PRODUCT] [ERROR] cart cleanup after delete failed:", err)
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Product deleted"})
	}
}
