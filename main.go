package main

import (
	"errors"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"expiryeaze/internal/config"
	"expiryeaze/internal/database"
	"expiryeaze/internal/events"
	"expiryeaze/internal/handlers"
	"expiryeaze/internal/middleware"
	"expiryeaze/internal/models"
	"expiryeaze/internal/payment"
)

func main() {
	config.Load()
	if err := config.AppEnv.Validate(); err != nil {
		log.Fatal(err)
	}

	client, err := database.Connect(config.AppEnv.MongoURI)
	if err != nil {
		log.Fatal(err)
	}

	db := client.Database(config.AppEnv.DBName)

	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureIndexes(db); err != nil {
		var idxErr *database.IndexErrors
		if errors.As(err, &idxErr) && idxErr.Fatal() {
			log.Fatal(err)
		}
		log.Printf("⚠️ index warning: %v", err)
	}

	publisher := events.New(config.AppEnv.KafkaBrokers, config.AppEnv.KafkaTopicPrefix)
	defer publisher.Close()

	gateway := payment.NewRazorpayGateway(config.AppEnv.RazorpayKeyID, config.AppEnv.RazorpayKeySecret)

	limits := handlers.PurchaseLimits{
		MaxQuantityPerProduct: config.AppEnv.MaxQuantityPerProduct,
		MaxDailyPurchase:      config.AppEnv.MaxDailyPurchase,
	}
	issuer := handlers.TokenIssuer{
		Secret:       config.AppEnv.JWTSecret,
		TTL:          config.AppEnv.TokenTTL,
		IsAdminEmail: config.AppEnv.IsAdminEmail,
	}
	uploads := handlers.UploadStore{Root: config.AppEnv.UploadDir}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())
	r.Use(cors.New(corsConfig(config.AppEnv.CORSOrigins)))
	r.Static("/uploads", config.AppEnv.UploadDir)

	r.GET("/health", handlers.Health(db))

	auth := middleware.UserAuth(config.AppEnv.JWTSecret)
	api := r.Group("/api/v1")

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", handlers.Register(db))
		authRoutes.POST("/login", handlers.Login(db, issuer))
		authRoutes.POST("/forgotpassword", handlers.ForgotPassword(db, publisher))
		authRoutes.POST("/resetpassword", handlers.ResetPassword(db))
		authRoutes.GET("/me", auth, handlers.GetMe(db))
		authRoutes.POST("/waitlist/join", handlers.JoinWaitlist(db))
		authRoutes.GET("/waitlist/check", handlers.CheckWaitlist(db))
		authRoutes.PUT("/me", auth, handlers.UpdateMe(db))
	}

	products := api.Group("/products")
	{
		products.GET("", handlers.GetProducts(db))
		products.GET("/categories", handlers.GetCategories())
		products.GET("/vendor", auth, middleware.RequireRole(models.RoleVendor), handlers.GetVendorProducts(db))
		products.GET("/:id", handlers.GetProduct(db))
		products.POST("", auth, middleware.RequireRole(models.RoleVendor), handlers.CreateProduct(db))
		products.PUT("/:id", auth, handlers.UpdateProduct(db))
		products.DELETE("/:id", auth, handlers.DeleteProduct(db))
	}

	api.GET("/vendors/:id", handlers.GetVendorProfile(db))

	cart := api.Group("/cart")
	cart.Use(auth)
	{
		cart.GET("", handlers.GetCart(db))
		cart.POST("", handlers.AddToCart(db, limits))
		cart.PUT("", handlers.UpdateCartItem(db, limits))
		cart.DELETE("", handlers.RemoveCartItem(db))
		cart.DELETE("/items", handlers.ClearCart(db))
	}

	orders := api.Group("/orders")
	orders.Use(auth)
	{
		orders.POST("", handlers.PlaceOrder(db, limits, gateway.KeySecret(), publisher))
		orders.GET("", handlers.GetOrders(db))
		orders.GET("/:id", handlers.GetOrder(db))
	}

	payments := api.Group("/payment")
	payments.Use(auth)
	{
		payments.POST("/order", handlers.CreatePaymentOrder(gateway))
		payments.POST("/verify", handlers.VerifyPayment(gateway))
	}

	prescriptions := api.Group("/prescriptions")
	prescriptions.Use(auth)
	{
		prescriptions.POST("", handlers.CreatePrescription(db, uploads, publisher))
		prescriptions.GET("/my-prescriptions", handlers.GetMyPrescriptions(db))
		prescriptions.GET("", middleware.RequireRole(models.RoleAdmin), handlers.GetPrescriptions(db))
		prescriptions.GET("/:id", handlers.GetPrescription(db))
		prescriptions.PUT("/:id/status", middleware.RequireRole(models.RoleAdmin), handlers.UpdatePrescriptionStatus(db, publisher))
	}

	reviews := api.Group("/reviews")
	{
		reviews.GET("/vendor/:vendorId", handlers.GetVendorReviews(db))
		reviews.GET("/vendor/:vendorId/stats", handlers.GetVendorReviewStats(db))
		reviews.GET("/vendor/:vendorId/my-review", auth, handlers.GetMyVendorReview(db))
		reviews.POST("", auth, handlers.CreateReview(db, publisher))
		reviews.PUT("/:id", auth, handlers.UpdateReview(db, publisher))
		reviews.DELETE("/:id", auth, handlers.DeleteReview(db, publisher))
		reviews.POST("/:id/helpful", auth, handlers.MarkReviewHelpful(db))
	}

	log.Println("server listening on port", config.AppEnv.Port)
	if err := r.Run(":" + config.AppEnv.Port); err != nil {
		log.Fatal(err)
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
