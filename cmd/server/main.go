package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carepay/backend/docs"
	"github.com/carepay/backend/internal/audit"
	"github.com/carepay/backend/internal/chain"
	"github.com/carepay/backend/internal/database"
	"github.com/carepay/backend/internal/handlers"
	mW "github.com/carepay/backend/internal/middleware"
	"github.com/carepay/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title CarePay Voucher API
// @version 1.0
// @description API for healthcare payment vouchers
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.SetEnvPrefix("")

	viper.BindEnv("app.name", "APP_NAME")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("chain.base_url", "CHAIN_BASE_URL")
	viper.BindEnv("chain.api_key", "CHAIN_API_KEY")
	viper.BindEnv("chain.timeout", "CHAIN_TIMEOUT")

	viper.BindEnv("sms.base_url", "SMS_BASE_URL")
	viper.BindEnv("sms.api_key", "SMS_API_KEY")
	viper.BindEnv("sms.sender", "SMS_SENDER")

	viper.BindEnv("payout.platform_bic", "PAYOUT_PLATFORM_BIC")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "CarePay Voucher API"
	docs.SwaggerInfo.Description = "API for healthcare payment vouchers"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	chainClient := chain.NewHTTPClient()
	smsService := services.NewSMSService()
	auditLogger := audit.NewAuditLogger()

	voucherService := services.NewVoucherService(db, redisClient, chainClient, smsService)
	paymentService := services.NewPaymentService(db, chainClient)
	transactionService := services.NewTransactionService(db)
	providerService := services.NewProviderService(db)
	patientService := services.NewPatientService(db)
	authService := services.NewAuthService(db, redisClient)
	payoutService := services.NewPayoutService(db, auditLogger)
	qrService := services.NewQRService(db, redisClient, chainClient)
	qrHandler := handlers.NewQRHandler(qrService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Static file server for provider logos
	r.Handle("/static/provider-logos/*", http.StripPrefix("/static/provider-logos/",
		mW.StaticFileServer("./static/provider-logos")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)

		// Payment gateway webhook
		r.Post("/payment/notification", paymentService.HandleNotification)
		r.Get("/payment/voucher", paymentService.GetVoucherByPaymentID)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware(redisClient))

			r.Get("/auth/account", authService.GetUserAccount)

			// Voucher lifecycle
			r.Get("/vouchers/{shortenHash}", voucherService.GetVoucher)
			r.Post("/vouchers/authorize", voucherService.Authorize)
			r.Post("/vouchers/redeem", voucherService.Redeem)
			r.Post("/vouchers/{shortenHash}/qr", qrHandler.GenerateQR)
			r.Post("/qr/process", qrHandler.ProcessQR)

			// Transaction history
			r.Get("/transactions", transactionService.ListTransactions)
			r.Get("/transactions/sender/{senderId}", transactionService.GetBySender)

			// Provider catalog
			r.Get("/providers", providerService.ListProviders)
			r.Post("/providers", providerService.RegisterProvider)
			r.Post("/providers/{providerId}/services", providerService.CreateService)
			r.Get("/providers/{providerId}/services", providerService.ListServices)
			r.Post("/providers/{providerId}/packages", providerService.CreatePackage)
			r.Get("/providers/{providerId}/packages", providerService.ListPackages)
			r.Post("/providers/{providerId}/packages/{packageId}/services", providerService.AddServicesToPackage)
			r.Get("/providers/{providerId}/transactions", providerService.GetTransactions)
			r.Get("/providers/{providerId}/statistics", providerService.GetStatistics)

			// Patients
			r.Post("/patients", patientService.CreatePatient)
			r.Get("/patients/{patientId}", patientService.GetPatient)

			// Settlement
			r.With(mW.RequireRole("PROVIDER")).Post("/payouts", payoutService.CreatePayout)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
