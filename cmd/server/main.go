package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v79/client"

	adminrepository "carflex/internal/admin/repository"
	adminhttp "carflex/internal/admin/transport/http"
	"carflex/internal/billing"
	billinghttp "carflex/internal/billing/transport/http"
	"carflex/internal/config"
	contacthttp "carflex/internal/contact/transport/http"
	"carflex/internal/metrics"
	packrepository "carflex/internal/pack/repository"
	packservice "carflex/internal/pack/service"
	packhttp "carflex/internal/pack/transport/http"
	paymentrepository "carflex/internal/payment/repository"
	paymenthttp "carflex/internal/payment/transport/http"
	subscriptionrepository "carflex/internal/subscription/repository"
	subscriptionservice "carflex/internal/subscription/service"
	subscriptionhttp "carflex/internal/subscription/transport/http"
	userrepository "carflex/internal/user/repository"
	userservice "carflex/internal/user/service"
	userhttp "carflex/internal/user/transport/http"
	"carflex/pkg/db"
	"carflex/pkg/mailer"
	"carflex/pkg/middleware"
)

var server *http.Server

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Info().Msg("Carflex API starting...")

	cfg := config.Load()
	if cfg.JWTSecret == "" || cfg.StripeSecretKey == "" || cfg.StripeWebhookSecret == "" {
		logger.Fatal().Msg("JWT_SECRET, STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET must be set")
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	logger.Info().Msg("connected to PostgreSQL")

	metrics.InitMetrics()

	mail := mailer.NewLogMailer(logger)

	// repositories and services
	userRepo := userrepository.NewPostgresUserRepository(database)
	userService := userservice.NewUserService(userRepo, mail, cfg.AppURL, logger)
	userHandler := userhttp.NewHandler(userService, cfg.JWTSecret, logger)

	packRepo := packrepository.NewPostgresPackRepository(database)
	packService := packservice.NewService(packRepo)
	packHandler := packhttp.NewHandler(packService)

	subRepo := subscriptionrepository.NewPostgresSubscriptionRepository(database)
	subService := subscriptionservice.NewService(subRepo)
	subHandler := subscriptionhttp.NewHandler(subService)

	payRepo := paymentrepository.NewPostgresPaymentRepository(database)
	payHandler := paymenthttp.NewHandler(payRepo)

	// billing: the Stripe client is built once here and injected
	stripeClient := client.New(cfg.StripeSecretKey, nil)
	gateway := billing.NewStripeGateway(stripeClient)
	checkout := billing.NewCheckout(packService, userRepo, gateway, cfg.AppURL, logger)
	ledger := billing.NewLedger(userRepo, subRepo, payRepo)
	reconciler := billing.NewReconciler(ledger, cfg.StripeWebhookSecret, logger)
	billingHandler := billinghttp.NewHandler(checkout, reconciler, userRepo, logger)

	statsRepo := adminrepository.NewPostgresStatsRepository(database)
	adminHandler := adminhttp.NewHandler(statsRepo)

	contactHandler := contacthttp.NewHandler(mail, logger)

	// rate limiters: auth and admin routes are stricter than the general API
	generalLimiter := middleware.NewRateLimiter(100, 1*time.Minute)
	authLimiter := middleware.NewRateLimiter(10, 15*time.Minute)
	adminLimiter := middleware.NewRateLimiter(30, 1*time.Minute)

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AppURL, "http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics)
	r.Use(generalLimiter.Middleware)
	r.Use(middleware.ValidateRequest)

	// Stripe posts here; signature verification needs the raw body
	r.Post("/api/webhooks/stripe", billingHandler.Webhook)

	r.Group(func(ar chi.Router) {
		ar.Use(authLimiter.Middleware)
		ar.Post("/api/auth/register", userHandler.Register)
		ar.Post("/api/auth/login", userHandler.Login)
	})

	r.Get("/api/packs", packHandler.List)
	r.Get("/api/packs/{id}", packHandler.Get)
	r.Post("/api/contact", contactHandler.Submit)

	// authenticated routes
	r.Group(func(pr chi.Router) {
		pr.Use(middleware.JWTAuth(cfg.JWTSecret))
		pr.Get("/api/auth/me", userHandler.Me)
		pr.Get("/api/user/profile", userHandler.GetProfile)
		pr.Patch("/api/user/profile", userHandler.UpdateProfile)
		pr.Get("/api/user/subscription", subHandler.GetMine)
		pr.Get("/api/user/payments", payHandler.ListMine)
		pr.Post("/api/create-checkout-session", billingHandler.CreateCheckoutSession)
	})

	// admin routes
	r.Group(func(adm chi.Router) {
		adm.Use(adminLimiter.Middleware)
		adm.Use(middleware.JWTAuth(cfg.JWTSecret))
		adm.Use(middleware.AdminOnly(userService))
		adm.Get("/api/admin/stats", adminHandler.GetStats)
		adm.Get("/api/admin/users", userHandler.AdminListUsers)
		adm.Patch("/api/admin/users/{id}", userHandler.AdminUpdateUser)
		adm.Get("/api/admin/subscriptions", subHandler.AdminList)
		adm.Patch("/api/admin/subscriptions/{id}", subHandler.AdminUpdate)
		adm.Get("/api/admin/packs", packHandler.List)
		adm.Post("/api/admin/packs", packHandler.Create)
		adm.Patch("/api/admin/packs/{id}", packHandler.Update)
		adm.Delete("/api/admin/packs/{id}", packHandler.Delete)
		adm.Get("/api/admin/payments", payHandler.AdminList)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Method("GET", "/metrics",
		middleware.BasicAuth(cfg.MetricsUser, cfg.MetricsPassword)(promhttp.Handler()))

	server = &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	logger.Info().Msgf("server running on :%s", cfg.Port)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		logger.Info().Msg("shutdown signal received, starting graceful shutdown")
		shutdownServer(logger)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

func shutdownServer(logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
