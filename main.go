package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"billing-service/config"
	"billing-service/currency"
	"billing-service/gateway"
	"billing-service/handlers"
	"billing-service/logging"
	"billing-service/middleware"
	"billing-service/monitoring"
	"billing-service/service"
	"billing-service/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Invalid configuration: " + err.Error())
	}

	// Initialize structured logging
	if err := logging.InitLogger(cfg.ServiceName); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logging.Sync()
	defer func() {
		if err := logging.Shutdown(context.Background()); err != nil {
			logging.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()

	// Initialize OpenTelemetry
	tp, tracer, err := monitoring.InitTracer(cfg.ServiceName, cfg.OTELEndpoint)
	if err != nil {
		logging.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logging.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	mp, _, err := monitoring.InitMeter(cfg.ServiceName, cfg.OTELEndpoint)
	if err != nil {
		logging.Fatal("Failed to initialize meter", zap.Error(err))
	}
	defer func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			logging.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	// Database
	db, err := store.Open(cfg.Database)
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := store.Close(db); err != nil {
			logging.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := store.Migrate(db); err != nil {
		logging.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Initialize service layer
	ledger := store.NewGormLedger(db)
	paystack := gateway.NewPaystack(cfg.PaystackBaseURL, cfg.PaystackSecretKey, cfg.GatewayTimeout)
	converter := currency.NewConverter(cfg.DollarToNaira)

	paymentService := service.NewPaymentService(tracer, ledger, paystack, converter, cfg.PaymentCallbackURL())
	accountService := service.NewAccountService(tracer, ledger, converter)
	billingService := service.NewBillingService(tracer, ledger, cfg.ApplicationFeeUSD)

	// Initialize handlers
	paymentHandler := handlers.NewPaymentHandler(paymentService, accountService, paystack)
	billHandler := handlers.NewBillHandler(billingService)

	// Setup Gin router
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	r.Use(cors.New(corsConfig))

	// OpenTelemetry middleware
	r.Use(otelgin.Middleware(cfg.ServiceName))
	r.Use(middleware.HTTPMetrics())

	// Routes
	handlers.Register(r, paymentHandler, billHandler, middleware.Auth(cfg.JWTSecret))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logging.Info("Billing service starting",
			zap.String("port", cfg.Port),
			zap.String("dollar_to_naira", cfg.DollarToNaira.String()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logging.Info("Shutting down billing service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Error shutting down HTTP server", zap.Error(err))
	}
}
