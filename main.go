// Package main provides the main entry point for the Anchor payment activation service
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anchorchat/anchor/app/handlers"
	"github.com/anchorchat/anchor/app/middleware"
	"github.com/anchorchat/anchor/app/router"
	"github.com/anchorchat/anchor/app/scheduler"
	"github.com/anchorchat/anchor/app/services"
	businessflow "github.com/anchorchat/anchor/business_flow"
	"github.com/anchorchat/anchor/config"
	"github.com/anchorchat/anchor/repository"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// @title Anchor API
// @version 1.0
// @description Payment activation and premium entitlement backend
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	payments  businessflow.PaymentFlow
	publisher services.EventPublisher
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	closeLog := setupLogging(cfg.Logging)
	defer closeLog()

	log.Printf("Starting Anchor %s (%s)...", cfg.Deployment.Version, cfg.Deployment.Environment)

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.router.Start(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.router.GetApp().ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	// Callbacks acknowledged before shutdown still have to reach the ledger
	app.payments.Wait()

	for _, fn := range app.stopFuncs {
		fn()
	}
	app.publisher.Close()

	log.Println("Server stopped")
}

// setupLogging routes the standard logger to stdout or a rotating file
func setupLogging(cfg config.LoggingConfig) func() {
	log.SetFlags(log.LstdFlags | log.LUTC | log.Lmicroseconds)
	if cfg.Output != "file" || cfg.FilePath == "" {
		log.SetOutput(os.Stdout)
		return func() {}
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	return func() {
		_ = rotator.Close()
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{}
	if cfg.SlowQueryLog {
		gormCfg.Logger = logger.New(log.Default(), logger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	} else {
		gormCfg.Logger = logger.Default.LogMode(logger.Silent)
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	if cfg.AutoMigrate {
		if err := repository.Migrate(db); err != nil {
			return nil, err
		}
		log.Println("Database schema migrated")
	}

	return db, nil
}

// initializeCache connects the Redis client used for the callback lock.
// A nil client means callbacks are serialized by the ledger update alone.
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis. The returned function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	if client == nil {
		return func() {}
	}
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return func() {
		cancel()
		_ = client.Close()
	}
}

// initializePublisher connects to the broker, falling back to log-only events
func initializePublisher(cfg config.MessagingConfig) services.EventPublisher {
	if cfg.AMQPURL == "" {
		log.Println("No AMQP URL configured; entitlement events will only be logged")
		return &services.LogPublisher{}
	}
	publisher, err := services.NewRabbitMQPublisher(cfg.AMQPURL, cfg.Exchange, cfg.DialTimeout)
	if err != nil {
		log.Printf("RabbitMQ unavailable (%v); entitlement events will only be logged", err)
		return &services.LogPublisher{}
	}
	log.Printf("Publishing entitlement events to exchange %q", cfg.Exchange)
	return publisher
}

// initializeGateways builds every configured checkout provider
func initializeGateways(cfg *config.ProductionConfig) ([]services.PaymentGateway, error) {
	var gateways []services.PaymentGateway

	if cfg.Mpesa.ConsumerKey != "" {
		gateways = append(gateways, services.NewMpesaClient(services.MpesaConfig{
			BaseURL:         cfg.Mpesa.BaseURL,
			ConsumerKey:     cfg.Mpesa.ConsumerKey,
			ConsumerSecret:  cfg.Mpesa.ConsumerSecret,
			ShortCode:       cfg.Mpesa.ShortCode,
			Passkey:         cfg.Mpesa.Passkey,
			TransactionType: cfg.Mpesa.TransactionType,
			Timeout:         cfg.Mpesa.Timeout,
		}))
	}
	if cfg.IntaSend.SecretKey != "" {
		gateways = append(gateways, services.NewIntaSendClient(services.IntaSendConfig{
			BaseURL:          cfg.IntaSend.BaseURL,
			PublishableKey:   cfg.IntaSend.PublishableKey,
			SecretKey:        cfg.IntaSend.SecretKey,
			WebhookChallenge: cfg.IntaSend.WebhookChallenge,
			Timeout:          cfg.IntaSend.Timeout,
		}))
	}
	if cfg.Payments.EnableStubCallback || (len(gateways) == 0 && cfg.Deployment.Environment != "production") {
		log.Println("Stub payment gateway enabled")
		gateways = append(gateways, services.NewStubGateway())
	}

	if len(gateways) == 0 {
		return nil, errors.New("no payment gateway configured")
	}
	return gateways, nil
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, 30*time.Second))

	publisher := initializePublisher(cfg.Messaging)

	gateways, err := initializeGateways(cfg)
	if err != nil {
		return nil, err
	}

	accountRepo := repository.NewAccountRepository(db)
	attemptRepo := repository.NewPaymentAttemptRepository(db)
	callbackRepo := repository.NewPaymentCallbackEventRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	captcha := services.NewRotateCaptchaService(cfg.Captcha.TTL, cfg.Captcha.Padding, cfg.Captcha.Size)

	pricing := businessflow.Pricing{
		ActivationFeeKES: cfg.Payments.ActivationFeeKES,
		PremiumPriceKES:  cfg.Payments.PremiumPriceKES,
		PremiumDuration:  cfg.Payments.PremiumDuration,
	}

	entitlementFlow := businessflow.NewEntitlementFlow(accountRepo, attemptRepo, auditRepo, publisher)

	paymentFlow := businessflow.NewPaymentFlow(
		accountRepo,
		attemptRepo,
		callbackRepo,
		auditRepo,
		gateways,
		publisher,
		rc,
		db,
		businessflow.PaymentFlowConfig{
			Pricing:         pricing,
			PrimaryProvider: cfg.Payments.PrimaryProvider,
			CallbackBaseURL: cfg.Payments.CallbackBaseURL,
			CheckoutTimeout: cfg.Payments.CheckoutTimeout,
			CallbackTimeout: cfg.Payments.CallbackTimeout,
			CallbackLockTTL: cfg.Payments.CallbackLockTTL,
			RedisPrefix:     cfg.Cache.RedisPrefix,
		},
	)

	signupFlow := businessflow.NewSignupFlow(
		accountRepo,
		auditRepo,
		tokenService,
		captcha,
		businessflow.SignupFlowConfig{
			Pricing:        pricing,
			BcryptCost:     cfg.Security.BcryptCost,
			RequireCaptcha: cfg.Security.RequireCaptcha,
		},
	)

	loginFlow := businessflow.NewLoginFlow(accountRepo, auditRepo, entitlementFlow, tokenService, cfg.JWT.AccessTokenTTL)

	adminFlow := businessflow.NewAdminFlow(
		accountRepo,
		attemptRepo,
		auditRepo,
		paymentFlow,
		entitlementFlow,
		db,
		cfg.Payments.PremiumDuration,
		cfg.Payments.StalePendingAfter,
	)

	if cfg.Admin.Email != "" && cfg.Admin.Password != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := adminFlow.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to bootstrap admin account: %w", err)
		}
		log.Printf("Admin account %s is ready", cfg.Admin.Email)
	}

	appRouter := router.NewFiberRouter(router.Handlers{
		Auth:    handlers.NewAuthHandler(signupFlow, loginFlow),
		Payment: handlers.NewPaymentHandler(paymentFlow),
		Account: handlers.NewAccountHandler(entitlementFlow),
		Admin:   handlers.NewAdminHandler(adminFlow),
		AuthMW:  middleware.NewAuthMiddleware(tokenService, accountRepo),
	}, cfg)

	if cfg.Scheduler.Enabled {
		sweeper := scheduler.NewEntitlementSweeper(entitlementFlow, log.Default(), scheduler.SweeperConfig{
			ExpirePremiumSpec: cfg.Scheduler.ExpirePremiumSpec,
			StalePendingSpec:  cfg.Scheduler.StalePendingSpec,
			StalePendingAfter: cfg.Payments.StalePendingAfter,
		})
		stop, err := sweeper.Start()
		if err != nil {
			return nil, err
		}
		stopFuncs = append(stopFuncs, stop)
	}

	return &Application{
		router:    appRouter,
		config:    cfg,
		payments:  paymentFlow,
		publisher: publisher,
		stopFuncs: stopFuncs,
	}, nil
}
