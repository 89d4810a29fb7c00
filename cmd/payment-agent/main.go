package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/m41na/payment-agent-sub001/internal/cart"
	"github.com/m41na/payment-agent-sub001/internal/checkout"
	"github.com/m41na/payment-agent-sub001/internal/domain"
	"github.com/m41na/payment-agent-sub001/internal/httpapi"
	"github.com/m41na/payment-agent-sub001/internal/orders"
	"github.com/m41na/payment-agent-sub001/internal/payment"
	"github.com/m41na/payment-agent-sub001/internal/publisher"
	"github.com/m41na/payment-agent-sub001/internal/repository"
	stripeapi "github.com/m41na/payment-agent-sub001/internal/stripe"
	"github.com/m41na/payment-agent-sub001/internal/subscription"
)

type Config struct {
	HTTPPort        string
	StripeKey       string
	MongoURI        string
	MongoDBName     string
	RedisAddr       string
	RedisPassword   string
	KafkaBrokers    []string
	Postgres        repository.Credentials
	RequestTimeout  time.Duration
	SheetTimeout    time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		StripeKey:     getEnv("STRIPE_SECRET_KEY", ""),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:   getEnv("MONGO_DB_NAME", "cartdb"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:  strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		Postgres: repository.Credentials{
			Host:              getEnv("POSTGRES_HOST", "localhost"),
			Port:              getEnvInt("POSTGRES_PORT", 5432),
			User:              getEnv("POSTGRES_USER", "postgres"),
			Password:          getEnv("POSTGRES_PASSWORD", "postgres"),
			DBName:            getEnv("POSTGRES_DB", "payments"),
			MigrationsDirPath: getEnv("MIGRATIONS_DIR", "internal/repository/migrations"),
		},
		RequestTimeout:  30 * time.Second,
		SheetTimeout:    45 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := loadConfig()
	if cfg.StripeKey == "" {
		log.Fatal("STRIPE_SECRET_KEY is required")
	}

	ctx := context.Background()

	// Postgres: methods, orders, transactions, outbox
	repo, err := repository.NewRepository(&cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer repo.Close()
	if err := repo.RunMigrations(&cfg.Postgres); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Printf("Connected to postgres at %s:%d", cfg.Postgres.Host, cfg.Postgres.Port)

	// Mongo: carts
	mongoDB, err := cart.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	if err := cart.EnsureIndexes(ctx, mongoDB); err != nil {
		log.Fatalf("Failed to create cart indexes: %v", err)
	}
	log.Printf("Connected to MongoDB at %s", cfg.MongoURI)

	// Redis: cart cache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	log.Printf("Redis ping succeeded")

	cartService := cart.NewService(cart.NewMongoRepository(mongoDB), cart.NewRedisCache(redisClient))

	stripeClient := stripeapi.NewStripeClient(cfg.StripeKey)
	gateway := payment.NewIntentGateway(stripeClient)
	recorder := orders.NewRecorder(repo)

	sheetLock := payment.NewSheetLock()
	bridge := payment.NewClientBridge(cfg.SheetTimeout)
	methodStore := payment.NewMethodStore(repo, stripeClient, sheetLock)

	checkoutOrch := checkout.NewOrchestrator(gateway, methodStore, cartService, recorder, sheetLock, bridge)

	subStore := subscription.NewStore()
	catalog := subscription.NewCatalog([]subscription.CatalogPlan{
		{
			Plan:             domain.Plan{ID: "seller-monthly", Name: "Seller Monthly", Amount: 999, Interval: domain.SubscriptionRecurring},
			ProcessorPriceID: getEnv("STRIPE_PRICE_SELLER_MONTHLY", "price_seller_monthly"),
		},
		{
			Plan:      domain.Plan{ID: "boost-week", Name: "Listing Boost", Amount: 499, Interval: domain.SubscriptionOneTime},
			AccessFor: 7 * 24 * time.Hour,
		},
	})
	subOrch := subscription.NewOrchestrator(stripeClient, gateway, methodStore, subStore, catalog, sheetLock, bridge)

	poller := publisher.NewOutboxPoller(repo, recorder, gateway, cfg.KafkaBrokers...)
	defer poller.Close()

	pollerCtx, pollerCancel := context.WithCancel(ctx)
	defer pollerCancel()
	go poller.Run(pollerCtx)
	go subOrch.RunExpirySweep(pollerCtx, time.Minute)

	router := httpapi.NewRouter(httpapi.Handlers{
		Cart:          httpapi.NewCartHandler(cartService, cfg.RequestTimeout),
		Checkout:      httpapi.NewCheckoutHandler(checkoutOrch),
		Methods:       httpapi.NewMethodsHandler(methodStore, bridge, cfg.RequestTimeout),
		Orders:        httpapi.NewOrdersHandler(recorder, repo, cfg.RequestTimeout),
		Subscriptions: httpapi.NewSubscriptionHandler(subOrch, catalog),
		Sheet:         httpapi.NewSheetHandler(bridge),
	})

	// no WriteTimeout: checkout responses legitimately wait on the
	// confirmation sheet, the orchestrator bounds them itself
	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     otelhttp.NewHandler(router, "payment-agent"),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("payment agent starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	pollerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	log.Println("payment agent stopped")
}
