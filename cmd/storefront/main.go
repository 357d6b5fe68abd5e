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
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rickysilaban15/Buysiniaja-sub000/internal/cart"
	"github.com/rickysilaban15/Buysiniaja-sub000/internal/catalog"
	"github.com/rickysilaban15/Buysiniaja-sub000/internal/checkout"
	"github.com/rickysilaban15/Buysiniaja-sub000/internal/httpapi"
	"github.com/rickysilaban15/Buysiniaja-sub000/internal/order"
	"github.com/rickysilaban15/Buysiniaja-sub000/internal/promo"
	"github.com/rickysilaban15/Buysiniaja-sub000/internal/tracking"
)

type Config struct {
	HTTPPort        string
	MongoURI        string
	MongoDBName     string
	RedisAddr       string
	KafkaBrokers    []string
	CatalogDBPath   string
	CatalogMigrs    string
	CatalogInterval time.Duration
	OrderDB         *order.Credentials
	ShippingCost    float64
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	dbPort, err := strconv.Atoi(getEnv("ORDERS_DB_PORT", "5432"))
	if err != nil {
		log.Fatalf("Invalid ORDERS_DB_PORT: %v", err)
	}

	shipping, err := strconv.ParseFloat(getEnv("SHIPPING_COST", "5.00"), 64)
	if err != nil {
		log.Fatalf("Invalid SHIPPING_COST: %v", err)
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:     getEnv("MONGO_DB_NAME", "storefront"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:    strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		CatalogDBPath:   getEnv("CATALOG_DB_PATH", "./catalog.db"),
		CatalogMigrs:    getEnv("CATALOG_MIGRATIONS_PATH", "./migrations/catalog"),
		CatalogInterval: 30 * time.Second,
		OrderDB: &order.Credentials{
			Host:              getEnv("ORDERS_DB_HOST", "localhost"),
			Port:              dbPort,
			User:              getEnv("ORDERS_DB_USER", "postgres"),
			Password:          getEnv("ORDERS_DB_PASSWORD", "postgres"),
			DBName:            getEnv("ORDERS_DB_NAME", "storefront"),
			MigrationsDirPath: getEnv("ORDERS_MIGRATIONS_PATH", "./migrations/orders"),
		},
		ShippingCost:    shipping,
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	log.Println("storefront starting...")
	cfg := loadConfig()
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Catalog: sqlite repository feeding the in-memory snapshot
	catalogRepo, err := catalog.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		log.Fatalf("Failed to open catalog database: %v", err)
	}
	defer catalogRepo.Close()
	if err := catalogRepo.RunMigrations(cfg.CatalogMigrs); err != nil {
		log.Fatalf("Failed to run catalog migrations: %v", err)
	}

	refresher := catalog.NewRefresher(catalogRepo, cfg.CatalogInterval)
	if err := refresher.Refresh(ctx); err != nil {
		log.Fatalf("Initial catalog refresh failed: %v", err)
	}
	log.Printf("catalog snapshot loaded: %d products", refresher.Current().Len())

	wg.Add(1)
	go func() {
		defer wg.Done()
		refresher.Run(ctx)
	}()

	// Cart sessions: MongoDB durable store behind a Redis cache
	mongoDB, err := cart.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	log.Printf("Connected to MongoDB at %s", cfg.MongoURI)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	cartRepo := cart.NewMongoRepository(mongoDB)
	cartCache := cart.NewRedisCache(redisClient)
	sessions := cart.NewSessionService(cartRepo, cartCache)
	carts := cart.NewManager(sessions, refresher)

	// Reconcile live carts whenever a fresh snapshot lands
	snapshots := refresher.Subscribe()
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-snapshots:
				carts.ReconcileAll(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	// Promos
	promoRepo := promo.NewMongoRepository(mongoDB)

	// Orders: postgres store of record plus the status projection machine
	orderRepo, err := order.NewRepository(cfg.OrderDB)
	if err != nil {
		log.Fatalf("Failed to connect to orders database: %v", err)
	}
	defer orderRepo.Close()
	if err := orderRepo.RunMigrations(cfg.OrderDB); err != nil {
		log.Fatalf("Failed to run orders migrations: %v", err)
	}
	log.Println("Database migrations completed")

	machine := order.NewMachine()
	consumer := order.NewConsumer(orderRepo, machine, cfg.KafkaBrokers...)
	defer consumer.Close()
	if err := consumer.Seed(ctx); err != nil {
		log.Fatalf("Failed to seed order projections: %v", err)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		consumer.Run(ctx)
	}()

	checkoutSvc := checkout.NewService(orderRepo, machine, cfg.KafkaBrokers...)
	defer checkoutSvc.Close()

	resolver := tracking.NewResolver(orderRepo, machine)

	// HTTP surface
	selections := httpapi.NewSelectionStore()
	router := httpapi.NewRouter(httpapi.RouterConfig{
		Cart:     httpapi.NewCartHandler(carts, selections, cfg.RequestTimeout),
		Promo:    httpapi.NewPromoHandler(promoRepo, carts, selections, cfg.RequestTimeout),
		Checkout: httpapi.NewCheckoutHandler(checkoutSvc, carts, selections, cfg.ShippingCost, cfg.RequestTimeout),
		Tracking: httpapi.NewTrackingHandler(resolver, cfg.RequestTimeout),
		Product:  httpapi.NewProductHandler(refresher),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("storefront listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	cancel()
	wg.Wait()
	log.Println("server exited")
}
