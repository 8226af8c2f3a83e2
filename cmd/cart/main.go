package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fjod/go_cart/cartkeeper/internal/catalog"
	h "github.com/fjod/go_cart/cartkeeper/internal/http"
	"github.com/fjod/go_cart/cartkeeper/internal/lookup"
	"github.com/fjod/go_cart/cartkeeper/internal/notify"
	"github.com/fjod/go_cart/cartkeeper/internal/persistence"
	"github.com/fjod/go_cart/cartkeeper/internal/service"
	"github.com/fjod/go_cart/cartkeeper/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

type Config struct {
	HTTPPort           string
	GRPCHealthPort     string
	PersistenceBackend string
	StorageKey         string
	RedisAddr          string
	RedisPassword      string
	MongoURI           string
	MongoDBName        string
	StockBackend       string
	LookupAPIURL       string
	InventoryAddr      string
	CatalogBackend     string
	CatalogDBPath      string
	CatalogCacheTTL    time.Duration
	KafkaBrokers       []string
	KafkaTopic         string
	OTLPEndpoint       string
	LookupTimeout      time.Duration
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	LogLevel           string
}

func loadConfig() (*Config, error) {
	cacheTTL, err := time.ParseDuration(getEnv("CATALOG_CACHE_TTL", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid CATALOG_CACHE_TTL: %w", err)
	}
	lookupTimeout, err := time.ParseDuration(getEnv("LOOKUP_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOOKUP_TIMEOUT: %w", err)
	}

	var brokers []string
	if raw := getEnv("KAFKA_BROKERS", ""); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	return &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		GRPCHealthPort:     getEnv("GRPC_HEALTH_PORT", "50060"),
		PersistenceBackend: getEnv("PERSISTENCE_BACKEND", "redis"),
		StorageKey:         getEnv("CART_STORAGE_KEY", persistence.DefaultKey),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		MongoURI:           getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:        getEnv("MONGO_DB_NAME", "cartdb"),
		StockBackend:       getEnv("STOCK_BACKEND", "http"),
		LookupAPIURL:       getEnv("LOOKUP_API_URL", "http://localhost:3333"),
		InventoryAddr:      getEnv("INVENTORY_SERVICE_ADDR", "localhost:50053"),
		CatalogBackend:     getEnv("CATALOG_BACKEND", "http"),
		CatalogDBPath:      getEnv("CATALOG_DB_PATH", "./data/products.db"),
		CatalogCacheTTL:    cacheTTL,
		KafkaBrokers:       brokers,
		KafkaTopic:         getEnv("KAFKA_TOPIC", notify.DefaultTopic),
		OTLPEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		LookupTimeout:      lookupTimeout,
		RequestTimeout:     30 * time.Second,
		ShutdownTimeout:    10 * time.Second,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := loadConfig()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx := context.Background()

	shutdownTracing, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, "cart")
	if err != nil {
		log.WithError(err).Fatal("failed to initialise tracing")
	}

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	var redisClient *redis.Client
	redisFor := func() *redis.Client {
		if redisClient == nil {
			redisClient = redis.NewClient(&redis.Options{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       0,
			})
			if err := redisClient.Ping(ctx).Err(); err != nil {
				log.WithError(err).Fatal("redis connection failed")
			}
			log.WithField("addr", cfg.RedisAddr).Info("redis ping succeeded")
			closers = append(closers, func() { _ = redisClient.Close() })
		}
		return redisClient
	}

	// Persistence
	var adapter persistence.Adapter
	switch cfg.PersistenceBackend {
	case "redis":
		adapter = persistence.NewRedisAdapter(redisFor(), cfg.StorageKey)
	case "mongo":
		mongoAdapter, err := persistence.ConnectMongoAdapter(ctx, cfg.MongoURI, cfg.MongoDBName, cfg.StorageKey)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to MongoDB")
		}
		closers = append(closers, func() { _ = mongoAdapter.Close(context.Background()) })
		adapter = mongoAdapter
		log.WithField("uri", cfg.MongoURI).Info("connected to MongoDB")
	default:
		log.WithField("backend", cfg.PersistenceBackend).Fatal("unknown PERSISTENCE_BACKEND")
	}

	httpLookup := lookup.NewHTTPClient(cfg.LookupAPIURL, cfg.LookupTimeout)

	// Stock
	var stock lookup.StockOracle
	switch cfg.StockBackend {
	case "http":
		stock = httpLookup
	case "redis":
		stock = lookup.NewRedisStockOracle(redisFor())
	case "grpc":
		conn, err := grpc.NewClient(
			cfg.InventoryAddr,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to inventory service")
		}
		closers = append(closers, func() { _ = conn.Close() })
		stock = lookup.NewGRPCStockOracle(conn)
	default:
		log.WithField("backend", cfg.StockBackend).Fatal("unknown STOCK_BACKEND")
	}

	// Catalog
	var products lookup.ProductCatalog
	switch cfg.CatalogBackend {
	case "http":
		products = httpLookup
	case "sqlite":
		repo, err := catalog.NewRepository(cfg.CatalogDBPath)
		if err != nil {
			log.WithError(err).Fatal("failed to open product catalog")
		}
		closers = append(closers, func() { _ = repo.Close() })
		if err := repo.RunMigrations(); err != nil {
			log.WithError(err).Fatal("failed to run catalog migrations")
		}
		products = repo
	default:
		log.WithField("backend", cfg.CatalogBackend).Fatal("unknown CATALOG_BACKEND")
	}
	// the product cache needs Redis; it is off unless CATALOG_CACHE_TTL is set
	if cfg.CatalogCacheTTL > 0 {
		products = catalog.NewCachedCatalog(products, redisFor(), cfg.CatalogCacheTTL, log)
	}

	// Notifications
	sinks := []notify.Sink{notify.NewLogSink(log)}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink := notify.NewKafkaSink(cfg.KafkaTopic, log, cfg.KafkaBrokers...)
		closers = append(closers, func() { _ = kafkaSink.Close() })
		sinks = append(sinks, kafkaSink)
	}

	cart := service.Open(ctx, service.Dependencies{
		Stock:         stock,
		Catalog:       products,
		Persistence:   adapter,
		Sink:          notify.Multi(sinks...),
		Log:           log,
		LookupTimeout: cfg.LookupTimeout,
	})

	// gRPC health
	healthSrv := health.NewServer()
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCHealthPort))
	if err != nil {
		log.WithError(err).Fatal("failed to listen")
	}
	go func() {
		log.WithField("port", cfg.GRPCHealthPort).Info("health server listening")
		if err := grpcServer.Serve(lis); err != nil {
			log.WithError(err).Fatal("failed to serve health")
		}
	}()

	// HTTP API
	cartHandler := h.NewCartHandler(cart, cfg.RequestTimeout, log)
	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     h.NewRouter(cartHandler, log),
		ReadTimeout: 10 * time.Second,
		// no WriteTimeout: the event stream stays open
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.HTTPPort).Info("cart API starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down cart...")
	healthSrv.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// closing the hub ends open event streams so Shutdown can drain them
	cart.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
	grpcServer.GracefulStop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.WithError(err).Warn("failed to flush traces")
	}
	log.Info("cart stopped")
}
