package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/fjod/go_cart/cartkeeper/internal/inventory"
	"github.com/fjod/go_cart/cartkeeper/internal/lookup"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

// Initial stock levels matching the catalog seeds
var initialStock = map[int64]int32{
	1: 3,
	2: 5,
	3: 2,
	4: 1,
	5: 5,
	6: 10,
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		log.SetLevel(level)
	}

	port := getEnv("INVENTORY_SERVICE_PORT", "50053")

	memStore := inventory.NewMemoryStore()
	if err := inventory.Seed(memStore, initialStock); err != nil {
		log.WithError(err).Fatal("failed to set initial stock")
	}
	log.WithField("products", len(initialStock)).Info("initialized stock")

	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", port))
	if err != nil {
		log.WithError(err).Fatal("failed to listen")
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	lookup.RegisterStockServer(grpcServer, inventory.NewServer(memStore, log))

	go func() {
		log.WithField("port", port).Info("inventory service listening")
		if err := grpcServer.Serve(lis); err != nil {
			log.WithError(err).Fatal("failed to serve")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down inventory service...")
	grpcServer.GracefulStop()
	log.Info("inventory service stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
