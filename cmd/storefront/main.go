package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/example/jewel-storefront/internal/api"
	"github.com/example/jewel-storefront/internal/auth"
	"github.com/example/jewel-storefront/internal/bus"
	"github.com/example/jewel-storefront/internal/commerce"
	"github.com/example/jewel-storefront/internal/infrastructure/kafka"
	"github.com/example/jewel-storefront/internal/session"
	"github.com/example/jewel-storefront/internal/wishlist"
	"github.com/google/uuid"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Configuration from environment variables
	commerceURL := getEnv("COMMERCE_API_URL", "http://localhost:3000/api")
	commerceKey := os.Getenv("COMMERCE_API_KEY")
	kafkaBrokersStr := getEnv("KAFKA_BROKERS", "localhost:9092")
	kafkaBrokers := strings.Split(kafkaBrokersStr, ",")
	kafkaTopic := getEnv("KAFKA_TOPIC", "storefront-signals")
	postgresConnStr := os.Getenv("DATABASE_URL")
	listenAddr := getEnv("LISTEN_ADDR", ":8080")
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("[Storefront] JWT_SECRET environment variable is required")
	}
	if len(jwtSecret) < 32 {
		log.Fatal("[Storefront] JWT_SECRET must be at least 32 characters long")
	}

	// Each instance gets an identity so it can ignore its own broadcasts
	instanceID := uuid.New().String()

	log.Println("[Storefront] ========================================")
	log.Println("[Storefront] Jewel Storefront")
	log.Println("[Storefront] ========================================")
	log.Printf("[Storefront] Instance: %s", instanceID)
	log.Printf("[Storefront] Commerce API: %s", commerceURL)
	log.Printf("[Storefront] Kafka: %v", kafkaBrokers)
	log.Printf("[Storefront] Topic: %s", kafkaTopic)

	// Initialize commerce API client
	client := commerce.NewClient(commerceURL, commerceKey)

	// Checkout sessions: PostgreSQL when configured, in-memory otherwise
	var sessions session.Store
	if postgresConnStr != "" {
		db, err := session.Connect(postgresConnStr)
		if err != nil {
			log.Fatalf("[Storefront] Failed to connect to PostgreSQL: %v", err)
		}
		defer db.Close()

		sessions, err = session.NewPostgresStore(db)
		if err != nil {
			log.Fatalf("[Storefront] Failed to prepare session store: %v", err)
		}
		log.Println("[Storefront] Checkout sessions: PostgreSQL")
	} else {
		sessions = session.NewMemoryStore()
		log.Println("[Storefront] Checkout sessions: in-memory")
	}

	// Wishlist change bus and per-user stores
	changed := bus.New()
	wishlists := wishlist.NewManager(client, changed)

	// Initialize Kafka producer for cross-instance broadcasts
	producer := kafka.NewProducer(kafkaBrokers, kafkaTopic, instanceID)
	defer producer.Close()

	// Initialize JWT service
	jwtService := auth.NewJWTService(
		jwtSecret,
		15*time.Minute, // Access token expiry
		7*24*time.Hour, // Refresh token expiry (7 days)
	)

	// Consume broadcasts from the rest of the fleet and relay them onto the
	// local bus. Signals this instance produced are already applied locally.
	consumer := kafka.NewConsumer(kafkaBrokers, kafkaTopic, "storefront-"+instanceID)
	defer consumer.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Println("[Storefront] Starting Kafka consumer...")
		err := consumer.Consume(ctx, func(ctx context.Context, signal kafka.Signal) error {
			if signal.Origin == instanceID {
				return nil
			}
			if signal.Type == kafka.SignalWishlistChanged {
				changed.Publish(signal.UserID)
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			log.Printf("[Storefront] Consumer error: %v", err)
		}
	}()

	// Sweep expired checkout sessions periodically
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := sessions.DeleteExpired(); err != nil {
					log.Printf("[Storefront] Session sweep failed: %v", err)
				}
			}
		}
	}()

	// Initialize API
	handlers := api.NewHandlers(wishlists, sessions, client, client, producer, 2*time.Hour)
	authHandlers := api.NewAuthHandlers(client, jwtService, wishlists)
	router := api.NewRouter(handlers, authHandlers, jwtService)

	// Start HTTP server
	server := &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}

	go func() {
		log.Println("[Storefront] ========================================")
		log.Printf("[Storefront] Server started on %s", listenAddr)
		log.Println("[Storefront] ========================================")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[Storefront] Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[Storefront] Shutting down...")
	cancel() // Cancel context to stop consumer and sweeper

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	wg.Wait()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
