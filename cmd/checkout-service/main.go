package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hideaki1979/ud-la12react-ec/internal/cart"
	"github.com/hideaki1979/ud-la12react-ec/internal/config"
	"github.com/hideaki1979/ud-la12react-ec/internal/db"
	"github.com/hideaki1979/ud-la12react-ec/internal/dedup"
	eventserver "github.com/hideaki1979/ud-la12react-ec/internal/events"
	"github.com/hideaki1979/ud-la12react-ec/internal/fulfillment"
	httpserver "github.com/hideaki1979/ud-la12react-ec/internal/http"
	"github.com/hideaki1979/ud-la12react-ec/internal/order"
	"github.com/hideaki1979/ud-la12react-ec/internal/payment"
	"github.com/hideaki1979/ud-la12react-ec/internal/sequence"
	"github.com/hideaki1979/ud-la12react-ec/internal/user"
)

func main() {
	cfg := config.Load()

	logger := log.New(os.Stdout, "[checkout-service] ", log.LstdFlags|log.Lshortfile)

	// DB
	database := db.MustOpen(cfg.DatabaseDSN)
	if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
		logger.Fatalf("migrations: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatalf("pgx pool: %v", err)
	}
	defer pool.Close()

	orderRepo := order.NewRepository(database)
	seenRepo := dedup.NewRepository(database)
	seqRepo := sequence.NewRepository(database)
	cartStore := cart.NewPostgresStore(pool)

	// Upstreams
	users, err := user.NewHTTPDirectory(cfg.UserServiceURL, cfg.UpstreamTimeout)
	if err != nil {
		logger.Fatalf("user directory: %v", err)
	}
	gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.SuccessURL, cfg.CancelURL, cfg.ProviderTimeout)
	verifier := payment.NewVerifier(cfg.StripeWebhookSecret)

	// RabbitMQ
	rabbitConn := eventserver.MustDialRabbit(cfg.RabbitURL)
	defer rabbitConn.Close()

	publisher, err := eventserver.NewPublisher(rabbitConn, seqRepo)
	if err != nil {
		logger.Fatalf("publisher: %v", err)
	}
	defer publisher.Close()

	notifier := eventserver.NewEmailNotifier(publisher, users, cfg.AdminEmail, logger)
	svc := fulfillment.NewService(orderRepo, gateway, notifier, logger)

	if err := eventserver.StartPaymentTaskConsumer(ctx, rabbitConn, svc, seenRepo, logger); err != nil {
		logger.Fatalf("start consumer: %v", err)
	}

	// HTTP
	checkoutHandler := httpserver.NewCheckoutHandler(orderRepo, cartStore, gateway, users, svc, logger)
	webhookHandler := httpserver.NewWebhookHandler(verifier, publisher, logger)
	orderHandler := httpserver.NewOrderHandler(orderRepo)
	router := httpserver.NewRouter(checkoutHandler, webhookHandler, orderHandler)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Printf("checkout-service listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	cancel()
}
