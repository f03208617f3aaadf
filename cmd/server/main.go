package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tickify/config"
	"tickify/internal/api"
	"tickify/internal/broker"
	"tickify/internal/payfast"
	"tickify/internal/reconciler"
	"tickify/internal/redisclient"
	"tickify/internal/service"
	"tickify/internal/store"
	"tickify/internal/util"
	"tickify/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting tickify server")

	tp, err := util.InitTracer("tickify", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	gateway := payfast.New(payfast.Config{
		ProcessURL:  cfg.PayFast.ProcessURL,
		MerchantID:  cfg.PayFast.MerchantID,
		MerchantKey: cfg.PayFast.MerchantKey,
		Passphrase:  cfg.PayFast.Passphrase,
		ReturnURL:   cfg.PayFast.ReturnURL,
		CancelURL:   cfg.PayFast.CancelURL,
		NotifyURL:   cfg.PayFast.NotifyURL,
	})

	orderService := service.NewOrderService(db, redisClient, eventPublisher, cfg.Business.OrderTTL)
	paymentService := service.NewPaymentService(db, gateway, eventPublisher, cfg.Business.PlatformFeePercent)
	eventService := service.NewEventService(db)
	ticketService := service.NewTicketService(db, redisClient, cfg.Business.Currency)
	merchantService := service.NewMerchantService(db)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	rec := reconciler.New(db, redisClient, eventPublisher, cfg.Business.ReconcileInterval)
	go rec.Start(workerCtx)

	issuerConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	ticketIssuer := worker.NewTicketIssuer(issuerConsumer, db)
	go func() {
		if err := ticketIssuer.Start(workerCtx); err != nil {
			log.Printf("Ticket issuer error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// unknown body fields are a caller error, not noise to drop
	gin.EnableJsonDecoderDisallowUnknownFields()

	router := gin.New()
	handler := api.NewHandler(orderService, paymentService, eventService, ticketService, merchantService)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	ticketIssuer.Stop()

	log.Println("Server exited")
}
