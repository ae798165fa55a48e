package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	rzp "github.com/razorpay/razorpay-go"
	"go.uber.org/zap"

	"checkout-gateway/config"
	"checkout-gateway/events"
	"checkout-gateway/handlers"
	"checkout-gateway/logging"
	"checkout-gateway/monitoring"
	"checkout-gateway/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize structured logging
	logOpts := logging.Options{ServiceName: cfg.ServiceName}
	if cfg.OTELEnabled {
		logOpts.OTLPEndpoint = cfg.OTELEndpoint
	}
	if err := logging.InitLogger(logOpts); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logging.Sync()
	defer func() {
		if err := logging.Shutdown(context.Background()); err != nil {
			logging.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()

	// Initialize OpenTelemetry
	tp, tracer, err := monitoring.InitTracer(cfg.ServiceName, cfg.OTELEndpoint, cfg.OTELEnabled)
	if err != nil {
		logging.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logging.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	mp, metricsHandler, err := monitoring.InitMeter(cfg.ServiceName, cfg.OTELEndpoint, cfg.OTELEnabled)
	if err != nil {
		logging.Fatal("Failed to initialize meter", zap.Error(err))
	}
	defer func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			logging.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	publisher := newPublisher(cfg)
	defer func() {
		if err := publisher.Close(); err != nil {
			logging.Error("Error closing event publisher", zap.Error(err))
		}
	}()

	ids := service.NewTimeIDGenerator()

	var adapters []handlers.GatewayAdapter
	if cfg.GatewayEnabled(config.GatewayRazorpay) {
		if cfg.Razorpay.KeyID == "" || cfg.Razorpay.KeySecret == "" {
			logging.Warn("Razorpay credentials are not configured")
		}
		client := rzp.NewClient(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret)
		orderGateway := service.NewOrderGateway(tracer, client.Order, cfg.Razorpay, ids, publisher)
		adapters = append(adapters, handlers.NewRazorpayHandler(orderGateway))
	}
	if cfg.GatewayEnabled(config.GatewayPhonePe) {
		if !cfg.PhonePe.Complete() {
			logging.Warn("PhonePe merchant credentials are not configured; /api/pay will fail")
		}
		checksumGateway := service.NewChecksumGateway(tracer, cfg.PhonePe, nil, ids, publisher)
		adapters = append(adapters, handlers.NewPhonePeHandler(checksumGateway))
	}
	if len(adapters) == 0 {
		logging.Fatal("No payment gateway enabled", zap.Strings("gateways", cfg.Gateways))
	}

	gin.SetMode(gin.ReleaseMode)
	router := handlers.NewRouter(handlers.RouterOptions{
		ServiceName:   cfg.ServiceName,
		AllowedOrigin: cfg.AllowedOrigin,
		Metrics:       metricsHandler,
	}, adapters...)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info("Checkout gateway starting",
			zap.String("port", cfg.Port),
			zap.Strings("gateways", cfg.Gateways),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logging.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error("HTTP server graceful shutdown failed", zap.Error(err))
	}
}

func newPublisher(cfg *config.Config) events.Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.NewLogPublisher(logging.GetLogger().With(zap.String("component", "PaymentEvents")))
	}
	logging.Info("Publishing payment events to Kafka",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
	)
	logger := logging.GetLogger().With(zap.String("component", "KafkaPublisher"))
	kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	return events.NewAsyncPublisher(kafkaPublisher, cfg.Kafka.QueueSize, logger)
}
