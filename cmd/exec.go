package cmd

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"swapit/config"
	"swapit/handlers"
	"swapit/internal/llm"
	"swapit/internal/ocr"
	_ "swapit/migrations"
	"swapit/monitoring"
	"swapit/security"
	"swapit/services"
	"swapit/store"
	"swapit/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Initialize PubNub
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	pn := pubnub.NewPubNub(pnConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	db := store.NewPB(app)
	monitor := monitoring.NewMonitor()
	publisher := services.NewPubNubPublisher(pn)
	limiter := security.NewRateLimiter(redisClient)
	generator := llm.NewOllamaClient(cfg.OllamaHost, cfg.OllamaModel, cfg.GenerateTimeout)
	extractor := ocr.NewTesseract(cfg.TesseractBin)

	registryService := services.NewRegistryService(db, db, redisClient, monitor, cfg.TicketLockTTL)
	sessionRouter := services.NewSessionRouter(db, monitor)
	mediationService := services.NewMediationService(db, db, db, sessionRouter, generator, publisher, monitor)
	gatewayService := services.NewGatewayService(pn, publisher, sessionRouter, mediationService, limiter, cfg)

	// Initialize handlers
	ticketHandler := handlers.NewTicketHandler(registryService, db, extractor, generator)
	negotiationHandler := handlers.NewNegotiationHandler(registryService, db)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Start the realtime gateway
	go gatewayService.Run(ctx)

	if cfg.EnableMetrics {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.Printf("Metrics server listening on :%s", cfg.MetricsPort)
			if err := http.ListenAndServe(":"+cfg.MetricsPort, mux); err != nil {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	}

	// Setup graceful shutdown
	go handleShutdown(cancel, gatewayService)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		e.Router.BindFunc(limiter.HTTPRateLimit(cfg.RequestsPerMinute))

		// Ticket endpoints
		e.Router.POST("/upload_ticket", ticketHandler.UploadTicket)
		e.Router.GET("/tickets", ticketHandler.ListTickets)
		e.Router.POST("/process_ticket", ticketHandler.ProcessTicket)
		e.Router.GET("/generate-questions", ticketHandler.GenerateQuestions)

		// Negotiation endpoints
		e.Router.POST("/start_negotiation", negotiationHandler.StartNegotiation)
		e.Router.POST("/negotiations/{id}/close", negotiationHandler.CloseNegotiation)
		e.Router.GET("/negotiations/{id}/messages", negotiationHandler.GetTranscript)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc, gateway *services.GatewayService) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	gateway.Shutdown()
	cancel()
}
