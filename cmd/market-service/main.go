package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nft-market/internal/api/handlers"
	"nft-market/internal/config"
	"nft-market/internal/infrastructure/leader"
	"nft-market/internal/infrastructure/mysql"
	redisinfra "nft-market/internal/infrastructure/redis"
	"nft-market/internal/infrastructure/websocket"
	"nft-market/internal/services"
	"nft-market/pkg/logger"
	"nft-market/pkg/utils"

	redisClient "github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	log := logger.New()
	log.Info("Starting NFT market service")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	instanceID := cfg.Instance.ID
	if instanceID == "" {
		instanceID = "market-" + uuid.NewString()
	}

	fees, err := cfg.Market.Fees()
	if err != nil {
		log.Error("Invalid fee configuration", "error", err)
		os.Exit(1)
	}

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	// Initialize MySQL
	db := utils.InitializeMysql(cfg, log, ctx)
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close MySQL connection", "error", err)
		}
	}()
	log.Info("Connected to MySQL")

	// Initialize stores
	auctionStore := mysql.NewAuctionStore(db)
	tokenStore := mysql.NewTokenStore(db)

	// Initialize Redis based components
	eventPublisher := redisinfra.NewEventPublisher(rdb)
	eventSubscriber := redisinfra.NewEventSubscriber(rdb, log)
	payoutPublisher := redisinfra.NewPayoutPublisher(rdb)

	// Initialize leader election
	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)

	// Initialize core services
	registry := services.NewTokenRegistry(tokenStore, log)
	engine := services.NewAuctionEngine(
		auctionStore,
		registry,
		payoutPublisher,
		cfg.Market.CustodyAccount,
		fees.Enrollment,
		log,
	)
	market := services.NewMarketplace(engine, registry, fees, eventPublisher, log)

	// Initialize websocket layer
	connManager := websocket.NewConnectionManager(log)
	eventListener := services.NewEventListener(eventSubscriber, connManager, log)

	// Initialize phase notifier
	phaseNotifier := services.NewPhaseNotifier(auctionStore, eventPublisher, leaderElection, instanceID, log)

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","method":"${method}","uri":"${uri}","status":${status},"error":"${error}","latency_human":"${latency_human}"}` + "\n",
	}))

	// Initialize handlers
	marketHandler := handlers.NewMarketHandler(market, log)
	feedHandler := handlers.NewFeedHandler(market, connManager, log)

	// API routes
	api := e.Group("/api/v1")
	api.POST("/tokens", marketHandler.Mint)
	api.GET("/tokens/:id", marketHandler.GetToken)
	api.POST("/tokens/:id/transfer", marketHandler.TransferToken)
	api.GET("/accounts/:id/tokens", marketHandler.TokensByOwner)
	api.POST("/auctions", marketHandler.CreateAuction)
	api.GET("/auctions/:id", marketHandler.GetAuction)
	api.GET("/accounts/:id/auctions", marketHandler.AuctionsByOwner)
	api.POST("/auctions/:id/bids", marketHandler.PlaceBid)
	api.POST("/auctions/:id/claims/token", marketHandler.ClaimToken)
	api.POST("/auctions/:id/claims/proceeds", marketHandler.ClaimProceeds)
	api.POST("/auctions/:id/claims/token-back", marketHandler.ReclaimToken)

	// Live auction feed
	e.GET("/ws/auctions/:id", feedHandler.HandleConnection)

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "nft-market",
			"timestamp": time.Now().Format(time.RFC3339),
			"instance":  instanceID,
		})
	})

	// Start background services
	go func() {
		if err := eventListener.Start(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Event listener stopped", "error", err)
		}
	}()

	if err := phaseNotifier.Start(context.Background()); err != nil {
		log.Error("Failed to start phase notifier", "error", err)
		os.Exit(1)
	}

	// Try to become leader
	go func() {
		for {
			became, err := leaderElection.BecomeLeader(context.Background(), instanceID)
			if err != nil {
				log.Error("Failed to attempt leadership", "error", err)
				time.Sleep(5 * time.Second)
				continue
			}
			if became {
				log.Info("Became market leader", "instance_id", instanceID)
			}
			time.Sleep(10 * time.Second)
		}
	}()

	// Start server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting market server", "address", serverAddr)

	go func() {
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down market service...")

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := phaseNotifier.Stop(); err != nil {
		log.Error("Failed to stop phase notifier", "error", err)
	}
	if err := leaderElection.ReleaseLeadership(ctx, instanceID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}
	if err := e.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Market service stopped")
}
