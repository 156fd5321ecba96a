package api

import (
	"math/rand"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pickuphub/pickup-backend/internal/api/handlers"
	"github.com/pickuphub/pickup-backend/internal/api/middleware"
	"github.com/pickuphub/pickup-backend/internal/config"
	"github.com/pickuphub/pickup-backend/internal/repository"
	"github.com/pickuphub/pickup-backend/internal/service"
	"github.com/pickuphub/pickup-backend/internal/websocket"
	"github.com/pickuphub/pickup-backend/pkg/confirm"
	"github.com/pickuphub/pickup-backend/pkg/database"
	"github.com/pickuphub/pickup-backend/pkg/economy"
	"github.com/pickuphub/pickup-backend/pkg/logger"
)

// SetupRouter API 라우터 설정. 반환된 WaitlistService와 Hub는 main에서
// 종료 시 Stop해야 한다.
func SetupRouter(cfg *config.Config, db *database.DB) (*gin.Engine, *service.WaitlistService, *websocket.Hub) {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 전역 미들웨어
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// 확인 토큰 저장소 (redis)
	confirmStore, err := confirm.NewStore(cfg.RedisURL, cfg.ConfirmTokenTTL)
	if err != nil {
		panic("Failed to connect to redis: " + err.Error())
	}

	// Repository 초기화
	gameRepo := repository.NewGameRepository(db)
	playerRepo := repository.NewPlayerRepository(db)
	queueRepo := repository.NewQueueRepository(db)
	finishedRepo := repository.NewFinishedGameRepository(db)
	rotationRepo := repository.NewRotationRepository(db)
	waitlistRepo := repository.NewWaitlistRepository(db)

	// WebSocket Hub 초기화 및 시작
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Economy collaborator (선택)
	var economyClient service.EconomyClient
	if cfg.EconomyEnabled {
		economyClient = economy.NewClient(cfg.EconomyURL)
		logger.Info("Economy client enabled", "url", cfg.EconomyURL)
	}

	// Service 초기화
	ratingService := service.NewRatingService()
	rewardService := service.NewRewardService(rotationRepo, cfg.DefaultRaffleValue)
	rotationService := service.NewRotationService(
		db,
		rotationRepo,
		queueRepo,
		rand.New(rand.NewSource(time.Now().UnixNano())),
	)

	// Waitlist poller 초기화 및 시작
	waitlistService := service.NewWaitlistService(waitlistRepo, wsHub, cfg.WaitlistPollInterval)
	waitlistService.Start()

	resolutionService := service.NewResolutionService(
		db,
		gameRepo,
		playerRepo,
		queueRepo,
		finishedRepo,
		ratingService,
		rewardService,
		waitlistService,
		economyClient,
		wsHub,
		cfg.ReAddDelay,
	)

	// Handler 초기화
	gameHandler := handlers.NewGameHandler(resolutionService, gameRepo, finishedRepo, confirmStore)
	rotationHandler := handlers.NewRotationHandler(rotationService, rotationRepo, wsHub)
	wsHandler := handlers.NewWebSocketHandler(wsHub)

	// Health check
	router.GET("/health", handlers.HealthCheck)

	// API v1
	v1 := router.Group("/api/v1")
	{
		// WebSocket endpoint
		v1.GET("/ws", middleware.Auth(cfg), wsHandler.HandleWebSocket)

		// Game routes
		games := v1.Group("/games")
		games.Use(middleware.Auth(cfg))
		{
			games.GET("/:id", gameHandler.GetGame)
			games.POST("/:id/finalize", gameHandler.FinalizeGame)
			games.POST("/:id/cancel", gameHandler.CancelGame)
		}

		// Finished game routes
		finished := v1.Group("/finished-games")
		finished.Use(middleware.Auth(cfg))
		{
			finished.GET("/:id", gameHandler.GetFinishedGame)
		}

		// Confirm token routes
		v1.POST("/confirm-tokens", middleware.Auth(cfg), gameHandler.CreateConfirmToken)

		// Rotation routes
		rotations := v1.Group("/rotations")
		rotations.Use(middleware.Auth(cfg))
		{
			rotations.GET("/:id/maps", rotationHandler.ListMaps)
			rotations.POST("/:id/advance", rotationHandler.Advance)
			rotations.PUT("/:id/next-map", rotationHandler.SetNextMap)
		}
	}

	return router, waitlistService, wsHub
}
