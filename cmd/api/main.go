package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"docchat_go_backend/cmd/api/config"
	"docchat_go_backend/internal/api"
	"docchat_go_backend/internal/auth"
	"docchat_go_backend/internal/database"
	"docchat_go_backend/internal/services"
	"docchat_go_backend/internal/utils/broker"
	"docchat_go_backend/internal/utils/cache"
	"docchat_go_backend/internal/utils/token"
	"docchat_go_backend/internal/wsocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogger(cfg)

	ctx := context.Background()

	db, err := database.InitDB(database.Options{
		Driver:     cfg.DBDriver,
		Host:       cfg.DBHost,
		User:       cfg.DBUser,
		Password:   cfg.DBPassword,
		Name:       cfg.DBName,
		Port:       cfg.DBPort,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	llm, err := services.NewLanguageModel(ctx, services.LLMConfig{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.LLMAPIKey,
		BaseURL:  cfg.LLMBaseURL,
		Model:    cfg.LLMModel,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create language model")
	}
	if closer, ok := llm.(io.Closer); ok {
		defer closer.Close()
	}

	blobs, closeBlobs := newBlobStorage(ctx, cfg)
	defer closeBlobs()

	// A nil interface disables response caching.
	var responseCache api.ResponseStore
	if cfg.RedisAddr != "" {
		rc, err := cache.NewResponseCache(cache.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			MaxKeys:  cfg.CacheMaxKeys,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		defer rc.Close()
		responseCache = rc
	} else {
		log.Info().Msg("REDIS_ADDR not set, response cache disabled")
	}

	messageBroker := broker.NewBroker()

	// Initialize Internal services
	userService := services.NewUserService(db)
	fileStore := services.NewFileStore(db)
	conversationStore := services.NewConversationStore(db)
	chatService := services.NewChatService(
		conversationStore,
		fileStore,
		services.NewFileProcessor(),
		services.NewContextAssembler(fileStore, conversationStore, cfg.HistoryWindow),
		services.NewIntentRouter(),
		llm,
		userService,
		blobs,
		messageBroker,
		services.ChatServiceConfig{
			ModelTimeout:      cfg.ModelTimeout,
			ProcessingTimeout: cfg.ProcessingTimeout,
			MaxFileSize:       cfg.MaxFileSize,
		},
	)

	tokens := token.NewManager(cfg.JWTSecret)
	authMiddleware := auth.AuthMiddleware(tokens, userService)

	r := gin.New()
	r.Use(gin.Recovery(), api.RequestLogger(log.Logger))

	// CORS middleware configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "X-Cache"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range cfg.AllowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}
	wsHandler := wsocket.NewHandler(upgrader, messageBroker, cfg.SessionCheckInterval)

	api.SetupRoutes(r, chatService, authMiddleware, responseCache, api.RouteConfig{
		MaxFileSize: cfg.MaxFileSize,
		CacheTTL:    cfg.CacheTTL,
	})
	auth.SetupRoutes(r, tokens, userService)

	r.GET("/ws", authMiddleware, func(c *gin.Context) {
		user, _ := auth.CurrentUser(c)
		wsHandler.HandleWebSocket(c.Writer, c.Request, user)
	})

	addr := ":" + strconv.Itoa(cfg.Port)
	log.Info().Str("addr", addr).Str("llm_provider", cfg.LLMProvider).Msg("Server starting")
	if err := r.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	zerolog.DefaultContextLogger = &log.Logger
	if level > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
}

func newBlobStorage(ctx context.Context, cfg *config.Config) (services.CloudStorageManager, func()) {
	if cfg.StorageBackend == "gcs" {
		gcs, err := services.NewGCSService(ctx, cfg.GCSBucketName)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create GCS service")
		}
		return gcs, func() { gcs.Close() }
	}
	local, err := services.NewLocalStorage(cfg.UploadDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create upload directory")
	}
	return local, func() {}
}
