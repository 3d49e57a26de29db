package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"documind/internal/ai"
	appsvc "documind/internal/app"
	"documind/internal/bootstrap"
	"documind/internal/cache"
	"documind/internal/platform/rabbitmq"
	"documind/internal/rag"
	"documind/internal/repository"
	"documind/internal/transport/http/handler"
	"documind/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Authorization", "Content-Type"},
		ExposeHeaders:   []string{handler.SessionIDHeader},
		MaxAge:          12 * time.Hour,
	}))

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	sessionRepo := repository.NewSessionRepository(app.MySQL)
	messageRepo := repository.NewMessageRepository(app.MySQL)
	docRepo := repository.NewDocumentRepository(app.MySQL)

	aiClient := ai.NewClient()
	embedder := ai.NewEmbeddingService(aiClient, ai.EmbeddingConfig{
		BaseURL: app.Config.Embedding.BaseURL,
		APIKey:  app.Config.Embedding.APIKey,
		Model:   app.Config.Embedding.Model,
	})
	store := rag.NewStore(app.Layout, embedder, app.Config.Embedding.BatchSize)
	retriever := rag.NewRetriever(
		store,
		embedder,
		app.Config.Retrieval.TopK,
		app.Config.Retrieval.TopScoreGate,
		app.Config.Retrieval.IncludeThreshold,
		app.Config.Retrieval.MaxContextChars,
	)

	historyCache := cache.NewHistoryCache(
		app.Redis,
		time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second,
		0,
	)
	replyPublisher := rabbitmq.NewReplyPublisher(app.MQConn, app.Config.RabbitMQ.ReplyPersistQueue)

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	ingestService := appsvc.NewIngestService(
		docRepo,
		store,
		app.Config.Retrieval.ChunkSize,
		app.Config.Retrieval.ChunkOverlap,
		app.Log,
	)
	docService := appsvc.NewDocumentService(docRepo, app.Layout, ingestService, app.Log)
	chatService := appsvc.NewChatService(
		sessionRepo,
		messageRepo,
		replyPublisher,
		historyCache,
		retriever,
		aiClient,
		ai.ChatConfig{
			BaseURL: app.Config.LLM.BaseURL,
			APIKey:  app.Config.LLM.APIKey,
			Model:   app.Config.LLM.Model,
		},
		app.Config.LLM.MaxTokensCap,
		app.Log,
	)

	authHandler := handler.NewAuthHandler(authService)
	chatHandler := handler.NewChatHandler(chatService)
	fileHandler := handler.NewFileHandler(docService)

	jwtSecret := app.Config.Auth.JWTSecret
	v1 := router.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(jwtSecret), authHandler.Me)

	// Chat streaming is open to guests; session listing and history are not.
	chatGroup := v1.Group("/chat")
	chatGroup.POST("/stream", middleware.AuthOptional(jwtSecret), chatHandler.Stream)
	chatGroup.GET("/sessions", middleware.AuthJWT(jwtSecret), chatHandler.ListSessions)
	chatGroup.GET("/history", middleware.AuthJWT(jwtSecret), chatHandler.GetHistory)

	fileGroup := v1.Group("/files")
	fileGroup.Use(middleware.AuthJWT(jwtSecret))
	fileGroup.POST("/upload", fileHandler.Upload)
	fileGroup.GET("", fileHandler.List)
	fileGroup.DELETE("/:id", fileHandler.Delete)

	return router
}
