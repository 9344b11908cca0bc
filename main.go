package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"dm-service/internal/auth"
	"dm-service/internal/db"
	"dm-service/internal/handlers"
	"dm-service/internal/middleware"
	"dm-service/internal/observability"
	"dm-service/internal/presence"
	"dm-service/internal/rabbitmq"
	"dm-service/internal/repositories"
	"dm-service/internal/service"
	"dm-service/internal/telemetry"
	"dm-service/internal/ws"
)

func main() {
	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	shutdownTracing, err := telemetry.InitTracing(context.Background(), "dm-service", getEnv("OTLP_ENDPOINT", ""))
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	publisher := rabbitmq.NewPublisher(getEnv("AMQP_URL", ""), getEnv("AMQP_EXCHANGE", "dm_events"))
	defer publisher.Close()
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))
	emitter := telemetry.NewEventEmitter(publisher, "dm-service", getEnv("ENVIRONMENT", "dev"))

	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	counterRepo := repositories.NewUnreadCounterRepo(database)

	registry := presence.NewRegistry()
	router := presence.NewRouter(registry)

	messageService := service.NewMessageService(chatRepo, messageRepo, counterRepo, router, emitter)

	authenticator := auth.NewAuthenticator(getEnv("JWT_SECRET", "dev-secret"), "dm-service", 24*time.Hour)

	chatHandler := handlers.NewChatHandler(chatRepo, messageService)
	messageHandler := handlers.NewMessageHandler(messageService)
	wsHandler := ws.NewHandler(registry, router, authenticator)

	engine := gin.Default()
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware("dm-service"))
	engine.Use(observability.HTTPMetricsMiddleware())

	limiter := middleware.NewLimiterStore(300, 30, 5*time.Minute)
	defer limiter.Stop()
	authMiddleware := middleware.AuthMiddleware(authenticator)
	rateLimit := middleware.RateLimitMiddleware(limiter)

	engine.GET("/chats", authMiddleware, chatHandler.ListChats)
	engine.POST("/chats", authMiddleware, rateLimit, chatHandler.StartChat)
	engine.GET("/chats/:chat_id/messages", authMiddleware, chatHandler.GetChatMessages)
	engine.DELETE("/chats/:chat_id", authMiddleware, chatHandler.DeleteChat)

	engine.POST("/messages", authMiddleware, rateLimit, messageHandler.PostMessage)
	engine.PATCH("/messages/status", authMiddleware, messageHandler.UpdateStatus)
	engine.GET("/messages/unread", authMiddleware, messageHandler.TotalUnread)
	engine.DELETE("/messages", authMiddleware, messageHandler.DeleteMessages)

	engine.GET("/ws", wsHandler.Handle)

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	port := getEnv("PORT", "8083")
	if err := engine.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
