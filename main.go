package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"jam-service/internal/config"
	"jam-service/internal/db"
	"jam-service/internal/handlers"
	"jam-service/internal/identity"
	"jam-service/internal/middleware"
	"jam-service/internal/observability"
	"jam-service/internal/provider"
	"jam-service/internal/queue"
	"jam-service/internal/rabbitmq"
	"jam-service/internal/repositories"
	"jam-service/internal/session"
	"jam-service/internal/store"
	"jam-service/internal/telemetry"
	"jam-service/internal/ws"
)

func main() {
	cfg := config.Load()

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	groupRepo := repositories.NewGroupRepo(database)

	var sessionStore store.SessionStore
	var queueIndex queue.Index
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("invalid redis url: %v", err)
		}
		rdb := redis.NewClient(opts)
		sessionStore = store.NewRedisStore(rdb)
		queueIndex = queue.NewRedisIndex(rdb)
		log.Printf("session state backed by redis")
	} else {
		sessionStore = store.NewMemoryStore()
		queueIndex = queue.NewMemoryIndex()
		log.Printf("session state backed by process memory")
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))

	if cfg.AMQPURL != "" {
		if eventsPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange); err != nil {
			log.Printf("observability events disabled: %v", err)
		} else {
			observability.SetPublisher(eventsPublisher)
			defer eventsPublisher.Close()
		}
	}

	audit := telemetry.NewAuditEmitter(publisher, "audit.jam", "jam-service", cfg.Environment)

	resolver := identity.NewHTTPResolver(cfg.AuthServiceURL)
	gateway := provider.NewHTTPGateway(cfg.ProviderGatewayURL)

	hub := ws.NewHub()
	sessions := session.NewService(sessionStore, queueIndex, groupRepo, gateway, gateway, hub)

	sessionHandler := handlers.NewSessionHandler(sessions, audit)
	sessionWS := ws.NewSessionSocketHandler(hub, sessions, resolver)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(resolver)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/groups/:group_id/session", authMiddleware, sessionHandler.Start)
	router.DELETE("/groups/:group_id/session", authMiddleware, sessionHandler.Stop)
	router.GET("/groups/:group_id/session", authMiddleware, sessionHandler.Get)
	router.GET("/groups/:group_id/queue", authMiddleware, sessionHandler.GetQueue)
	router.PATCH("/groups/:group_id/session/settings", authMiddleware, sessionHandler.UpdateSettings)

	router.GET("/ws/groups/:group_id", sessionWS.Handle)

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
