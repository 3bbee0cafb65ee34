package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"whatsapp-router/internal/api"
	"whatsapp-router/internal/auth"
	"whatsapp-router/internal/config"
	"whatsapp-router/internal/database"
	"whatsapp-router/internal/logger"
	"whatsapp-router/internal/media"
	"whatsapp-router/internal/membership"
	"whatsapp-router/internal/metrics"
	"whatsapp-router/internal/outbound"
	"whatsapp-router/internal/projects"
	"whatsapp-router/internal/users"
	"whatsapp-router/internal/webhook"
	"whatsapp-router/internal/whatsapp"
	"whatsapp-router/internal/ws"

	"github.com/Depado/ginprom"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.LoadConfig()
	logger.InitLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	store := database.NewStore(db)

	routerMetrics := metrics.NewRouterMetrics(prometheus.DefaultRegisterer)
	projectService := projects.NewService(store, cfg.ProjectCacheTTL)
	resolver := membership.NewResolver(projectService, cfg.ProbeTimeout, cfg.ProbeConcurrency, routerMetrics)
	whatsappClient := whatsapp.NewClient(cfg)

	mediaStore, err := media.NewLocalStore(cfg.UploadDir, cfg.UploadURLPrefix)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare upload directory")
	}

	hub := ws.NewHub()
	go hub.Run(ctx)

	dispatcher := outbound.NewDispatcher(store, whatsappClient, projectService, routerMetrics)
	processor := webhook.NewProcessor(webhook.Deps{
		Store:      store,
		Resolver:   resolver,
		Projects:   projectService,
		Replier:    dispatcher,
		Downloader: whatsappClient,
		Media:      mediaStore,
		Notifier:   hub,
		Metrics:    routerMetrics,
		BotName:    cfg.BotName,
	})
	webhookHandler := webhook.NewHandler(cfg.VerifyToken, processor)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization", auth.APIKeyHeader, "X-Requested-With", "Origin", "Accept"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	p := ginprom.New(
		ginprom.Engine(r),
		ginprom.Subsystem("gin"),
		ginprom.Path("/metrics"),
		ginprom.Ignore("/ws"),
	)
	r.Use(p.Instrument())

	r.Static(cfg.UploadURLPrefix, cfg.UploadDir)
	r.GET("/ws", func(c *gin.Context) {
		hub.ServeWs(c.Writer, c.Request)
	})

	// Webhook Routes
	r.GET("/webhook", webhookHandler.VerifyWebhook)
	r.POST("/webhook", webhookHandler.HandleMessage)

	signer := auth.NewSigner(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpiresIn)
	handlers := api.Handlers{
		Conversations: api.NewConversationHandler(dispatcher),
		Contacts:      api.NewContactHandler(dispatcher),
		Projects:      api.NewProjectHandler(projectService),
		WhatsApp:      api.NewWhatsAppHandler(whatsappClient),
		Users:         api.NewUserHandler(users.NewService(store, signer)),
	}
	apiGroup := r.Group("/api")
	api.RegisterPublic(apiGroup, handlers)
	api.Register(apiGroup.Group("", auth.Middleware(projectService, cfg.JWTSecret, cfg.JWTIssuer)), handlers)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to run server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
