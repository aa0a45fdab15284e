package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	buspkg "github.com/Divarin/Community-sub002/internal/bus"
	"github.com/Divarin/Community-sub002/internal/chat"
	"github.com/Divarin/Community-sub002/internal/chatcache"
	"github.com/Divarin/Community-sub002/internal/config"
	"github.com/Divarin/Community-sub002/internal/db"
	"github.com/Divarin/Community-sub002/internal/handlers"
	"github.com/Divarin/Community-sub002/internal/observability"
	"github.com/Divarin/Community-sub002/internal/rabbitmq"
	"github.com/Divarin/Community-sub002/internal/reads"
	"github.com/Divarin/Community-sub002/internal/registry"
	"github.com/Divarin/Community-sub002/internal/repositories"
	"github.com/Divarin/Community-sub002/internal/server"
	"github.com/Divarin/Community-sub002/internal/telemetry"
	"github.com/Divarin/Community-sub002/internal/transport"
	"github.com/Divarin/Community-sub002/internal/voice"
)

func main() {
	cfg := config.Load()

	logger, err := observability.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	database, err := db.Connect(cfg.DatabaseDSN, logger)
	if err != nil {
		logger.Fatal("failed to connect to db", zap.Error(err))
	}

	chatRepo := repositories.NewChatRepo(database)
	channelRepo := repositories.NewChannelRepo(database)
	flagRepo := repositories.NewUserChannelFlagRepo(database)
	metaRepo := repositories.NewMetadataRepo(database)
	notifRepo := repositories.NewNotificationRepo(database)
	logRepo := repositories.NewLogRepo(database)
	userRepo := repositories.NewUserRepo(database)

	publisher := rabbitmq.NewPublisher(cfg.AmqpURL, cfg.AmqpExchange, logger)
	defer publisher.Close()
	audit := telemetry.NewAuditEmitter(publisher, "audit.community", "community", cfg.Env, logger)

	bus := buspkg.New(logger)
	reg := registry.New(registry.Limits{
		MaxTotal:      cfg.MaxSessions,
		MaxPerUser:    cfg.MaxSessionsPerUser,
		MaxPerAddress: cfg.MaxSessionsPerAddress,
	})
	cache := chatcache.New(chatRepo, logger)
	tracker := reads.NewTracker(reg, metaRepo, reads.GzipCompressor{}, logger)
	voiceMgr := voice.NewManager(bus, flagRepo, notifRepo, cfg.VoiceQueueDuration, cfg.VoiceSweepInterval, logger)

	chatSvc := chat.NewService(chat.Options{
		MaxChannelNameLen:    cfg.MaxChannelNameLen,
		AllowChannelCreation: cfg.AllowChannelCreation,
	}, cache, chatRepo, channelRepo, flagRepo, userRepo, tracker, bus, reg, audit, logger)

	srv := server.New(cfg, bus, reg, chatSvc, voiceMgr, tracker, userRepo, notifRepo, metaRepo, logRepo, audit, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runAdmin(ctx, cfg, reg, channelRepo, srv, logger)

	if err := srv.Listen(ctx); err != nil {
		logger.Fatal("terminal listener failed", zap.Error(err))
	}
}

func runAdmin(ctx context.Context, cfg *config.Config, reg *registry.Registry, channelRepo repositories.ChannelRepository, srv *server.Server, logger *zap.Logger) {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	admin := handlers.NewAdminHandler(reg, channelRepo)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/admin/sessions", admin.ListSessions)
	router.GET("/admin/channels", admin.ListChannels)

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	router.GET("/ws", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		go srv.HandleConn(ctx, transport.NewWS(conn))
	})

	if err := router.Run(":" + cfg.AdminPort); err != nil {
		logger.Error("admin server error", zap.Error(err))
	}
}
