package server

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"backend-gocars/internal/auth"
	"backend-gocars/internal/config"
	"backend-gocars/internal/emergency"
	"backend-gocars/internal/evidence"
	"backend-gocars/internal/location"
	"backend-gocars/internal/notify"
	"backend-gocars/internal/place"
	"backend-gocars/internal/ride"
	"backend-gocars/internal/safety"
	"backend-gocars/internal/settings"
	"backend-gocars/internal/share"
	"backend-gocars/internal/stream"
	"backend-gocars/internal/tracking"
)

type Server struct {
	App       *fiber.App
	Cfg       config.Config
	DB        *pgxpool.Pool
	Redis     *redis.Client
	Stream    *stream.Hub
	Monitor   *safety.Monitor
	Incidents *emergency.Service
}

type services struct {
	auth          *auth.Service
	rides         *ride.Service
	settings      *settings.Service
	locations     *location.Store
	evidence      *evidence.Service
	safetyRepo    *safety.Repo
	emergencyRepo *emergency.Repo
	tracks        *tracking.Service
	places        *place.Service
	shares        *share.Service
}

// NewServer wires every service. fcm may be nil; push and ops dispatch then
// degrade to log output.
func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client, fcm *notify.FCM) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	log := slog.Default()

	hub := stream.NewHub(redisClient, log)
	svcs := services{
		auth:          auth.NewService(cfg.JWTSecret, db),
		rides:         ride.NewService(db),
		settings:      settings.NewService(db),
		locations:     location.NewStore(redisClient, 0),
		evidence:      evidence.NewService(db, cfg.EvidenceBaseURL),
		safetyRepo:    safety.NewRepo(db),
		emergencyRepo: emergency.NewRepo(db),
		tracks:        tracking.NewService(db, hub),
		places:        place.NewService(db),
	}

	channels := notify.NewLogChannels(log)
	pusher := notify.NewPusher(fcm, svcs.auth, log)
	dispatcher := notify.NewOpsDispatcher(fcm, cfg.FCMEmergencyTopic, log)

	incidents := emergency.NewService(emergency.DefaultConfig(), emergency.Deps{
		Settings:   svcs.settings,
		Locations:  svcs.locations,
		Channels:   channels,
		Dispatcher: dispatcher,
		Captures:   svcs.evidence,
		Store:      svcs.emergencyRepo,
		Hub:        hub,
		Log:        log,
	})

	monitor := safety.NewMonitor(safety.DefaultConfig(), safety.Deps{
		Locator:   svcs.locations,
		Settings:  svcs.settings,
		Store:     svcs.safetyRepo,
		Notifier:  pusher,
		Channels:  channels,
		Incidents: incidents,
		Hub:       hub,
	})

	// Share links resolve against the live monitor registry.
	svcs.shares = share.NewService(db, monitor)

	s := &Server{
		App:       app,
		Cfg:       cfg,
		DB:        db,
		Redis:     redisClient,
		Stream:    hub,
		Monitor:   monitor,
		Incidents: incidents,
	}

	registerRoutes(s, svcs)
	return s
}

func registerRoutes(s *Server, svcs services) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	auth.RegisterRoutes(s.App.Group("/auth"), svcs.auth, jwtMiddleware)
	ride.RegisterRoutes(s.App.Group("/rides"), svcs.rides, jwtMiddleware)
	settings.RegisterRoutes(s.App.Group("/settings"), svcs.settings, jwtMiddleware)
	location.RegisterRoutes(s.App.Group("/location"), svcs.locations, jwtMiddleware)
	safety.RegisterRoutes(s.App.Group("/safety"), s.Monitor, svcs.rides, svcs.safetyRepo, jwtMiddleware)
	emergency.RegisterRoutes(s.App.Group("/emergency"), s.Incidents, svcs.emergencyRepo, jwtMiddleware)
	evidence.RegisterRoutes(s.App.Group("/evidence"), svcs.evidence, jwtMiddleware)
	tracking.RegisterRoutes(s.App.Group("/tracks"), svcs.tracks, jwtMiddleware)
	place.RegisterRoutes(s.App.Group("/places"), svcs.places, jwtMiddleware)
	share.RegisterRoutes(s.App.Group("/share"), svcs.shares, jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}

// Shutdown drains HTTP, stops monitoring and incident tasks with a final
// persist, and closes the event relay.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.App.ShutdownWithContext(ctx); err != nil {
		return err
	}
	s.Monitor.Shutdown(ctx)
	if err := s.Incidents.Shutdown(ctx); err != nil {
		slog.Warn("incident service shutdown", "error", err)
	}
	return s.Stream.Close()
}
