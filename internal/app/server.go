// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"subscription-service/internal/config"
	"subscription-service/internal/db"
	"subscription-service/internal/events"
	authHandler "subscription-service/internal/handlers/auth"
	healthHandler "subscription-service/internal/handlers/health"
	planHandler "subscription-service/internal/handlers/plans"
	subscriptionHandler "subscription-service/internal/handlers/subscription"
	wsHandler "subscription-service/internal/handlers/websocket"
	"subscription-service/internal/middleware"
	"subscription-service/internal/pkg/jwt"
	"subscription-service/internal/pkg/metrics"
	"subscription-service/internal/pkg/session"
	authUsecase "subscription-service/internal/service/auth"
	planUsecase "subscription-service/internal/service/plans"
	subscriptionUsecase "subscription-service/internal/service/subscription"
	"subscription-service/internal/service/sweeper"
	"subscription-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	Version         = "1.0.0"
	shutdownTimeout = 10 * time.Second
)

type Server struct {
	cfg    config.AppConfig
	logger *zap.Logger
}

func NewServer(cfg config.AppConfig, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, logger: logger}
}

// Run serves HTTP until ctx is cancelled, then drains and releases every dependency.
func (s *Server) Run(ctx context.Context) error {
	logger := s.logger
	m := metrics.New(prometheus.DefaultRegisterer)

	// ----- PostgreSQL -----
	core, err := NewCore(ctx, s.cfg, m, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer core.Close()

	// ----- Redis -----
	redisClient, err := db.NewRedis(db.RedisConfig{
		Addresses: []string{s.cfg.RedisAddr},
		Password:  s.cfg.RedisPass,
		PoolSize:  10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer redisClient.Close()
	logger.Info("connected to Redis", zap.String("addr", s.cfg.RedisAddr))

	// ----- JWT Manager -----
	jwtManager, err := jwt.LoadAndBuild(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT manager: %w", err)
	}

	// ----- Session Manager & Rate Limiter -----
	sessionManager := session.NewManager(redisClient)
	rateLimiter := session.NewRateLimiter(redisClient)

	authService := authUsecase.NewAuthService(
		core.Users,
		jwtManager.Generator,
		jwtManager.Verifier,
		sessionManager,
		rateLimiter,
		logger,
	)

	// ----- WebSocket Hub -----
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := websocket.NewHub(authService, logger)
	go hub.Run(hubCtx)

	// ----- Event sinks -----
	sinks := []events.Sink{{Name: "websocket", Publisher: hub}}
	var breaker *events.BreakerPublisher
	if s.cfg.RabbitMQURL != "" {
		rabbit, err := events.NewRabbitMQPublisher(s.cfg.RabbitMQURL, s.cfg.EventsExchange, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		defer rabbit.Close()

		breaker = events.NewBreakerPublisher(rabbit, events.DefaultBreakerConfig("rabbitmq"), logger)
		sinks = append(sinks, events.Sink{Name: "rabbitmq", Publisher: breaker})
	} else {
		logger.Info("RABBITMQ_URL not set, events go to websocket clients only")
	}
	publisher := events.NewMulti(m, logger, sinks...)

	// ----- Services (Usecases) -----
	planService := planUsecase.NewPlanService(core.Plans, logger)
	if s.cfg.SeedPlans {
		n, err := planService.SeedDefaults(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed plans: %w", err)
		}
		logger.Info("plan catalog seeded", zap.Int("inserted", n))
	}

	engine := subscriptionUsecase.NewSubscriptionService(core.Subscriptions, core.Plans, publisher, nil, m, logger)

	// ----- Sweeper -----
	sweepCfg, err := SweeperConfig(s.cfg)
	if err != nil {
		return err
	}
	sw := sweeper.New(engine, sweepCfg, nil, m, logger)
	if s.cfg.Sweeper.Enabled {
		if err := sw.Start(ctx); err != nil {
			return fmt.Errorf("failed to start sweeper: %w", err)
		}
		defer sw.Stop()
	} else {
		logger.Info("sweeper disabled")
	}

	// ----- Handlers -----
	health := healthHandler.NewHealthHandler(Version, logger,
		healthHandler.Check{Name: "postgres", Probe: core.Pool.Ping},
		healthHandler.Check{Name: "redis", Probe: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}, Optional: true},
	)
	if breaker != nil {
		health.WithState("rabbitmq_breaker", breaker)
	}

	handlers := &Handlers{
		HealthHandler:       health,
		AuthHandler:         authHandler.NewAuthHandler(authService, hub, logger),
		PlanHandler:         planHandler.NewPlanHandler(planService, logger),
		SubscriptionHandler: subscriptionHandler.NewSubscriptionHandler(engine, planService, logger),
		WSHandler:           wsHandler.NewWebSocketHandler(hub, s.cfg.CORSOrigins, logger),
		AuthMiddleware:      middleware.NewAuthMiddleware(authService),
	}

	// ----- Middlewares -----
	if !s.cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(logger, m),
		middleware.LoggingMiddleware(logger, m),
		middleware.CORSMiddleware(s.cfg.CORSOrigins),
	)
	SetupRouter(router, handlers)

	// ----- Start HTTP -----
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", s.cfg.HTTPAddr), zap.String("env", s.cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
