package di

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/realqkqk123fr/temp-backend/internal/events"
	"github.com/realqkqk123fr/temp-backend/internal/handler"
	"github.com/realqkqk123fr/temp-backend/internal/inference"
	"github.com/realqkqk123fr/temp-backend/internal/metrics"
	"github.com/realqkqk123fr/temp-backend/internal/middleware"
	"github.com/realqkqk123fr/temp-backend/internal/notification"
	"github.com/realqkqk123fr/temp-backend/internal/realtime"
	"github.com/realqkqk123fr/temp-backend/internal/repository"
	"github.com/realqkqk123fr/temp-backend/internal/security"
	"github.com/realqkqk123fr/temp-backend/internal/service"
	"github.com/realqkqk123fr/temp-backend/internal/token"
	"github.com/realqkqk123fr/temp-backend/pkg/bus"
	"github.com/realqkqk123fr/temp-backend/pkg/config"
	"github.com/realqkqk123fr/temp-backend/pkg/database"
	"github.com/realqkqk123fr/temp-backend/pkg/logger"
	"github.com/realqkqk123fr/temp-backend/pkg/redis"
	"github.com/realqkqk123fr/temp-backend/pkg/storage"
	"github.com/realqkqk123fr/temp-backend/pkg/telemetry"
)

// Container holds all dependencies of the BFF
type Container struct {
	Config *config.Config
	Log    *logger.Logger

	// Infrastructure
	DB      *database.PostgresDB
	Redis   *redis.Client
	Bus     *bus.Bus
	Metrics *metrics.Metrics

	// Repositories
	UserRepo         repository.UserRepository
	RecipeRepo       repository.RecipeRepository
	NutritionRepo    repository.NutritionRepository
	SatisfactionRepo repository.SatisfactionRepository

	// Security
	Tokens        *token.Service
	StrictPolicy  *security.StrictBearerPolicy
	LenientPolicy *security.LenientBearerPolicy
	Whitelist     *security.Whitelist

	// Publishers
	EventPublisher events.Publisher
	Notifier       notification.Publisher
	relay          *notification.RelayPublisher

	// Realtime
	Hub     *realtime.Hub
	Router  *realtime.Router
	Gateway *realtime.Gateway

	// Services
	AuthService         service.AuthService
	UserService         service.UserService
	RecipeService       service.RecipeService
	NutritionService    service.NutritionService
	SatisfactionService service.SatisfactionService
	ChatService         service.ChatService

	// Handlers
	Handlers *handler.Handlers
}

// ContainerConfig contains the infrastructure the container is built on.
// Redis, Bus, Metrics, Images and EventPublisher may be nil.
type ContainerConfig struct {
	Config         *config.Config
	Log            *logger.Logger
	DB             *database.PostgresDB
	Redis          *redis.Client
	Bus            *bus.Bus
	Metrics        *metrics.Metrics
	Images         storage.ImageStore
	EventPublisher events.Publisher
	// HTTPClient overrides the inference service transport
	HTTPClient *http.Client
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) (*Container, error) {
	if cfg == nil || cfg.Config == nil {
		return nil, fmt.Errorf("container config is required")
	}
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}
	appCfg := cfg.Config

	c := &Container{
		Config:         appCfg,
		Log:            log,
		DB:             cfg.DB,
		Redis:          cfg.Redis,
		Bus:            cfg.Bus,
		Metrics:        cfg.Metrics,
		EventPublisher: cfg.EventPublisher,
	}
	if c.EventPublisher == nil {
		c.EventPublisher = events.NewNoOpPublisher()
	}

	// Repositories
	if cfg.DB != nil {
		pool := cfg.DB.Pool()
		c.UserRepo = repository.NewPostgresUserRepository(pool)
		c.RecipeRepo = repository.NewPostgresRecipeRepository(pool)
		c.NutritionRepo = repository.NewPostgresNutritionRepository(pool)
		c.SatisfactionRepo = repository.NewPostgresSatisfactionRepository(pool)
	}

	// Security
	tokens, err := token.NewService(token.Config{
		Secret:     appCfg.JWT.Secret,
		AccessTTL:  appCfg.JWT.AccessTokenTTL,
		RefreshTTL: appCfg.JWT.RefreshTokenTTL,
		Issuer:     appCfg.JWT.Issuer,
	})
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}
	c.Tokens = tokens
	chain := security.DefaultChain(service.NewIdentityStore(c.UserRepo))
	c.StrictPolicy = security.NewStrictBearerPolicy(tokens, chain)
	c.LenientPolicy = security.NewLenientBearerPolicy(tokens, chain, log)
	c.Whitelist = security.NewWhitelist(security.DefaultWhitelist...)

	// Realtime and notifications
	c.Hub = realtime.NewHub()
	c.Router = realtime.NewRouter()
	if err := c.buildNotifier(); err != nil {
		return nil, err
	}

	// Inference client
	inferenceOpts := []inference.Option{inference.WithLogger(log)}
	if cfg.HTTPClient != nil {
		inferenceOpts = append(inferenceOpts, inference.WithHTTPClient(cfg.HTTPClient))
	}
	if c.Metrics != nil {
		inferenceOpts = append(inferenceOpts, inference.WithObserver(c.Metrics.InferenceCall))
	}
	client := inference.NewClient(appCfg.Inference, inferenceOpts...)

	// Services
	c.AuthService = service.NewAuthService(
		c.UserRepo,
		service.NewPasswordVerifier(c.UserRepo),
		tokens,
		&service.AuthServiceConfig{LoginTimeout: appCfg.Auth.LoginTimeout},
	)
	c.UserService = service.NewUserService(c.UserRepo, c.EventPublisher, log, appCfg.Auth.BcryptCost)
	c.RecipeService = service.NewRecipeService(service.RecipeServiceDeps{
		Users:     c.UserRepo,
		Recipes:   c.RecipeRepo,
		Inference: client,
		Images:    cfg.Images,
		Notifier:  c.Notifier,
		Events:    c.EventPublisher,
		Log:       log,
	})
	c.NutritionService = service.NewNutritionService(c.UserRepo, c.RecipeRepo, c.NutritionRepo, client, c.EventPublisher, log)
	c.SatisfactionService = service.NewSatisfactionService(c.UserRepo, c.RecipeRepo, c.SatisfactionRepo, c.EventPublisher, log)
	c.ChatService = service.NewChatService(c.UserRepo, c.RecipeRepo, c.SatisfactionRepo, client, c.Notifier, log)

	// Handlers
	chatHandler := handler.NewChatHandler(c.ChatService)
	chatHandler.Register(c.Router)

	gatewayOpts := []realtime.Option{realtime.WithLogger(log)}
	if c.Metrics != nil {
		gatewayOpts = append(gatewayOpts, realtime.WithMetrics(c.Metrics))
	}
	c.Gateway = realtime.NewGateway(c.Hub, c.LenientPolicy, c.Router, appCfg.Realtime, gatewayOpts...)

	var loginObserver handler.LoginObserver
	if c.Metrics != nil {
		loginObserver = c.Metrics.LoginAttempt
	}
	c.Handlers = &handler.Handlers{
		Health:    handler.NewHealthHandler(c.healthChecks()),
		Auth:      handler.NewAuthHandler(c.AuthService, c.UserService, log, loginObserver),
		Mypage:    handler.NewMypageHandler(c.UserService),
		Recipe:    handler.NewRecipeHandler(c.RecipeService),
		Nutrition: handler.NewNutritionHandler(c.NutritionService, c.SatisfactionService),
		Chat:      chatHandler,
		Realtime:  c.Gateway,
	}
	if c.Metrics != nil && appCfg.Metrics.Enabled {
		c.Handlers.Metrics = c.Metrics.Handler()
	}

	return c, nil
}

// buildNotifier picks the notification path: local hub delivery, or a
// redis/nats relay so sessions on other instances are reached too
func (c *Container) buildNotifier() error {
	var observe notification.FailureObserver
	if c.Metrics != nil {
		observe = c.Metrics.NotificationDropped
	}
	local := notification.NewHubPublisher(c.Hub, c.Log, observe)

	var relay notification.Relay
	switch c.Config.Notification.Relay {
	case "redis":
		if c.Redis == nil {
			return fmt.Errorf("redis notification relay requires a redis client")
		}
		relay = c.Redis
	case "nats":
		if c.Bus == nil {
			return fmt.Errorf("nats notification relay requires a nats connection")
		}
		relay = c.Bus
	default:
		c.Notifier = local
		return nil
	}

	c.relay = notification.NewRelayPublisher(relay, c.Config.Notification.Channel, local, c.Log)
	c.Notifier = c.relay
	return nil
}

func (c *Container) healthChecks() map[string]handler.HealthChecker {
	checks := make(map[string]handler.HealthChecker)
	if c.DB != nil {
		checks["postgres"] = c.DB
	}
	if c.Redis != nil {
		checks["redis"] = c.Redis
	}
	if c.Bus != nil {
		checks["nats"] = c.Bus
	}
	return checks
}

// Start begins relayed notification delivery. The returned function stops it.
func (c *Container) Start(ctx context.Context) (func() error, error) {
	if c.relay == nil {
		return func() error { return nil }, nil
	}
	stop, err := c.relay.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("start notification relay: %w", err)
	}
	c.Log.Info("notification relay started",
		zap.String("relay", c.Config.Notification.Relay),
		zap.String("channel", c.Config.Notification.Channel),
	)
	return stop, nil
}

// Middleware returns the request chain in order: request id, access log,
// CORS, tracing, metrics and authentication. Idempotency is appended when
// redis is configured.
func (c *Container) Middleware() []gin.HandlerFunc {
	chain := []gin.HandlerFunc{
		middleware.RequestID(),
		middleware.Logger(c.Log),
		middleware.CORS(middleware.DefaultCORSConfig(c.Config.CORS.AllowedOrigins)),
	}
	if c.Config.OTel.Enabled {
		chain = append(chain, telemetry.Tracing(c.Config.OTel.ServiceName))
	}
	var authObserver middleware.AuthFailureObserver
	if c.Metrics != nil {
		chain = append(chain, c.Metrics.Middleware())
		authObserver = c.Metrics.AuthFailure
	}
	chain = append(chain, middleware.Auth(c.StrictPolicy, c.Whitelist, c.Log, authObserver))
	if c.Redis != nil {
		chain = append(chain, middleware.Idempotency(middleware.IdempotencyConfig{
			Store: c.Redis,
			Log:   c.Log,
		}))
	}
	return chain
}

// Close shuts realtime sessions down and flushes publishers. Connections
// passed in through ContainerConfig are closed by their owner.
func (c *Container) Close() {
	c.Hub.Close()
	if err := c.EventPublisher.Close(); err != nil {
		c.Log.Warn("failed to close event publisher", zap.Error(err))
	}
}
