package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc/health"

	"github.com/shahdkhalaf/graduation-project/internal/cache"
	"github.com/shahdkhalaf/graduation-project/internal/config"
	"github.com/shahdkhalaf/graduation-project/internal/crypto"
	"github.com/shahdkhalaf/graduation-project/internal/db"
	trackergrpc "github.com/shahdkhalaf/graduation-project/internal/grpc"
	internalhttp "github.com/shahdkhalaf/graduation-project/internal/http"
	"github.com/shahdkhalaf/graduation-project/internal/logging"
	"github.com/shahdkhalaf/graduation-project/internal/model"
	"github.com/shahdkhalaf/graduation-project/internal/ratelimit"
	"github.com/shahdkhalaf/graduation-project/internal/repository"
	"github.com/shahdkhalaf/graduation-project/internal/service"
	"github.com/shahdkhalaf/graduation-project/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("config load failed")
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Caller: cfg.Logging.Caller})

	if cfg.Auth.JWTSecret == "" {
		secret, err := crypto.NewSecret(32)
		if err != nil {
			logging.Fatal().Err(err).Msg("generate jwt secret")
		}
		cfg.Auth.JWTSecret = secret
		logging.Warn().Msg("JWT_SECRET not set; using a random secret, tokens will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logging.Fatal().Err(err).Msg("db connection failed")
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			logging.Fatal().Err(err).Msg("db migration failed")
		}
	}

	store := db.NewStore(pool, db.Options{
		QueryTimeout:   cfg.Database.QueryTimeout,
		BreakerTimeout: cfg.Database.BreakerTimeout,
		BreakerTrips:   cfg.Database.BreakerTrips,
	})
	repo := repository.NewStore(store)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			logging.Fatal().Err(err).Msg("redis ping failed")
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				logging.Warn().Err(err).Msg("redis close error")
			}
		}()
	}

	locationCache := newLocationCache(redisClient, cfg.Redis.LocationTTL)

	identity := service.NewIdentity(repo, service.LogNotifier{}, service.IdentityConfig{
		Secret:     cfg.Auth.JWTSecret,
		Issuer:     cfg.Auth.JWTIssuer,
		SessionTTL: cfg.Auth.SessionTokenTTL,
		VerifyTTL:  cfg.Auth.VerifyTokenTTL,
		BcryptCost: cfg.Auth.BcryptCost,
	})
	tracking := service.NewTracking(repo, cfg.Tracking.IncomingStatuses)
	location := service.NewLocation(repo, locationCache, cfg.Tracking.RequireAccepted)
	pricing := service.NewPricing(repo, cfg.Pricing.Currency)

	if err := pricing.LoadFares(ctx, fareTable(cfg.Pricing.Routes)); err != nil {
		logging.Fatal().Err(err).Msg("fare table load failed")
	}

	tree := supervisor.NewTree(supervisor.TreeConfig{ShutdownTimeout: cfg.HTTP.ShutdownTimeout})

	opts := internalhttp.Options{
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		LimiterBackend: cfg.RateLimit.Backend,
		LoginRateLimit: cfg.Auth.LoginRateLimit,
		LoginWindow:    cfg.Auth.LoginWindow,
	}
	opts.Limiter = newLimiter(cfg.RateLimit, redisClient, tree)

	server := internalhttp.NewServer(opts, identity, tracking, location, pricing, store)
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}
	tree.AddAPIService(supervisor.NewHTTPServerService(httpServer, cfg.HTTP.ShutdownTimeout))
	logging.Info().Str("addr", cfg.HTTP.Addr).Msg("http listening")

	if cfg.GRPC.Addr != "" {
		healthServer := health.NewServer()
		grpcServer, err := trackergrpc.NewServer(cfg.GRPC.ServiceAuthToken, location, healthServer)
		if err != nil {
			logging.Fatal().Err(err).Msg("grpc server init failed")
		}
		if cfg.GRPC.ServiceAuthToken == "" {
			logging.Warn().Msg("SERVICE_AUTH_TOKEN not set; internal grpc api is unauthenticated")
		}
		tree.AddAPIService(supervisor.NewGRPCServerService(grpcServer, cfg.GRPC.Addr, cfg.HTTP.ShutdownTimeout))
		tree.AddBackgroundService(trackergrpc.NewHealthReporter(healthServer, store, 10*time.Second))
		logging.Info().Str("addr", cfg.GRPC.Addr).Msg("grpc listening")
	}

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor stopped")
	}
	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		logging.Warn().Int("services", len(unstopped)).Msg("services did not stop in time")
	}
	logging.Info().Msg("shutdown complete")
}

func fareTable(routes []config.RouteFare) []model.RoutePrice {
	fares := make([]model.RoutePrice, 0, len(routes))
	for _, route := range routes {
		fares = append(fares, model.RoutePrice{From: route.From, To: route.To, Cost: route.Cost, Currency: route.Currency})
	}
	return fares
}

// newLimiter picks the rate limit backend. The in-memory bucket runs its cleanup
// loop in the background layer of tree.
func newLimiter(cfg config.RateLimit, redisClient *redis.Client, tree *supervisor.Tree) ratelimit.Limiter {
	if cfg.Disabled {
		return nil
	}
	if cfg.Backend == "redis" {
		return ratelimit.NewRedisLimiter(redisClient, cfg.Requests, cfg.Window)
	}
	limiter := ratelimit.NewTokenBucket(cfg.Requests, cfg.Window)
	tree.AddBackgroundService(limiter)
	return limiter
}

// newLocationCache returns nil without Redis so the location service reads
// straight from Postgres.
func newLocationCache(redisClient *redis.Client, ttl time.Duration) service.LocationCache {
	if redisClient == nil {
		return nil
	}
	return cache.NewLocations(redisClient, ttl)
}
