package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"campus-wayfinding/internal/api"
	"campus-wayfinding/internal/cache"
	"campus-wayfinding/internal/config"
	"campus-wayfinding/internal/directory"
	"campus-wayfinding/internal/gis/routing"
	"campus-wayfinding/internal/navigation"
	"campus-wayfinding/internal/subscriber"
	"campus-wayfinding/internal/ws"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conf, err := config.New()
	if err != nil {
		return err
	}

	var loggerOpts slog.HandlerOptions
	if conf.Env == config.EnvDev {
		loggerOpts = slog.HandlerOptions{Level: slog.LevelDebug}
	}

	jsonHandler := slog.NewJSONHandler(os.Stdout, &loggerOpts)
	logger := slog.New(jsonHandler)

	dir, err := directory.Load(conf.DirectoryFile)
	if err != nil {
		return err
	}
	logger.Info("directory loaded", "file", conf.DirectoryFile, "companies", len(dir.All()))

	if conf.DirectionsAccessToken == "" {
		logger.Warn("DIRECTIONS_ACCESS_TOKEN is empty, route requests will be refused by the provider")
	}
	var provider navigation.DirectionsProvider = routing.NewClient(conf.DirectionsBaseURL, conf.DirectionsAccessToken, conf.DirectionsOptions())

	var redisClient *redis.Client
	if conf.RedisEnabled() {
		redisClient = redis.NewClient(&redis.Options{Addr: net.JoinHostPort(conf.RedisHost, conf.RedisPort)})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("failed to close redis client", "error", err)
			}
		}()
		routeCache := cache.NewRedisRouteCache(redisClient, conf.RouteCacheTTL)
		provider = routing.Cached(provider, routeCache, logger)
	} else {
		logger.Info("REDIS_HOST is empty, route cache and directory subscriber disabled")
	}

	wsManager := ws.NewManager(ctx, logger, ws.Dependencies{
		Provider:   provider,
		Directory:  dir,
		Navigation: conf.NavigationOptions(),
		Fallback:   conf.Fallback(),
	})
	go wsManager.Start()
	defer wsManager.Shutdown()

	if redisClient != nil {
		sub := subscriber.NewSubscriber(logger, redisClient, conf.RedisDirectoryChannel, dir, wsManager)
		go func() {
			if err := sub.Start(ctx); err != nil {
				logger.Error("subscriber stopped with error", "error", err)
			}
		}()
	}

	server := api.NewServer(conf, wsManager, dir, logger)
	if err := server.Start(ctx); err != nil {
		return err
	}

	return nil
}
