// Package main provides the impostor game server binary: a WebSocket gateway
// for players plus a gRPC health endpoint for orchestration.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cory-johannsen/impostor/internal/config"
	"github.com/cory-johannsen/impostor/internal/frontend/ws"
	"github.com/cory-johannsen/impostor/internal/game/registry"
	"github.com/cory-johannsen/impostor/internal/game/rng"
	"github.com/cory-johannsen/impostor/internal/game/room"
	"github.com/cory-johannsen/impostor/internal/game/words"
	"github.com/cory-johannsen/impostor/internal/gameserver"
	"github.com/cory-johannsen/impostor/internal/observability"
	"github.com/cory-johannsen/impostor/internal/server"
	"github.com/cory-johannsen/impostor/internal/storage/postgres"
)

const archiveWatchInterval = 15 * time.Second

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	wordsDir := flag.String("words", "", "path to word category YAML directory; overrides words.dir")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *wordsDir != "" {
		cfg.Words.Dir = *wordsDir
	}

	logger, err := observability.NewLogger(cfg.Logging, cfg.Server.Type)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting game server",
		zap.String("ws_addr", cfg.Gateway.Addr()),
		zap.String("health_addr", cfg.Health.Addr()),
	)

	bankStart := time.Now()
	bank, err := words.LoadDir(cfg.Words.Dir)
	if err != nil {
		logger.Fatal("loading word bank", zap.Error(err))
	}
	logger.Info("word bank loaded",
		zap.Strings("categories", bank.Categories()),
		zap.Duration("elapsed", time.Since(bankStart)),
	)
	if !bank.Has(cfg.Room.DefaultCategory) {
		logger.Fatal("default category missing from word bank",
			zap.String("category", cfg.Room.DefaultCategory),
		)
	}

	src := rng.NewCryptoSource()
	rooms := registry.New(registry.Config{
		CodeLength:      cfg.Room.CodeLength,
		CodeAttempts:    cfg.Room.CodeAttempts,
		DefaultCategory: cfg.Room.DefaultCategory,
		OfflineGrace:    cfg.Room.OfflineGrace,
		Room: room.Options{
			MaxPlayers:         cfg.Room.MaxPlayers,
			MaxNameLength:      cfg.Room.MaxNameLength,
			AutoStartWhenReady: cfg.Room.AutoStartWhenReady,
			MinReadyPlayers:    cfg.Room.MinReadyPlayers,
		},
	}, room.Deps{
		Picker: words.NewPicker(bank, src),
		Source: src,
	}, logger)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus(cfg.Server.Type, healthpb.HealthCheckResponse_SERVING)

	lifecycle := server.NewLifecycle(logger)

	var archive gameserver.RoundArchiver
	if cfg.Database.Enabled {
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to round archive", zap.Error(err))
		}
		version, dirty, err := pool.SchemaVersion(ctx)
		if err == nil {
			err = postgres.CheckSchema(version, dirty)
		}
		if err != nil {
			pool.Close()
			logger.Fatal("round archive schema", zap.Error(err))
		}
		logger.Info("round archive connected",
			zap.Uint("schema_version", version),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		archive = postgres.NewRoundRepository(pool.DB())

		watchCtx, stopWatch := context.WithCancel(ctx)
		lifecycle.Add("archive", &server.FuncService{
			StartFn: func() error {
				pool.Watch(watchCtx, archiveWatchInterval, logger, func(healthy bool) {
					status := healthpb.HealthCheckResponse_SERVING
					if !healthy {
						status = healthpb.HealthCheckResponse_NOT_SERVING
					}
					healthSrv.SetServingStatus("archive", status)
				})
				return nil
			},
			StopFn: func() {
				stopWatch()
				pool.Close()
			},
		})
	}

	game := gameserver.NewServer(rooms, bank, archive, logger)
	gateway := ws.NewGateway(cfg.Gateway, game, logger)

	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)

	lifecycle.OnDrain(healthSrv.Shutdown)

	lifecycle.Add("health", &server.FuncService{
		StartFn: func() error {
			lis, err := net.Listen("tcp", cfg.Health.Addr())
			if err != nil {
				return fmt.Errorf("listening on %s: %w", cfg.Health.Addr(), err)
			}
			logger.Info("gRPC health listening", zap.String("addr", lis.Addr().String()))
			return grpcServer.Serve(lis)
		},
		StopFn: func() {
			grpcServer.GracefulStop()
		},
	})

	lifecycle.Add("rooms", &server.FuncService{
		StartFn: func() error { return nil },
		StopFn: func() {
			rooms.Shutdown()
			game.Close()
		},
	})

	lifecycle.Add("gateway", &server.FuncService{
		StartFn: gateway.ListenAndServe,
		StopFn:  gateway.Stop,
	})

	logger.Info("game server initialized", zap.Duration("startup", time.Since(start)))

	if err := lifecycle.Run(ctx); err != nil {
		logger.Error("game server exited with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}
