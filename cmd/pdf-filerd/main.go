package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/pdf-filer/internal/app"
	"github.com/joseph-ayodele/pdf-filer/internal/async"
	"github.com/joseph-ayodele/pdf-filer/internal/common"
	"github.com/joseph-ayodele/pdf-filer/internal/core"
	"github.com/joseph-ayodele/pdf-filer/internal/entity"
	"github.com/joseph-ayodele/pdf-filer/internal/ingest"
)

// serviceName is the health entry that tracks the filing pipeline; "" tracks the process.
const serviceName = "pdf-filer"

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to the YAML config")
		grpcAddr   = flag.String("grpc-addr", "", "gRPC health listen address (overrides server.grpc_addr)")
		verbose    = flag.Bool("verbose", false, "debug logging")
		dryRun     = flag.Bool("dry-run", false, "plan targets without moving files")
	)
	flag.Parse()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *grpcAddr != "" {
		cfg.Server.GRPCAddr = *grpcAddr
	}

	logger, closer, err := common.NewLogger(common.LogConfig{Dir: cfg.Paths.LogsDir, Verbose: *verbose})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	if err := serve(cfg, *dryRun, logger); err != nil {
		logger.Error("daemon.exit", "error", err)
		os.Exit(1)
	}
	logger.Info("daemon.stopped")
}

func serve(cfg *common.Config, dryRun bool, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.DB.HealthCheck(ctx, 3*time.Second); err != nil {
		return fmt.Errorf("db health: %w", err)
	}
	logger.Info("daemon.db.healthy", "driver", cfg.Database.Driver)

	p, err := app.NewPipeline(cfg, store, logger)
	if err != nil {
		return err
	}

	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	reflection.Register(grpcServer)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.GRPCAddr, err)
	}

	queue := async.NewRunQueue(p.Processor, logger,
		async.WithRunOptions(core.RunOptions{DryRun: dryRun}),
		async.WithOnDone(func(run *entity.Run, err error) {
			if err != nil && !errors.Is(err, context.Canceled) {
				hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_NOT_SERVING)
				return
			}
			hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
		}),
	)

	paths, watchErrs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{cfg.Paths.InputDir},
		Recursive:   cfg.Paths.Recursive,
		InitialScan: true,
		Debounce:    cfg.Server.WatchDebounce,
	}, logger)
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("daemon.grpc.serving", "addr", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case path, ok := <-paths:
				if !ok {
					return nil
				}
				_ = queue.Enqueue(gctx, async.Job{Reason: path, SubmittedAt: time.Now()})
			case err, ok := <-watchErrs:
				if !ok {
					watchErrs = nil
					continue
				}
				logger.Warn("daemon.watch.error", "error", err)
			}
		}
	})

	g.Go(func() error {
		t := time.NewTicker(30 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				status := healthpb.HealthCheckResponse_SERVING
				if err := store.DB.HealthCheck(gctx, 3*time.Second); err != nil {
					logger.Warn("daemon.db.unhealthy", "error", err)
					status = healthpb.HealthCheckResponse_NOT_SERVING
				}
				hs.SetServingStatus("", status)
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("daemon.shutting_down")
		hs.Shutdown()

		sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		queue.Shutdown(sctx)
		grpcServer.GracefulStop()
		return nil
	})

	return g.Wait()
}
