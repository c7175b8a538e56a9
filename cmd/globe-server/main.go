// Command globe-server samples the configured world map once and serves
// the rotating globe over gRPC (GlobeService, grpc.health.v1) and HTTP
// (/points, /scene, /healthz, /metrics).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/dotted-globe/internal/api"
	"github.com/signalsfoundry/dotted-globe/internal/app"
	"github.com/signalsfoundry/dotted-globe/internal/config"
	"github.com/signalsfoundry/dotted-globe/internal/logging"
	"github.com/signalsfoundry/dotted-globe/internal/observability"
)

func main() {
	fs := flag.NewFlagSet("globe-server", flag.ExitOnError)
	cfg, err := config.Load(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "globe-server: %v\n", err)
		os.Exit(2)
	}
	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shutdown, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	var lis net.Listener
	if cfg.Server.GRPCAddr != "" {
		lis, err = net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.Server.GRPCAddr), logging.Err(err))
			os.Exit(1)
		}
	}

	if err := run(ctx, cfg, log, lis, nil); err != nil {
		log.Error(ctx, "globe server failed", logging.Err(err))
		os.Exit(1)
	}
}

// run builds the globe, starts the listeners and the animation loop, and
// blocks until ctx is cancelled. A nil lis disables gRPC; an empty
// cfg.Server.HTTPAddr disables HTTP. reg defaults to the global Prometheus
// registry.
func run(ctx context.Context, cfg config.Config, log logging.Logger, lis net.Listener, reg *prometheus.Registry) error {
	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	if reg != nil {
		registerer = reg
	}
	collector, err := observability.NewGlobeCollector(registerer)
	if err != nil {
		return fmt.Errorf("metrics collector: %w", err)
	}

	g, err := app.Build(ctx, cfg, log, collector)
	if err != nil {
		return err
	}
	svc := api.NewService(g.Scene, g.Info(), log)

	var httpSrv *http.Server
	if cfg.Server.HTTPAddr != "" {
		httpSrv = serveHTTP(cfg.Server.HTTPAddr, api.NewHTTPHandler(svc, collector, log), log)
	}

	grpcErr := make(chan error, 1)
	var stopGRPC func()
	if lis != nil {
		server, healthSrv := api.NewServer(svc, collector, log)
		stopGRPC = func() {
			healthSrv.Shutdown()
			server.GracefulStop()
		}
		log.Info(ctx, "starting globe gRPC server", logging.String("addr", lis.Addr().String()))
		go func() {
			grpcErr <- server.Serve(lis)
		}()
	}

	animCtx, stopAnim := context.WithCancel(ctx)
	animDone := g.Animate(animCtx, time.Now().UTC(), 0, collector, nil)

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-grpcErr:
		log.Error(ctx, "gRPC server exited", logging.Err(serveErr))
	}

	log.Info(ctx, "shutting down globe server")
	stopAnim()
	<-animDone
	if stopGRPC != nil {
		stopGRPC()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if httpSrv != nil {
		_ = httpSrv.Shutdown(shutdownCtx)
	}

	if serveErr != nil && !errors.Is(serveErr, net.ErrClosed) {
		return serveErr
	}
	return nil
}

func serveHTTP(addr string, handler http.Handler, log logging.Logger) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "HTTP server exited", logging.Err(err))
		}
	}()
	log.Info(context.Background(), "serving HTTP", logging.String("addr", addr))
	return srv
}
