package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"limitbook/api/grpcserver"
	"limitbook/api/httpserver"
	"limitbook/config"
	"limitbook/domain/engine"
	"limitbook/infra/kafka"
	"limitbook/infra/logging"
	"limitbook/infra/metrics"
	"limitbook/infra/wal"
	entrywal "limitbook/infra/wal/entry"
	exitwal "limitbook/infra/wal/exit"
	"limitbook/jobs/broadcaster"
	"limitbook/service"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (yaml, toml or json)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "limitbook: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// ---------------- Logging ----------------

	logger, logCloser, err := logging.New(logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------- Entry WAL ----------------

	journal, err := entrywal.Open(entrywal.Config{
		Dir:             cfg.Journal.Dir,
		SegmentSize:     cfg.Journal.SegmentSize,
		SegmentDuration: cfg.Journal.SegmentMaxAge,
		SyncEveryWrite:  cfg.Journal.SyncEveryWrite,
	})
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	defer journal.Close()

	codec, err := wal.SerializerByName(cfg.Journal.Serializer)
	if err != nil {
		return err
	}

	// ---------------- Exit WAL ----------------

	outbox, err := exitwal.Open(cfg.Outbox.Dir)
	if err != nil {
		return fmt.Errorf("outbox: %w", err)
	}
	defer outbox.Close()

	// ---------------- Metrics ----------------

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// ---------------- Market data ----------------

	var marketData service.MarketDataSink
	if len(cfg.Kafka.Brokers) > 0 {
		p := kafka.NewProducer(kafka.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.MarketDataTopic,
			Async:   true,
		})
		defer p.Close()
		marketData = p
	}

	// ---------------- Service + recovery ----------------

	svc := service.NewOrderService(service.Options{
		Journal:    journal,
		Serializer: codec,
		Outbox:     outbox,
		MarketData: marketData,
		Metrics:    m,
		Logger:     logger,
	})

	stats, err := service.Recover(svc, cfg.Snapshot.Dir, cfg.Journal.Dir)
	if err != nil {
		return fmt.Errorf("recover: %w", err)
	}
	logger.Info("recovered", "snapshot_seq", stats.SnapshotSeq, "last_seq", stats.LastSeq, "markets", len(svc.Markets()))

	for _, pair := range cfg.Pairs() {
		if err := svc.NewMarket(ctx, pair); err != nil && !errors.Is(err, engine.ErrMarketAlreadyExists) {
			return fmt.Errorf("open market %s: %w", pair, err)
		}
	}

	// ---------------- Background jobs ----------------

	var jobs sync.WaitGroup

	if cfg.Snapshot.Interval > 0 {
		done := svc.StartSnapshotJob(ctx, cfg.Snapshot.Dir, cfg.Snapshot.Interval)
		jobs.Add(1)
		go func() {
			defer jobs.Done()
			<-done
		}()
	}

	if len(cfg.Kafka.Brokers) > 0 {
		bc, err := broadcaster.Dial(outbox, cfg.Kafka.Brokers, cfg.Kafka.TradesTopic, logger)
		if err != nil {
			return fmt.Errorf("broadcaster: %w", err)
		}
		defer bc.Close()
		jobs.Add(1)
		go func() {
			defer jobs.Done()
			bc.Run(ctx, cfg.Broadcast.Interval)
		}()
	} else {
		logger.Warn("no kafka brokers configured; fill events stay in the outbox")
	}

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(grpcserver.UnaryLogger(logger)))
	grpcserver.Register(grpcSrv, grpcserver.NewServer(svc))

	// ---------------- HTTP ----------------

	gin.SetMode(gin.ReleaseMode)
	router := httpserver.NewRouter(httpserver.NewHandler(svc, logger))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 2)
	go func() {
		logger.Info("grpc listening", "addr", cfg.GRPC.Addr)
		errc <- grpcSrv.Serve(lis)
	}()
	go func() {
		logger.Info("http listening", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errc:
		logger.Error("server exited", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	grpcSrv.GracefulStop()
	stop()
	jobs.Wait()

	if err := journal.Sync(); err != nil {
		logger.Error("journal sync failed", "err", err)
	}
	return nil
}
