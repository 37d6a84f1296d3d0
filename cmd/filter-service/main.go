package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mohammed-shakir/wfs-filter-encoding/internal/cache"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/cache/memo"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/cache/redisstore"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/core/config"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/core/executor"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/core/health"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/core/httpclient"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/core/observability"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/core/ogc"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/core/server"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/decision/simple"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/encodeevents"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/filtersvc"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/hotness/expdecay"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/hotness/metricswrap"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/logger"
	h3mapper "github.com/mohammed-shakir/wfs-filter-encoding/internal/mapper/h3"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/metrics"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	addrFlag := flag.String("addr", "", "listen address (overrides ADDR)")
	flag.Parse()

	cfg := config.FromEnv()
	if *addrFlag != "" {
		cfg.Addr = *addrFlag
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.Log.Level,
		Console:   cfg.Log.Console,
		SampleN:   cfg.Log.SampleN,
		Component: "filter-service",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	appLog.Info("starting filter service",
		"addr", cfg.Addr,
		"version", Version,
		"geoserver", cfg.GeoServerURL,
		"redis", cfg.Cache.RedisEnabled,
		"events", cfg.Events.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := server.Deps{Ready: map[string]health.Pinger{}}

	if cfg.Metrics.Enabled {
		p := metrics.Init(metrics.Config{
			Enabled: true,
			Addr:    cfg.Metrics.Addr,
			Path:    cfg.Metrics.Path,
			Build: metrics.BuildInfo{
				Version:   Version,
				Revision:  os.Getenv("BUILD_REVISION"),
				Branch:    os.Getenv("BUILD_BRANCH"),
				BuildDate: os.Getenv("BUILD_DATE"),
			},
		})
		observability.Init(p.Registerer(), true)
		if cfg.Metrics.Addr == "" {
			deps.Metrics = p.Handler()
		} else {
			go func() {
				if err := p.Serve(ctx, appLog); err != nil {
					appLog.Error("metrics server exited", "err", err)
				}
			}()
		}
	}

	var remote cache.Remote
	if cfg.Cache.RedisEnabled {
		dialCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		rc, err := redisstore.New(dialCtx, cfg.Cache.RedisAddr,
			redisstore.WithReadTimeout(cfg.Cache.OpTimeout),
			redisstore.WithWriteTimeout(cfg.Cache.OpTimeout))
		cancel()
		if err != nil {
			appLog.Error("redis unavailable", "addr", cfg.Cache.RedisAddr, "err", err)
			return 1
		}
		defer func() { _ = rc.Close() }()
		remote = rc
		deps.Ready["redis"] = rc
	}
	tracker := expdecay.New(cfg.Cache.HotHalfLife)
	hot := metricswrap.New(tracker, appLog, cfg.Cache.AdmitScore, cfg.Cache.HotLogSample)
	go tracker.PruneEvery(ctx, cfg.Cache.HotHalfLife, 0.01)

	cacheCfg := cache.Config{TTL: cfg.Cache.TTL, OpTimeout: cfg.Cache.OpTimeout}
	if cfg.Cache.AdmitScore > 0 {
		cacheCfg.Admit = &simple.Engine{Hot: hot, Threshold: cfg.Cache.AdmitScore}
	}
	tiered := cache.New(memo.New(cfg.Cache.MemoSize, cfg.Cache.TTL), remote, cacheCfg, appLog)

	if cfg.Purge.Enabled {
		cons := kafkaconsumer.New(kafkaconsumer.Config{
			Brokers:             cfg.Events.BrokerList(),
			Topic:               cfg.Purge.Topic,
			GroupID:             cfg.Purge.GroupID,
			InitialOffsetOldest: cfg.Purge.Oldest,
		}, appLog, tiered, hot)
		go func() {
			if err := cons.Start(ctx); err != nil {
				appLog.Error("purge consumer stopped", "err", err)
			}
		}()
	}

	opts := []filtersvc.Option{
		filtersvc.WithLogger(appLog),
		filtersvc.WithCache(tiered),
		filtersvc.WithMapper(h3mapper.New(), cfg.H3Res),
		filtersvc.WithDefaultVersion(cfg.DefaultWFSVersion),
	}
	if cfg.Events.Enabled {
		pub, err := encodeevents.NewPublisher(cfg.Events.BrokerList(), cfg.Events.Topic, cfg.Events.Queue, appLog)
		if err != nil {
			appLog.Error("kafka producer setup failed", "err", err)
			return 1
		}
		defer func() { _ = pub.Close() }()
		opts = append(opts, filtersvc.WithEvents(pub))
	}
	deps.Encoder = filtersvc.New(opts...)

	if cfg.GeoServerURL != "" {
		exec, err := executor.New(appLog, httpclient.NewOutbound(cfg.UpstreamTimeout), ogc.OWSEndpoint(cfg.GeoServerURL))
		if err != nil {
			appLog.Error("failed to initialize executor", "err", err)
			return 1
		}
		deps.Features = exec
	}

	if err := server.Run(ctx, cfg, appLog, deps); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
