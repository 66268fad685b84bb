// Command spider runs the fishsense-data-processing-spider coordination
// service: catalog discovery, job orchestration, label-studio sync, and the
// authenticated HTTP surface, all in one process (spec.md §2).
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/catalog"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/config"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/discovery"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/filecache"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/httpapi"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/keystore"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/labelsync"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/metrics"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/orchestrator"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/summary"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/worker"
	"go.uber.org/zap"
)

// version is set at link time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	overlayPath := flag.String("config", os.Getenv("SPIDER_CONFIG_FILE"), "path to an optional YAML config overlay")
	dataRootsFlag := flag.String("data-roots", "", "comma-separated local data roots the discovery crawler walks")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		stderrFatal("building logger: %v", err)
	}
	defer log.Sync()

	cfg := config.DefaultConfig()
	cfg.LoadFromEnv()
	if err := cfg.LoadOverlayFile(*overlayPath); err != nil {
		log.Fatal("loading config overlay", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	watcher := config.NewWatcher(cfg, *overlayPath, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dsn, err := cfg.ConnectionString()
	if err != nil {
		log.Fatal("building catalog DSN", zap.Error(err))
	}
	cat, err := catalog.Connect(ctx, dsn, cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns, log)
	if err != nil {
		log.Fatal("connecting to catalog", zap.Error(err))
	}
	defer cat.Close()
	if err := cat.Migrate(dsn); err != nil {
		log.Fatal("applying catalog migrations", zap.Error(err))
	}

	ks, err := keystore.Open(cfg.WebAPI.KeyStore)
	if err != nil {
		log.Fatal("opening key store", zap.Error(err))
	}
	defer ks.Close()

	cache, err := filecache.Open(cfg.Cache.Path, cfg.Cache.MaxStorageMB, log)
	if err != nil {
		log.Fatal("opening file cache", zap.Error(err))
	}

	orch := orchestrator.New(cat, log)

	dataRoots := cfg.DataPaths
	var roots []string
	for _, m := range dataRoots {
		roots = append(roots, m.Mount)
	}
	if *dataRootsFlag != "" {
		roots = append(roots, strings.Split(*dataRootsFlag, ",")...)
	}
	meta := discovery.NewExiftoolReader(cfg.ExiftoolPath)
	crawler := discovery.NewCrawler(cat, meta, log, roots, ".")

	syncer := labelsync.New(cat, log, cfg.LabelStudio.Host, cfg.LabelStudio.APIKey, cfg.WebAPI.RootURL, ".")

	summaryWorker := summary.New(cat, log)

	discoveryRunner := worker.NewRunner("discovery", cfg.ScraperInterval, log, crawler.RunPass)
	labelSyncRunner := worker.NewRunner("labelsync", cfg.LabelStudio.Interval, log, syncer.RunPass)
	reaperRunner := worker.NewRunner("reaper", cfg.ReaperInterval, log, func(ctx context.Context) {
		if err := orch.Reap(ctx); err != nil {
			log.Error("reaper pass failed", zap.Error(err))
		}
	})
	summaryRunner := worker.NewRunner("summary", cfg.SummaryInterval, log, summaryWorker.RunPass)

	metricsServer := metrics.NewServer(cfg.MetricsBindAddr, log)
	metricsServer.StartAsync()

	httpapi.Version = version
	apiServer := httpapi.NewServer(cfg.WebAPI.BindAddr, httpapi.Deps{
		Config:       watcher.Current(),
		Catalog:      cat,
		Orchestrator: orch,
		Cache:        cache,
		KeyStore:     ks,
		Discovery:    discoveryRunner,
		LabelSync:    labelSyncRunner,
		Log:          log,
	})

	var wg sync.WaitGroup
	runBackground := func(name string, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
		log.Info("started background worker", zap.String("worker", name))
	}
	runBackground("config-watcher", func(ctx context.Context) { _ = watcher.Run(ctx) })
	runBackground("discovery", discoveryRunner.Run)
	runBackground("labelsync", labelSyncRunner.Run)
	runBackground("reaper", reaperRunner.Run)
	runBackground("summary", summaryRunner.Run)

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("HTTP API listening", zap.String("addr", cfg.WebAPI.BindAddr))
		if err := apiServer.ListenAndServe(); err != nil {
			log.Error("HTTP API server stopped unexpectedly", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP API shutdown error", zap.Error(err))
	}
	if err := metricsServer.Stop(shutdownCtx); err != nil {
		log.Error("metrics server shutdown error", zap.Error(err))
	}

	wg.Wait()
}

func stderrFatal(format string, args ...any) {
	log.Fatalf(format, args...)
}
