package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vitos/predictbet/internal/infrastructure/commentary"
	"github.com/vitos/predictbet/internal/infrastructure/logger"
	"github.com/vitos/predictbet/internal/infrastructure/notify"
	"github.com/vitos/predictbet/internal/infrastructure/pricefeed"
	"github.com/vitos/predictbet/internal/infrastructure/storage"
	"github.com/vitos/predictbet/internal/usecase"
	"github.com/vitos/predictbet/internal/web"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	PriceFeed struct {
		Endpoint       string   `yaml:"endpoint"`
		Categories     []string `yaml:"categories"`
		PollMs         int      `yaml:"poll_ms"`
		RequestsPerSec float64  `yaml:"requests_per_sec"`
	} `yaml:"price_feed"`
	Commentary struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"commentary"`
	Monitor struct {
		ScanMs  int `yaml:"scan_ms"`
		Workers int `yaml:"workers"`
	} `yaml:"monitor"`
	Teams struct {
		ReconcileMs int `yaml:"reconcile_ms"`
	} `yaml:"teams"`
	EngineConfig struct {
		CacheTTLMs int `yaml:"cache_ttl_ms"`
	} `yaml:"engine_config"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	// 1. Load Config
	cfg, err := loadConfig("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = "engine.db"
	}
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Init Collaborators
	hub := notify.NewHub(log)
	feed := pricefeed.NewFeed(cfg.PriceFeed.Endpoint, cfg.PriceFeed.Categories, cfg.PriceFeed.RequestsPerSec, store, log)

	cacheTTL := time.Duration(cfg.EngineConfig.CacheTTLMs) * time.Millisecond
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	configCache := usecase.NewConfigCache(store, cacheTTL)

	commentator := commentary.NewClient(cfg.Commentary.Endpoint)

	// 5. Init Services
	settler := usecase.NewSettlementService(store, store, feed, configCache, commentator, hub, log)

	scanInterval := time.Duration(cfg.Monitor.ScanMs) * time.Millisecond
	if scanInterval <= 0 {
		scanInterval = 10 * time.Second
	}
	monitor := usecase.NewPositionMonitor(store, feed, settler, hub, log, scanInterval, cfg.Monitor.Workers)

	reconcileInterval := time.Duration(cfg.Teams.ReconcileMs) * time.Millisecond
	if reconcileInterval <= 0 {
		reconcileInterval = time.Minute
	}
	reconciler := usecase.NewTeamReconciler(store, store, log, reconcileInterval)

	oddsService := usecase.NewOddsService(store, log)

	// 6. Start Background Loops
	pollInterval := time.Duration(cfg.PriceFeed.PollMs) * time.Millisecond
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	feed.Start(ctx, pollInterval)
	monitor.Start(ctx)
	reconciler.Start(ctx)

	// 7. Init Web Server
	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	server := web.NewServer(port, store, settler, oddsService, hub, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// 8. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)
}
