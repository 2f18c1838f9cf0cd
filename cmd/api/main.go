package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SangwoonYun/ks-rewards.com/internal/cache"
	"github.com/SangwoonYun/ks-rewards.com/internal/config"
	"github.com/SangwoonYun/ks-rewards.com/internal/handler"
	"github.com/SangwoonYun/ks-rewards.com/internal/repository"
	"github.com/SangwoonYun/ks-rewards.com/internal/router"
	"github.com/SangwoonYun/ks-rewards.com/internal/service"
	"github.com/SangwoonYun/ks-rewards.com/internal/upstream"

	_ "github.com/go-sql-driver/mysql"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting ks-rewards...")

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Embedded store: codes, queue, redemption history, and by default
	// the account roster too
	store, err := repository.NewStore(cfg.Store.Path)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer store.Close()

	codeRepo := repository.NewSQLiteGiftCodeRepository(store.DB())
	redemptionRepo := repository.NewSQLiteRedemptionRepository(store.DB())
	queueRepo := repository.NewSQLiteQueueRepository(store.DB())

	// Account roster: external MySQL when configured, embedded otherwise
	var accountRepo repository.AccountRepository
	bulkCapable := true
	if cfg.AccountDB.Enabled() {
		mysqlDB, err := sql.Open("mysql", cfg.AccountDB.DSN())
		if err != nil {
			log.Printf("Warning: MySQL connection failed: %v", err)
		} else {
			mysqlDB.SetMaxOpenConns(10)
			mysqlDB.SetMaxIdleConns(5)
			mysqlDB.SetConnMaxLifetime(5 * time.Minute)

			if err := mysqlDB.Ping(); err != nil {
				log.Printf("Warning: MySQL ping failed: %v", err)
				mysqlDB.Close()
			} else {
				defer mysqlDB.Close()
				accountRepo = repository.NewMySQLAccountRepository(mysqlDB)
				bulkCapable = false
				log.Println("MySQL account repository initialized")
			}
		}
	}
	if accountRepo == nil {
		accountRepo = repository.NewSQLiteAccountRepository(store.DB())
		log.Println("SQLite account repository initialized")
	}

	// Stats cache
	var statsCache cache.Cache
	switch cfg.Cache.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(cache.RedisCacheConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			log.Printf("Warning: Redis connection failed, using memory cache: %v", err)
			statsCache = cache.NewMemoryCache()
		} else {
			defer redisCache.Close()
			statsCache = redisCache
			log.Println("Redis cache initialized")
		}
	default:
		statsCache = cache.NewMemoryCache()
	}

	// Upstream client with the shared process-wide rate limiter
	clock := upstream.NewClock()
	limiter := upstream.NewRateLimiter(cfg.Upstream.MinInterval, clock)
	client := upstream.NewClient(upstream.ClientConfig{
		LoginURL:   cfg.Upstream.LoginURL,
		RedeemURL:  cfg.Upstream.RedeemURL,
		EncryptKey: cfg.Upstream.EncryptKey,
		MaxRetries: cfg.Upstream.MaxRetries,
		RetryDelay: cfg.Upstream.RetryDelay,
		Timeout:    cfg.Upstream.Timeout,
	}, limiter, clock)

	// Core services
	discovery := service.NewDiscoveryService(service.DiscoveryConfig{
		FeedURL: cfg.Discovery.FeedURL,
		APIKey:  cfg.Discovery.APIKey,
		Timeout: cfg.Discovery.Timeout,
	}, codeRepo)

	validator := service.NewValidator(service.ValidatorConfig{
		FallbackFID: cfg.Upstream.ValidationFID,
	}, client, clock, accountRepo, codeRepo, queueRepo)

	redemption := service.NewRedemptionService(service.RedemptionConfig{
		ItemDelay:   cfg.Upstream.RedeemDelay,
		BulkCapable: bulkCapable,
	}, client, clock, accountRepo, codeRepo, redemptionRepo, queueRepo)

	backup := repository.NewBackupService(store, cfg.Backup.Dir, cfg.Backup.Retention)

	stats := service.NewStatsService(statsCache, cfg.Cache.TTL,
		accountRepo, codeRepo, redemptionRepo, queueRepo)

	// Scheduler: periodic queue processing, code discovery and housekeeping
	scheduler := service.NewScheduler(service.SchedulerConfig{
		RedemptionInterval:   cfg.Scheduler.RedemptionInterval,
		DiscoveryInterval:    cfg.Scheduler.DiscoveryInterval,
		BackupInterval:       cfg.Scheduler.BackupInterval,
		RevalidationInterval: cfg.Scheduler.RevalidationInterval,
		BatchSize:            cfg.Scheduler.BatchSize,
	}, redemption, discovery, validator, backup)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	// Create router
	r := router.New(router.Config{
		Handler:        handler.New(),
		AccountHandler: handler.NewAccountHandler(accountRepo, redemptionRepo, redemption),
		CodeHandler:    handler.NewCodeHandler(codeRepo, redemptionRepo, queueRepo, discovery, validator, redemption),
		QueueHandler:   handler.NewQueueHandler(queueRepo, redemption),
		StatsHandler:   handler.NewStatsHandler(stats, backup),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
