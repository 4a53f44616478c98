// Command seed populates a matcha database with realistic test users.
package main

import (
	"context"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"matcha/internal/cache"
	"matcha/internal/config"
	"matcha/internal/database"
	"matcha/internal/observability"
	"matcha/internal/seed"

	"github.com/google/uuid"
)

const metricsJob = "matcha_seed"

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(0)
	os.Exit(run())
}

func run() (code int) {
	log.Println("🚀 Starting database population...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("❌ Failed to load configuration: %v", err)
		return 1
	}

	runID := uuid.NewString()
	ctx := observability.WithRunID(context.Background(), runID)

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:  "matcha-seed",
		Environment:  cfg.Env,
		Enabled:      cfg.TracingEnabled,
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		log.Printf("❌ Failed to initialize tracing: %v", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			observability.Logger.Warn("tracing shutdown failed", slog.String("error", err.Error()))
		}
	}()

	opts := seed.DefaultOptions()
	opts.Atomicity = seed.Atomicity(cfg.SeedAtomicity)
	opts.TestPassword = cfg.SeedTestPassword
	opts.EmailDomain = cfg.SeedEmailDomain
	opts.BcryptCost = cfg.SeedBcryptCost
	opts.DryRun = cfg.SeedDryRun

	//nolint:gosec // Weak random number generator is fine for seeding
	gen := seed.NewGenerator(seed.DefaultCatalog(), opts, rand.New(rand.NewSource(time.Now().UnixNano())))

	var store seed.Store
	if !opts.DryRun {
		db, err := database.Connect(cfg)
		if err != nil {
			log.Printf("❌ Database error: %v", err)
			return 1
		}
		defer func() {
			if err := database.Close(db); err != nil {
				log.Printf("❌ Failed to close database connection: %v", err)
				code = 1
			}
		}()
		log.Println("📝 Connected to database")
		store = seed.NewGormStore(db)
	}

	summary, err := seed.NewSeeder(store, gen, opts).Run(ctx)
	if err != nil {
		observability.Logger.ErrorContext(ctx, "seeding run failed", slog.String("error", err.Error()))
		log.Printf("❌ Error: %v", err)
		return 1
	}
	summary.Print(os.Stdout)

	if !opts.DryRun && cfg.RedisURL != "" && summary.Succeeded > 0 {
		if client := cache.InitRedis(cfg.RedisURL); client != nil {
			n, err := cache.InvalidatePatterns(ctx, client, cfg.InvalidatePatterns())
			if err != nil {
				observability.Logger.WarnContext(ctx, "cache invalidation failed", slog.String("error", err.Error()))
			} else {
				log.Printf("🧹 Invalidated %d cached entries", n)
			}
			_ = client.Close()
		}
	}

	if cfg.MetricsPushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := observability.PushMetrics(pushCtx, cfg.MetricsPushgatewayURL, metricsJob, runID); err != nil {
			observability.Logger.WarnContext(ctx, "metrics push failed", slog.String("error", err.Error()))
		}
	}

	return 0
}
