package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/oauthhub/oauthhub/internal/config"
	"github.com/oauthhub/oauthhub/internal/domain"
	"github.com/oauthhub/oauthhub/internal/logging"
	"github.com/oauthhub/oauthhub/internal/postgres"
	"github.com/oauthhub/oauthhub/internal/redis"
)

// session-sweeper removes OAuth sessions past their TTL. Deployments using
// the Redis tracker get expiry for free; this binary exists for the
// PostgreSQL store and is meant to run periodically (cron, k8s CronJob).
func main() {
	var (
		dryRun  = flag.Bool("dry-run", false, "Report what would be removed without deleting")
		verbose = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	// No .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}

	logLevel := cfg.LogLevel
	if *verbose {
		logLevel = "debug"
	}
	logging.InitLogger(logLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().Add(-domain.SessionTTL)
	slog.Info("Sweeping expired oauth sessions", "cutoff", cutoff.Format(time.RFC3339), "dry_run", *dryRun)

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if *dryRun {
		var count int64
		err := pool.QueryRow(ctx,
			`SELECT count(*) FROM oauth_sessions WHERE created_at < $1`, cutoff).Scan(&count)
		if err != nil {
			log.Fatalf("Failed to count expired sessions: %v", err)
		}
		slog.Info("Dry run complete", "would_remove", count)
		return
	}

	count, err := postgres.NewSessionRepo(pool).SweepExpired(ctx, cutoff)
	if err != nil {
		log.Fatalf("Failed to sweep expired sessions: %v", err)
	}
	slog.Info("Swept postgres sessions", "removed", count)

	if cfg.RedisURL != "" {
		client, err := redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer client.Close()
		slog.Info("Connected to Redis", "url", sanitizeURL(cfg.RedisURL))

		count, err := redis.NewSessionTracker(client).SweepExpired(ctx, cutoff)
		if err != nil {
			log.Fatalf("Failed to sweep Redis sessions: %v", err)
		}
		slog.Info("Swept redis sessions", "removed", count)
	}
}

func sanitizeURL(url string) string {
	// Hide password in Redis URL for logging
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) == 2 {
			credParts := strings.Split(parts[0], ":")
			if len(credParts) >= 2 {
				return credParts[0] + ":***@" + parts[1]
			}
		}
	}
	return url
}
