package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emiller/starjar/internal/auth"
	"github.com/emiller/starjar/internal/backup"
	"github.com/emiller/starjar/internal/database"
	"github.com/emiller/starjar/internal/logging"
	"github.com/emiller/starjar/internal/server"
)

const tokenTTL = 24 * time.Hour

func main() {
	logger := logging.Setup(os.Getenv("STARJAR_LOG_LEVEL"), os.Getenv("STARJAR_LOG_FORMAT"))

	port := envOr("STARJAR_PORT", "8080")
	dbPath := envOr("STARJAR_DB_PATH", "starjar.db")

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("failed to open database", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	jwtSecret := os.Getenv("STARJAR_JWT_SECRET")
	if jwtSecret == "" {
		// Tokens signed with an ephemeral secret stop verifying after a
		// restart; sessions still work.
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			logger.Error("failed to generate jwt secret", "error", err)
			os.Exit(1)
		}
		jwtSecret = hex.EncodeToString(buf)
		logger.Warn("STARJAR_JWT_SECRET not set, using an ephemeral secret")
	}
	signer := auth.NewSigner(jwtSecret, tokenTTL)

	backupCfg := backup.Config{
		S3: backup.S3Config{
			Endpoint:  os.Getenv("STARJAR_S3_ENDPOINT"),
			Bucket:    os.Getenv("STARJAR_S3_BUCKET"),
			Region:    envOr("STARJAR_S3_REGION", "auto"),
			AccessKey: os.Getenv("STARJAR_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("STARJAR_S3_SECRET_KEY"),
		},
		DBPath:     dbPath,
		Passphrase: os.Getenv("STARJAR_BACKUP_PASSPHRASE"),
		Interval:   24 * time.Hour,
	}

	srv := server.New(db, signer, backupCfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv.BackupManager().Start(ctx)
	defer srv.BackupManager().Stop()

	// Hourly cleanup of expired sessions and stale rate limiter entries.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("session cleanup failed", "error", err)
				} else if n > 0 {
					logger.Debug("expired sessions removed", "count", n)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starjar listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
