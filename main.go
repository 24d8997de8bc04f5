package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vidpress/config"
	"vidpress/credentials"
	"vidpress/encoder"
	"vidpress/job"
	"vidpress/logger"
	"vidpress/models"
	"vidpress/routes"
	writerbackends "vidpress/writerBackends"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warnf("Failed to load .env: %v", err)
	}

	level, err := logger.ParseLevel(config.GetLogLevel())
	if err != nil {
		logger.Warnf("%v, using info", err)
	}
	logger.SetLevel(level)
	if logFile := config.GetLogFile(); logFile != "" {
		if err := logger.Init(logFile, true); err != nil {
			logger.Fatalf("Failed to open log file: %v", err)
		}
		defer logger.Close()
	}

	logger.Info("Starting vidpress server initialization")

	tempDir := config.GetTempDir()
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		logger.Fatalf("Failed to create temp dir %s: %v", tempDir, err)
	}

	// Initialize bucket registry
	logger.Debug("Initializing bucket registry")
	store, err := credentials.Open(config.GetCredentialsDBPath())
	if err != nil {
		logger.Fatalf("Failed to initialize bucket registry: %v", err)
	}
	defer store.Close()
	logger.Info("Bucket registry initialized successfully")

	encoder.RegisterDefaults(config.GetFFmpegPath())
	encode, ok := encoder.Get("ffmpeg")
	if !ok {
		logger.Fatalf("ffmpeg not found at %q; install it or set VIDPRESS_FFMPEG_PATH", config.GetFFmpegPath())
	}

	fallback := models.WriterJob{
		Type:        config.GetStorageBackend(),
		Credentials: config.GetDefaultBackendCredentials(),
	}
	if w, err := writerbackends.New(fallback); err != nil {
		logger.Warnf("Default storage backend is not usable, only registered buckets will work: %v", err)
	} else {
		writerbackends.Close(w)
	}
	resolver := writerbackends.NewResolver(store, fallback)

	processor := job.NewProcessor(job.Options{
		Encode:        encode,
		Profile:       encoder.DefaultProfile,
		Writers:       resolver,
		SizeCeiling:   config.GetSizeCeilingBytes(),
		EncodeTimeout: config.GetEncodeTimeout(),
		MaxConcurrent: config.GetMaxConcurrentJobs(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Sweep files orphaned by a previous crash, then keep sweeping
	go cleanupRoutine(ctx, tempDir, config.GetSweepInterval(), config.GetSweepMaxAge())

	server := &routes.Server{
		Processor:      processor,
		Registry:       store,
		Writers:        resolver,
		TempDir:        tempDir,
		MaxUploadBytes: config.GetMaxUploadBytes(),
		DefaultBucket:  config.GetDefaultBucket(),
		DefaultFolder:  config.GetDefaultFolder(),
		AdminSecret:    []byte(config.GetAdminSecret()),
		ServeDir:       config.GetDirectServeBaseDir(),
		PublicBaseURL:  config.GetPublicBaseURL(),
		CORSOrigins:    config.GetCORSOrigins(),
		RateLimit:      config.GetRateLimitPerMinute(),
	}

	httpServer := &http.Server{
		Addr:              ":" + config.GetPort(),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down, waiting for running jobs")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetEncodeTimeout()+time.Minute)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Graceful shutdown failed: %v", err)
		}
	}()

	logger.Infof("vidpress listening on port %s (storage: %s, ceiling: %dMB)",
		config.GetPort(), fallback.Type, config.GetSizeCeilingBytes()/(1024*1024))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("Server failed to start: %v", err)
	}
	logger.Info("Server stopped")
}

// cleanupRoutine removes stale temp files at start-up and on every tick
func cleanupRoutine(ctx context.Context, dir string, interval, maxAge time.Duration) {
	sweep := func() {
		n, err := job.SweepTempDir(dir, maxAge, time.Now())
		if err != nil {
			logger.Errorf("Failed to sweep temp dir %s: %v", dir, err)
			return
		}
		if n > 0 {
			logger.Infof("Removed %d stale temp files from %s", n, dir)
		}
	}

	sweep()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Cleanup routine stopped due to context cancellation")
			return
		case <-ticker.C:
			sweep()
		}
	}
}
