package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"dialectic/internal/app"
	"dialectic/internal/blob"
	"dialectic/internal/config"
	"dialectic/internal/export"
	"dialectic/internal/history"
	"dialectic/internal/kb"
	"dialectic/internal/search"
	"dialectic/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		log.Fatalf("failed to create repos dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)

	deps := app.Dependencies{
		Search:  searchService,
		History: history.New(cfg.ReposDir),
		Export:  export.NewService(dataStore),
	}

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		blobStore, err := blob.New(ctx, blob.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("minio connection failed: %v", err)
		}
		deps.Blob = blobStore
	} else {
		log.Printf("MinIO not configured, evidence attachments disabled")
	}

	if strings.TrimSpace(cfg.KBBaseURL) != "" {
		var lookup kb.Lookup = kb.NewClient(cfg.KBBaseURL)
		if strings.TrimSpace(cfg.RedisURL) != "" {
			cached, err := kb.NewRedisCache(cfg.RedisURL, lookup, cfg.KBCacheTTL)
			if err != nil {
				log.Fatalf("redis connection failed: %v", err)
			}
			defer cached.Close()
			lookup = cached
			log.Printf("Using Redis cache for knowledge-base lookups")
		}
		deps.KB = lookup
	} else {
		log.Printf("Knowledge base not configured, evidence back-references go unverified")
	}

	service := app.New(cfg, dataStore, deps)
	service.Bootstrap(ctx)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           service.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Dialectic API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
