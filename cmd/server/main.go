package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aicourt/backend/internal/config"
	"github.com/aicourt/backend/internal/events"
	"github.com/aicourt/backend/internal/httpserver"
	"github.com/aicourt/backend/internal/middleware"
	"github.com/aicourt/backend/internal/repo"
	"github.com/aicourt/backend/internal/service"
	"github.com/aicourt/backend/internal/storage"
	"github.com/aicourt/backend/pkg/logging"
	"github.com/labstack/echo/v4"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := config.InitDB(initCtx, cfg.DatabaseURL)
	if err != nil {
		cancel()
		log.Fatalf("db init error: %v", err)
	}

	blobs, err := storage.NewS3Store(initCtx, storage.Options{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		Bucket:    cfg.S3Bucket,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})
	cancel()
	if err != nil {
		log.Fatalf("blob store init error: %v", err)
	}

	gormRepo := &repo.GormRepo{DB: db}

	docSvc := &service.DocumentService{
		Repo:  gormRepo,
		Blobs: blobs,
	}
	if brokers := cfg.KafkaBrokers(); brokers != nil {
		producer := events.NewProducer(brokers, cfg.KafkaTopic)
		defer producer.Close()
		docSvc.Events = producer
	} else {
		logger.Warn("kafka address not configured, audit events disabled")
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	httpserver.Register(e, &httpserver.Deps{
		Auth: &httpserver.AuthHTTP{
			Svc: &service.AuthService{Repo: gormRepo, JWTSecret: cfg.JWTSecret},
		},
		Documents:  &httpserver.DocumentHTTP{Svc: docSvc},
		TokenAuth:  middleware.NewTokenAuth(cfg.JWTSecret, gormRepo),
		Logger:     logger,
		CORSOrigin: cfg.CORSOrigin,
	})

	go func() {
		if err := e.Start(cfg.Addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("echo start: %v", err)
		}
	}()
	logger.Info("server_started", "addr", cfg.Addr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("echo shutdown: %v", err)
	}
}
