package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	contactmetrics "twym/internal/contacts/metrics"
	contactsvc "twym/internal/contacts/service"
	contactstore "twym/internal/contacts/store"
	"twym/internal/events"
	filemetrics "twym/internal/files/metrics"
	filesvc "twym/internal/files/service"
	filestorage "twym/internal/files/storage"
	filestore "twym/internal/files/store"
	formmetrics "twym/internal/forms/metrics"
	"twym/internal/forms/ratelimit"
	formsvc "twym/internal/forms/service"
	formstore "twym/internal/forms/store"
	"twym/internal/platform/config"
	"twym/internal/platform/httpserver"
	"twym/internal/platform/logger"
	"twym/internal/platform/middleware"
	"twym/internal/platform/postgres"
	platformredis "twym/internal/platform/redis"
	"twym/internal/profiles"
	"twym/internal/sweeper"
	httptransport "twym/internal/transport/http"
	id "twym/pkg/domain"
)

// submissionDirectory breaks the construction cycle between the contacts
// and forms services: contacts needs submission lookups, forms needs
// contact creation. The forms service is attached after both exist.
type submissionDirectory struct {
	forms *formsvc.Service
}

func (d *submissionDirectory) Exists(ctx context.Context, subID id.SubmissionID) (bool, error) {
	if d.forms == nil {
		return false, nil
	}
	return d.forms.Exists(ctx, subID)
}

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: PostgreSQL when configured, in-memory otherwise.
	var (
		contactStore contactsvc.Store
		fileStore    filesvc.Store
		formStore    formsvc.Store
		pgHealth     httptransport.HealthChecker
	)
	if cfg.Postgres.URL != "" {
		db, err := postgres.Open(cfg.Postgres)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		contactStore = contactstore.NewPostgres(db)
		fileStore = filestore.NewPostgres(db)
		formStore = formstore.NewPostgres(db)
		pgHealth = postgres.Pinger{DB: db}
	} else {
		log.Warn("postgres not configured, using in-memory stores")
		contactStore = contactstore.NewInMemoryStore()
		fileStore = filestore.NewInMemoryStore()
		formStore = formstore.NewInMemoryStore()
	}

	// Rate limiting: Redis when configured, per-process counter otherwise.
	var (
		limiter     ratelimit.Counter = ratelimit.NewMemoryCounter()
		redisHealth httptransport.HealthChecker
	)
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		limiter = ratelimit.NewRedisCounter(redisClient.Client)
		redisHealth = redisClient
	}

	// Blob storage: S3 when a bucket is configured.
	var blobStorage filesvc.Storage = filestorage.NewInMemory()
	if cfg.Storage.Bucket != "" {
		s3Storage, err := filestorage.NewS3(ctx, cfg.Storage)
		if err != nil {
			log.Error("failed to initialize s3 storage", "error", err)
			os.Exit(1)
		}
		blobStorage = s3Storage
	}

	// Lifecycle events: Kafka when brokers are configured.
	var publisher events.Publisher = events.NewMemorySink()
	if len(cfg.Events.Brokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.Events, log)
		if err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		defer kafka.Close()
		publisher = kafka
	}

	// TODO: replace with the profile directory client once the profile
	// service exposes one.
	profileDir := profiles.NewInMemoryDirectory()

	subDir := &submissionDirectory{}
	contacts, err := contactsvc.New(contactStore, profileDir, cfg.Contacts,
		contactsvc.WithLogger(log),
		contactsvc.WithMetrics(contactmetrics.New()),
		contactsvc.WithPublisher(publisher),
		contactsvc.WithSubmissionDirectory(subDir),
	)
	if err != nil {
		log.Error("failed to build contacts service", "error", err)
		os.Exit(1)
	}

	files, err := filesvc.New(fileStore, blobStorage, contacts, cfg.OCR,
		filesvc.WithLogger(log),
		filesvc.WithMetrics(filemetrics.New()),
	)
	if err != nil {
		log.Error("failed to build files service", "error", err)
		os.Exit(1)
	}

	forms, err := formsvc.New(formStore, profileDir, contacts, limiter, cfg.Forms,
		formsvc.WithLogger(log),
		formsvc.WithMetrics(formmetrics.New()),
		formsvc.WithPublisher(publisher),
	)
	if err != nil {
		log.Error("failed to build forms service", "error", err)
		os.Exit(1)
	}
	subDir.forms = forms

	sweep := sweeper.New(contactStore, formStore, cfg.Contacts, cfg.Sweep,
		sweeper.WithLogger(log))
	go sweep.Run(ctx)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:       log,
		JWTValidator: middleware.NewJWTValidator(cfg.Server.JWTSigningKey),
		Contacts:     httptransport.NewContactsHandler(contacts, log),
		Files:        httptransport.NewFilesHandler(files, log),
		Forms:        httptransport.NewFormsHandler(forms, log),
		Postgres:     pgHealth,
		Redis:        redisHealth,
	})

	srv := httpserver.New(cfg.Server.Addr, router)
	go func() {
		log.Info("server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
