package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/JPKrishna28/audio-sentinel/internal/application"
	"github.com/JPKrishna28/audio-sentinel/internal/application/processing"
	apprecordings "github.com/JPKrishna28/audio-sentinel/internal/application/recordings"
	"github.com/JPKrishna28/audio-sentinel/internal/config"
	"github.com/JPKrishna28/audio-sentinel/internal/domain/analysis"
	"github.com/JPKrishna28/audio-sentinel/internal/domain/recordings"
	"github.com/JPKrishna28/audio-sentinel/internal/infra/ai/classifier"
	aiopenai "github.com/JPKrishna28/audio-sentinel/internal/infra/ai/openai"
	"github.com/JPKrishna28/audio-sentinel/internal/infra/audio"
	mysqlp "github.com/JPKrishna28/audio-sentinel/internal/infra/db/mysql"
	postgresp "github.com/JPKrishna28/audio-sentinel/internal/infra/db/postgres"
	"github.com/JPKrishna28/audio-sentinel/internal/infra/httpserver"
	minioStore "github.com/JPKrishna28/audio-sentinel/internal/infra/storage"
	"github.com/JPKrishna28/audio-sentinel/internal/infra/stt/sarvam"
	"github.com/JPKrishna28/audio-sentinel/internal/logger"
	"github.com/JPKrishna28/audio-sentinel/internal/middleware"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	log := logger.New()

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// connect database (driver dipilih dari config)
	var (
		db             *sql.DB
		recordingsRepo recordings.Repository
		resultsRepo    analysis.ResultRepository
	)
	switch cfg.Database.Driver {
	case "mysql":
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		recordingsRepo = mysqlp.NewRecordingRepository(db)
		resultsRepo = mysqlp.NewResultRepository(db)
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		recordingsRepo = postgresp.NewRecordingRepository(db)
		resultsRepo = postgresp.NewResultRepository(db)
	default:
		log.Fatalf("unsupported database driver: %s", cfg.Database.Driver)
	}
	defer db.Close()

	// init minio; artifact upload is best-effort so a missing endpoint just
	// disables it
	var artifacts analysis.ArtifactStore
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Warnf("minio init error, artifact upload disabled: %v", err)
		} else {
			artifacts = store
		}
	}

	// init pipeline stages
	normalizer := audio.NewNormalizer()
	transcriber := sarvam.NewClient(cfg.STT.Endpoint, cfg.STT.APIKey, cfg.STT.Model, log.Entry)
	threatModel := aiopenai.NewClient(cfg.AI.APIKey, cfg.AI.Model)
	threatClassifier := classifier.New(threatModel, log.Entry)

	// init upload/dashboard service
	recSvc := &apprecordings.Service{
		Repo:     recordingsRepo,
		Results:  resultsRepo,
		Clock:    application.SystemClock{},
		MaxBytes: cfg.Upload.MaxBytes,
	}

	// init coordinator and start the processing loop
	coord := &processing.Coordinator{
		Recordings:   recordingsRepo,
		Results:      resultsRepo,
		Normalizer:   normalizer,
		Transcriber:  transcriber,
		Classifier:   threatClassifier,
		Artifacts:    artifacts,
		Clock:        application.SystemClock{},
		Log:          log.Entry,
		PollInterval: cfg.PollInterval(),
		StaleAfter:   cfg.StaleAfter(),
	}
	go coord.Run(ctx)

	// init router
	health := map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
	}
	if store, ok := artifacts.(*minioStore.Store); ok {
		health["storage"] = middleware.CheckFunc(store.Check)
	}
	handler := httpserver.NewRouter(recSvc, resultsRepo, httpserver.Options{
		Log:        log.Entry,
		Health:     health,
		MaxBytes:   cfg.Upload.MaxBytes,
		UploadRate: 5,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Infof("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down...")

	// stop the coordinator first so no new processing starts mid-shutdown
	cancel()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Errorf("shutdown error: %v", err)
	}
}
