// cmd/server/main.go
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"

	http_api "form-orchestrator/internal/api/http"
	"form-orchestrator/internal/config"
	"form-orchestrator/internal/domain"
	"form-orchestrator/internal/infra/etcd"
	"form-orchestrator/internal/infra/gcs"
	"form-orchestrator/internal/infra/remote"
	"form-orchestrator/internal/pipeline"
	"form-orchestrator/internal/tracing"
	"form-orchestrator/internal/usecase"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// corsMiddleware wraps an http.Handler with CORS headers for the browser client.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	// 1. Initialize logger and tracer
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	tracerShutdown, err := tracing.InitTracer("form-orchestrator")
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tracerShutdown(context.Background()); err != nil {
			log.Printf("failed to shutdown tracer: %v", err)
		}
	}()

	log.Println("Starting form orchestrator node...")

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	nodeID := uuid.New().String()
	log.Printf("Node ID: %s", nodeID)

	// 3. Create root context for lifecycle management
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Setup graceful shutdown
	setupGracefulShutdown(cancel)

	// 5. Init etcd and blob store clients
	etcdClient, err := etcd.NewClient(cfg.EtcdEndpoints, cfg.EtcdTimeout)
	if err != nil {
		log.Fatalf("Failed to create etcd client: %v", err)
	}
	defer etcdClient.Close()
	log.Println("Connected to etcd.")

	storageClient, err := storage.NewClient(rootCtx)
	if err != nil {
		log.Fatalf("Failed to create storage client: %v", err)
	}
	defer storageClient.Close()

	// 6. Instantiate components
	executionStore := etcd.NewEtcdExecutionStore(etcdClient, logger)
	objectStore := gcs.NewObjectStore(storageClient)

	stages := buildStages(cfg, objectStore, logger)
	orchestrator := pipeline.NewOrchestrator(executionStore, stages, logger)

	submissionService := usecase.NewSubmissionService(executionStore, orchestrator, cfg.RecognizedForms, logger)
	statusService := usecase.NewStatusService(executionStore, logger)

	leaderManager := etcd.NewEtcdLeaderElectionManager(etcdClient, nodeID, cfg.LeaderElectionTTL, logger)
	retention, err := usecase.NewRetentionService(executionStore, leaderManager, cfg.RetentionSchedule, cfg.RetentionTTL, logger)
	if err != nil {
		log.Fatalf("Failed to create retention service: %v", err)
	}

	go func() {
		if _, err := leaderManager.Campaign(rootCtx); err != nil && rootCtx.Err() == nil {
			logger.Error("leader election campaign failed", "error", err)
		}
	}()
	go func() {
		if err := retention.Start(rootCtx); err != nil && rootCtx.Err() == nil {
			log.Fatalf("Retention service stopped with error: %v", err)
		}
	}()

	applicationHandler := http_api.NewApplicationHandler(submissionService, statusService, logger)

	// 7. Register routes and metrics endpoint
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	applicationHandler.RegisterRoutes(mux)

	// 8. Start HTTP API server with CORS middleware
	log.Printf("Starting HTTP API server on %s", cfg.HttpListenAddr)
	server := &http.Server{
		Addr:    cfg.HttpListenAddr,
		Handler: corsMiddleware(mux),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// 9. Block until shutdown
	<-rootCtx.Done()
	log.Println("Shutting down application gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("HTTP server shutdown failed: %v", err)
	}

	log.Println("Application shut down.")
}

// buildStages assembles the fixed stage sequence. The format-conversion stage
// is appended only when enabled; the state machine is unchanged either way.
func buildStages(cfg *config.Config, objectStore domain.ObjectStore, logger *slog.Logger) []domain.Stage {
	stages := []domain.Stage{
		pipeline.NewMetadataStage(objectStore, cfg.DocumentBucket, logger),
		pipeline.NewKnowledgeBaseSyncStage(
			remote.NewIngestionClient(cfg.IngestionBaseURL),
			cfg.KnowledgeBaseID,
			cfg.DataSourceID,
			cfg.IngestionPollInterval,
			logger,
		),
		pipeline.NewFormCompletionStage(
			objectStore,
			remote.NewRetriever(cfg.RetrievalURL),
			remote.NewModelInvoker(cfg.GenerationURL),
			pipeline.CompletionStageConfig{
				DocumentBucket: cfg.DocumentBucket,
				FilledBucket:   cfg.FilledBucket,
				MaxWorkers:     cfg.CompletionMaxWorkers,
			},
			logger,
		),
	}
	if cfg.ConvertEnabled {
		stages = append(stages, remote.NewStage("FormatConversion", cfg.ConversionURL))
	}
	return stages
}

func setupGracefulShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v. Initiating graceful shutdown...", sig)
		cancel()
	}()
}
