package main

import (
	"context"
	"log"
	"time"

	"docsearch-platform/internal/ai"
	"docsearch-platform/internal/blob"
	"docsearch-platform/internal/config"
	"docsearch-platform/internal/logger"
	"docsearch-platform/internal/queue"
	"docsearch-platform/internal/telemetry"
	"docsearch-platform/services"

	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("docsearch-worker", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal("Failed to init tracing:", err)
	}
	defer shutdownTracer()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to init metrics:", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	// Redis: ingest status cache
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	// Blob storage for materialized objects and archived payloads
	blobs, err := blob.NewStore(cfg)
	if err != nil {
		log.Fatal("Failed to init blob storage:", err)
	}

	// Initialize Gemini client
	geminiClient, err := ai.NewGeminiClient(cfg, metrics)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	documentStore := services.NewDocumentStore(db)
	extractionStore := services.NewExtractionStore(db)
	chunkStore := services.NewChunkStore(db)
	indexStore := services.NewIndexStore(db)

	pipeline := services.NewPipeline(cfg, documentStore, extractionStore, chunkStore, indexStore, blobs, geminiClient, metrics)
	statusCache := services.NewStatusCache(rdb)

	// Create Asynq server
	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				"critical": 6, // 60% of workers
				"default":  3, // 30% of workers
				"low":      1, // 10% of workers
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("Task failed: %s, error: %v", task.Type(), err)
			}),
		},
	)

	// Create task processor
	processor := queue.NewTaskProcessor(pipeline, statusCache, metrics)

	// Create mux and register handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestDocument, processor.ProcessIngest)

	log.Println("Starting ingestion worker...")
	log.Printf("   Concurrency: %d", cfg.WorkerConcurrency)
	log.Printf("   Queues: critical(6), default(3), low(1)")
	log.Printf("   Redis: %s", cfg.RedisURL)

	// Start the server
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
