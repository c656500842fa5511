package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI       string
	DBName         string
	Port           string
	GinMode        string
	CORSOrigins    []string
	MaxFileSize    int64
	AllowedTypes   []string
	FileStorageDir string

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Document-AI provider
	DocAIProvider  string // "upstage", "azure-di", or "" for local fallback
	DocAIServiceURL string
	DocAITimeout   int // seconds

	// Chunking parameters (tokens)
	MinChunkTokens    int
	TargetChunkTokens int
	MaxChunkTokens    int
	ChunkOverlapTokens int

	// Visual object filter tunables. The reference-boundary defaults mirror
	// the original heuristics and are not guaranteed-correct thresholds.
	ReferenceFallbackRatio float64 // assumed references start, as fraction of page count
	MinCorePages           int     // widen the filter below this many core pages

	// Object materializer
	MaterializeConcurrency int
	MinImageEdge           int
	MinColorVariance       float64
	PopplerEnabled         bool

	// Blob storage: "local" or "s3"
	BlobBackend     string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3UseSSL        bool

	// Embeddings
	GeminiAPIKey           string
	GeminiTier             string
	TextEmbeddingsModel    string
	ImageEmbeddingsModel   string
	VectorDimensions       int
	EmbeddingBatchSize     int
	ImageEmbedConcurrency  int

	// Search index
	SearchIndexName string

	// Maintenance
	StaleSessionTTLMinutes int
	StaleSweepCron         string

	// Worker
	WorkerConcurrency int

	// Telemetry
	OTLPEndpoint string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017/docsearch"),
		DBName:         getEnv("DB_NAME", "docsearch"),
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		CORSOrigins:    strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),
		MaxFileSize:    getEnvInt64("MAX_FILE_SIZE", 104857600), // 100MB
		AllowedTypes:   strings.Split(getEnv("ALLOWED_FILE_TYPES", "application/pdf,application/vnd.openxmlformats-officedocument.wordprocessingml.document,application/vnd.openxmlformats-officedocument.presentationml.presentation,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"), ","),
		FileStorageDir: getEnv("FILE_STORAGE_DIR", "./storage"),

		// Redis Configuration
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		// Document-AI provider
		DocAIProvider:   getEnv("DOCAI_PROVIDER", ""),
		DocAIServiceURL: getEnv("DOCAI_SERVICE_URL", "http://localhost:8001"),
		DocAITimeout:    getEnvInt("DOCAI_TIMEOUT", 300), // 5 minutes

		// Chunking
		MinChunkTokens:     getEnvInt("MIN_CHUNK_TOKENS", 80),
		TargetChunkTokens:  getEnvInt("TARGET_CHUNK_TOKENS", 280),
		MaxChunkTokens:     getEnvInt("MAX_CHUNK_TOKENS", 420),
		ChunkOverlapTokens: getEnvInt("CHUNK_OVERLAP_TOKENS", 40),

		// Visual object filter
		ReferenceFallbackRatio: getEnvFloat64("REFERENCE_FALLBACK_RATIO", 0.8),
		MinCorePages:           getEnvInt("MIN_CORE_PAGES", 3),

		// Materializer
		MaterializeConcurrency: getEnvInt("MATERIALIZE_CONCURRENCY", 4),
		MinImageEdge:           getEnvInt("MIN_IMAGE_EDGE", 32),
		MinColorVariance:       getEnvFloat64("MIN_COLOR_VARIANCE", 8.0),
		PopplerEnabled:         getEnvBool("POPPLER_ENABLED", true),

		// Blob storage
		BlobBackend: getEnv("BLOB_BACKEND", "local"),
		S3Endpoint:  getEnv("S3_ENDPOINT", "localhost:9000"),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		S3Bucket:    getEnv("S3_BUCKET", "docsearch"),
		S3UseSSL:    getEnvBool("S3_USE_SSL", false),

		// Embeddings
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiTier:            getEnv("GEMINI_TIER", "free"),
		TextEmbeddingsModel:   getEnv("TEXT_EMBEDDINGS_MODEL", "text-embedding-004"),
		ImageEmbeddingsModel:  getEnv("IMAGE_EMBEDDINGS_MODEL", "multimodalembedding@001"),
		VectorDimensions:      getEnvInt("VECTOR_DIM", 768),
		EmbeddingBatchSize:    getEnvInt("EMBEDDING_BATCH_SIZE", 100),
		ImageEmbedConcurrency: getEnvInt("IMAGE_EMBED_CONCURRENCY", 4),

		// Search index
		SearchIndexName: getEnv("MONGODB_SEARCH_INDEX", "search_index_text"),

		// Maintenance
		StaleSessionTTLMinutes: getEnvInt("STALE_SESSION_TTL_MINUTES", 30),
		StaleSweepCron:         getEnv("STALE_SWEEP_CRON", "*/10 * * * *"),

		// Worker
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 10),

		// Telemetry
		OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),
	}

	// Validate required fields
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if cfg.MaxChunkTokens <= cfg.ChunkOverlapTokens {
		return nil, fmt.Errorf("MAX_CHUNK_TOKENS must exceed CHUNK_OVERLAP_TOKENS")
	}

	if cfg.EmbeddingBatchSize < 1 {
		return nil, fmt.Errorf("EMBEDDING_BATCH_SIZE must be positive")
	}

	if cfg.MaterializeConcurrency < 1 || cfg.ImageEmbedConcurrency < 1 {
		return nil, fmt.Errorf("MATERIALIZE_CONCURRENCY and IMAGE_EMBED_CONCURRENCY must be positive")
	}

	if cfg.BlobBackend == "s3" && cfg.S3AccessKey == "" {
		return nil, fmt.Errorf("S3_ACCESS_KEY is required when BLOB_BACKEND=s3")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
