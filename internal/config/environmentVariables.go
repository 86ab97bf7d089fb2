package config

import (
	"log/slog"
	"time"
)

const (
	IS_PROD        = false
	LOG_LEVEL_PROD = slog.LevelInfo
	TRACE_ID_KEY   = "traceId"

	RATE_LIMIT_PER_SECOND       = 2
	BURST_RATE_LIMIT_PER_SECOND = 5
	RateLimiterIdleTTL          = 10 * time.Minute

	RequestsPerNewWorkerCount int64 = 10
	MaxWorkerCount            int64 = 10
	MinWorkerCount            int64 = 1
	IdleWorkerTimeout               = 1 * time.Minute

	//whole pipeline timeout per document, a document still processing at this point is failed
	DocumentProcessingTimeout = 10 * time.Minute

	//serverTimeouts
	ReadTimeout            = 30 * time.Second
	WriteTimeout           = 60 * time.Second
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	ServerListenAddr = ":3000"

	//job requests buffer limit
	BufferLimit = 100

	MaxUploadSize = 32 << 20 //32mb
	UploadDirName = "temporary_data"

	//extraction defaults
	MinNativeChars           = 20
	TableConfidenceThreshold = 0.7
	DefaultOCRLanguage       = "heb+eng"
	DefaultDPI               = 300
	DefaultPageWorkers       = 1
	PageExtractTimeout       = 10 * time.Second
	ValidateISINChecksum     = true
	TopHoldingsCount         = 10

	//ocr
	OCREngineNone      = "none"
	OCREngineGemini    = "gemini"
	OCREngineTesseract = "tesseract"
	GeminiModelName    = "gemini-2.5-flash"
	OCRRequestTimeout  = 90 * time.Second

	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second

	//redis
	redisHost = "127.0.0.1"
	redisPort = "6379"
	RedisAddr = redisHost + ":" + redisPort

	//redis has 16 DB we can use
	RedisDocumentStore = 0
	RedisJobStore      = 1

	RedisDocumentStoreTTL  = 30 * 24 * time.Hour
	RedisJobStoreTTL       = 24 * time.Hour
	RedisDocumentIndexKey  = "documents:index"
	RedisDocumentKeyPrefix = "document:"
	RedisPingTimeout       = 3 * time.Second
)
