package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/akolanti/FinDocAPI/internal/config"
	"github.com/akolanti/FinDocAPI/internal/data/store"
	"github.com/akolanti/FinDocAPI/internal/domain/documentModel"
	jobmodel "github.com/akolanti/FinDocAPI/internal/domain/jobModel"
	"github.com/akolanti/FinDocAPI/internal/extraction/ocr"
	"github.com/akolanti/FinDocAPI/internal/finance"
	"github.com/akolanti/FinDocAPI/internal/handlers"
	"github.com/akolanti/FinDocAPI/internal/job"
	"github.com/akolanti/FinDocAPI/internal/processor"
	"github.com/akolanti/FinDocAPI/internal/server"
	"github.com/akolanti/FinDocAPI/internal/worker"
	"github.com/akolanti/FinDocAPI/pkg/logger_i"
)

var (
	listenAddr        string
	requestCount      int64
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {

	logger_i.Init()
	var logger = logger_i.NewLogger("main")
	cfg := config.Get()

	flag.StringVar(&listenAddr, "listen-addr", cfg.Server.ListenAddr, "server listen address")
	flag.Parse()

	//init buffered job channel
	jobChannel := make(chan jobmodel.Job, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	jobStore, documentStore := initStores(serviceContext, cfg, logger)
	serviceConfig := job.ServiceConfig{
		JobChannel:        jobChannel,
		RequestCount:      requestCount,
		DispatcherChannel: dispatcherChannel,
		JobStore:          jobStore,
		DocumentStore:     documentStore,
	}
	logger.Info("Starting job service")
	service := job.InitJobService(serviceConfig)

	engine, closeEngine, err := ocr.NewEngine(serviceContext, cfg.OCR)
	if err != nil {
		logger.Error("OCR engine failed to initialize. Shutting down.", "engine", cfg.OCR.Engine, "error", err)
		return
	}
	defer closeEngine()
	logger.Info("OCR engine ready", "engine", engine.Name())

	documentProcessor := processor.New(documentStore, engine, cfg.Extraction)
	analyzer := finance.NewAnalyzer(cfg.Analysis.TopHoldings, cfg.Extraction.ValidateISINChecksum)

	handlers.InitJobHandler(service, documentProcessor, analyzer)

	//init worker pool
	worker.InitServices(service, documentProcessor)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr)

	<-stopExecution
	logger.Info("Server stopped")
}

// initStores prefers redis and falls back to memory when it is disabled or unreachable.
func initStores(ctx context.Context, cfg *config.Config, logger *logger_i.Logger) (jobmodel.JobStore, documentModel.DocumentStore) {
	if cfg.Redis.Enabled {
		redisJobs := store.GetRedisJobStore(ctx)
		redisDocuments := store.GetRedisDocumentStore(ctx)
		if redisJobs != nil && redisDocuments != nil {
			return redisJobs, redisDocuments
		}
		logger.Error("Redis stores are offline, using in-memory stores", "addr", cfg.Redis.Addr)
	} else {
		logger.Info("Redis disabled, using in-memory stores")
	}
	return store.InitInMemoryJobStore(), store.InitInMemoryDocumentStore()
}
