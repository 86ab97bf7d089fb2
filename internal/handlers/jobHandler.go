package handlers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akolanti/FinDocAPI/internal/config"
	"github.com/akolanti/FinDocAPI/internal/domain/documentModel"
	"github.com/akolanti/FinDocAPI/internal/domain/financeModel"
	"github.com/akolanti/FinDocAPI/internal/domain/jobModel"
	"github.com/akolanti/FinDocAPI/internal/finance"
	"github.com/akolanti/FinDocAPI/internal/job"
	"github.com/akolanti/FinDocAPI/internal/metrics"
	"github.com/akolanti/FinDocAPI/internal/processor"
	"github.com/akolanti/FinDocAPI/pkg/logger_i"
)

var (
	handlerInstance *JobHandler //private singleton
	once            sync.Once
	logJH           = logger_i.NewLogger("JobHandler")
)

// DocumentProcessor runs an upload synchronously. Used for uploads rejected before queueing.
type DocumentProcessor interface {
	Process(ctx context.Context, up processor.Upload) (documentModel.Document, error)
}

type JobHandler struct {
	service   *job.Service
	processor DocumentProcessor
	analyzer  *finance.Analyzer
}

func InitJobHandler(jobService *job.Service, documentProcessor DocumentProcessor, analyzer *finance.Analyzer) {
	once.Do(func() {
		handlerInstance = &JobHandler{service: jobService, processor: documentProcessor, analyzer: analyzer}
		logJH.Info("Starting job handler")
	})
}

// CreateNewJob writes the pending document and queues its processing job.
func CreateNewJob(ctx context.Context, newJob newJobData) (documentModel.Document, error) {
	log := logJH.With("traceId", newJob.traceId, "jobId", newJob.id, "documentId", newJob.documentId)
	log.Info("To create new job")

	doc := documentModel.NewDocument(newJob.documentId, newJob.fileName, newJob.options)
	if err := handlerInstance.service.DocumentStore.Put(ctx, doc.Id, doc); err != nil {
		log.Error("Could not store pending document", "error", err)
		return doc, err
	}
	handlerInstance.pushToJobChannel(ctx, newJob)
	return doc, nil
}

// RejectUpload records an upload that failed the format check as a failed document.
func RejectUpload(ctx context.Context, newJob newJobData) (documentModel.Document, error) {
	logJH.Info("Rejecting upload", "documentId", newJob.documentId, "filename", newJob.fileName)
	return handlerInstance.processor.Process(ctx, processor.Upload{
		Id:       newJob.documentId,
		Path:     newJob.filePath,
		Filename: newJob.fileName,
		Options:  newJob.options,
	})
}

func GetJobStatus(id string, traceId string) (result jobModel.Job, isFound bool) {
	ctxC := context.WithValue(context.Background(), config.TRACE_ID_KEY, traceId)
	if handlerInstance != nil {
		return handlerInstance.service.JobStore.GetJob(ctxC, id)
	}
	return result, false
}

func GetDocument(ctx context.Context, id string) (documentModel.Document, error) {
	return handlerInstance.service.DocumentStore.Get(ctx, id)
}

func ListDocuments(ctx context.Context) ([]documentModel.Document, error) {
	return handlerInstance.service.DocumentStore.List(ctx)
}

func AnalyzeDocument(doc documentModel.Document) financeModel.AnalysisResult {
	return handlerInstance.analyzer.Analyze(doc)
}

// private methods
func (h *JobHandler) pushToJobChannel(ctx context.Context, newJob newJobData) {

	_job := jobModel.Job{
		Id:          newJob.id,
		DocumentId:  newJob.documentId,
		TraceId:     newJob.traceId,
		JobType:     jobModel.JobTypeProcess,
		CreatedTime: time.Now(),
		Status:      jobModel.JobStatusQueued,
		CurrentStep: jobModel.ProcessInit,
		JobPayload: jobModel.JobPayload{
			FilePath: newJob.filePath,
			FileName: newJob.fileName,
			Language: newJob.options.Language,
			DPI:      newJob.options.DPI,
		},
	}
	if err := h.service.JobStore.SaveJob(ctx, _job); err != nil {
		logJH.Error("Could not save queued job", "jobId", _job.Id, "error", err)
	}

	//metrics
	metrics.IncrementJobsInQueue()

	h.service.JobChannel <- _job //this is a blocking send to prevent the system from being overwhelmed
	logJH.Info("Created new job", "jobId", _job.Id)

	//a new worker every RequestsPerNewWorkerCount requests, idle workers retire on their own
	accurateCount := atomic.AddInt64(&h.service.RequestCount, 1)
	if accurateCount%config.RequestsPerNewWorkerCount == 0 {
		metrics.StartDispatcherSignalCount() //metrics
		logJH.Debug("Worker count", "requests", accurateCount)
		h.service.DispatcherChannel <- true
	}
}
