package worker

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/akolanti/FinDocAPI/internal/config"
	"github.com/akolanti/FinDocAPI/internal/domain/documentModel"
	jobmodel "github.com/akolanti/FinDocAPI/internal/domain/jobModel"
	"github.com/akolanti/FinDocAPI/internal/metrics"
	"github.com/akolanti/FinDocAPI/internal/processor"
)

func executeJob(job jobmodel.Job) {
	start := time.Now()
	defer func() {
		metrics.CaptureJobMetrics(string(job.Status), time.Since(start))
	}()
	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, job.TraceId)
	ctx, cancel := context.WithTimeout(ctxTrace, config.DocumentProcessingTimeout)
	defer cancel()
	log := logger.WithTrace(ctx).With("jobId", job.Id, "documentId", job.DocumentId)
	log.Debug("Processing job")

	job.CurrentStep = jobmodel.Extracting
	job = saveJobState(ctx, job, jobmodel.JobStatusRunning)

	doc, err := _processor.Process(ctx, processor.Upload{
		Id:       job.DocumentId,
		Path:     job.JobPayload.FilePath,
		Filename: job.JobPayload.FileName,
		Options: documentModel.ProcessOptions{
			Language: job.JobPayload.Language,
			DPI:      job.JobPayload.DPI,
		},
	})

	job.CurrentStep = jobmodel.Cleanup
	removeUpload(job.JobPayload.FilePath)

	job.EndTime = time.Now()
	if err != nil {
		log.Warn("document processing failed", "status", doc.Status, "error", err)
		job.CurrentStep = jobmodel.Error
		job.Error = jobmodel.JobError{
			Code:    errorCode(err),
			Message: err.Error(),
			Retry:   errors.Is(err, documentModel.ErrPersistenceFailure),
		}
		job = saveJobState(ctxTrace, job, jobmodel.JobStatusError)
		return
	}
	job.CurrentStep = jobmodel.Complete
	job = saveJobState(ctxTrace, job, jobmodel.JobStatusComplete)
	log.Info("Job complete", "pages", doc.PageCount)
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, documentModel.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, documentModel.ErrUnreadable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func removeUpload(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Failed to remove uploaded file", "path", path, "error", err)
	}
}

func removeWorker(reason string) {
	workerWaitGroup.Done()
	atomic.AddInt64(&currentWorkerCount, -1)
	logger.Info("Removed worker", "reason", reason, "workerCount", atomic.LoadInt64(&currentWorkerCount))
	metrics.DecrementActiveWorkerCount()
}

func saveJobState(ctx context.Context, job jobmodel.Job, jobStatus jobmodel.JobStatus) jobmodel.Job {
	job.Status = jobStatus
	if err := _jobService.JobStore.SaveJob(ctx, job); err != nil {
		logger.Error("Failed to update job status", "jobId", job.Id, "err", err)
	}
	return job
}
