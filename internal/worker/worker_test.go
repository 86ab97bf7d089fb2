package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akolanti/FinDocAPI/internal/domain/documentModel"
	"github.com/akolanti/FinDocAPI/internal/domain/jobModel"
	"github.com/akolanti/FinDocAPI/internal/job"
	"github.com/akolanti/FinDocAPI/internal/processor"
	"github.com/akolanti/FinDocAPI/pkg/logger_i"
)

// MockProcessor counts processed uploads and optionally fails them.
type MockProcessor struct {
	ProcessedCount int32
	Err            error
	LastUpload     processor.Upload
	mu             sync.Mutex
}

func (m *MockProcessor) Process(ctx context.Context, up processor.Upload) (documentModel.Document, error) {
	atomic.AddInt32(&m.ProcessedCount, 1)
	m.mu.Lock()
	m.LastUpload = up
	m.mu.Unlock()
	doc := documentModel.NewDocument(up.Id, up.Filename, up.Options)
	if m.Err != nil {
		doc.Status = documentModel.StatusFailed
		return doc, m.Err
	}
	doc.Status = documentModel.StatusComplete
	return doc, nil
}

type MockJobStore struct {
	mu    sync.Mutex
	saved []jobModel.Job
}

func (m *MockJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.saved) - 1; i >= 0; i-- {
		if m.saved[i].Id == jobId {
			return m.saved[i], true
		}
	}
	return jobModel.Job{}, false
}

func (m *MockJobStore) DeleteJob(ctx context.Context, jobID string) {}

func (m *MockJobStore) SaveJob(ctx context.Context, j jobModel.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, j)
	return nil
}

func (m *MockJobStore) statuses() []jobModel.JobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]jobModel.JobStatus, 0, len(m.saved))
	for _, j := range m.saved {
		out = append(out, j.Status)
	}
	return out
}

func TestWorkerPool_Flow(t *testing.T) {
	jobSvc := &job.Service{
		JobChannel:        make(chan jobModel.Job, 10),
		DispatcherChannel: make(chan bool, 10),
		JobStore:          &MockJobStore{},
	}
	mockProcessor := &MockProcessor{}
	stopChan := make(chan bool)
	wg := &sync.WaitGroup{}

	InitServices(jobSvc, mockProcessor)
	InitWorkerPool(stopChan, wg)

	t.Run("Dispatcher creates worker on signal", func(t *testing.T) {
		jobSvc.DispatcherChannel <- true
		time.Sleep(50 * time.Millisecond)

		assert.GreaterOrEqual(t, atomic.LoadInt64(&currentWorkerCount), int64(1))
	})

	t.Run("Worker processes a job", func(t *testing.T) {
		jobSvc.JobChannel <- jobModel.Job{Id: "test-1", DocumentId: "doc-1"}
		time.Sleep(50 * time.Millisecond)

		assert.Equal(t, int32(1), atomic.LoadInt32(&mockProcessor.ProcessedCount))
	})

	t.Run("Stop signal retires workers", func(t *testing.T) {
		close(stopChan)

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("Workers did not stop within timeout")
		}
	})
}

func TestExecuteJob_CompletesAndRemovesUpload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statement.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))
	jobs := &MockJobStore{}
	mockProcessor := &MockProcessor{}
	InitServices(&job.Service{JobStore: jobs}, mockProcessor)

	executeJob(jobModel.Job{
		Id:         "job-1",
		DocumentId: "doc-1",
		TraceId:    "trace-1",
		JobPayload: jobModel.JobPayload{FilePath: path, FileName: "statement.pdf", Language: "eng", DPI: 150},
	})

	assert.Equal(t, []jobModel.JobStatus{jobModel.JobStatusRunning, jobModel.JobStatusComplete}, jobs.statuses())
	final, ok := jobs.GetJob(context.Background(), "job-1")
	require.True(t, ok)
	assert.Equal(t, jobModel.Complete, final.CurrentStep)
	assert.False(t, final.EndTime.IsZero())

	assert.Equal(t, "doc-1", mockProcessor.LastUpload.Id)
	assert.Equal(t, "statement.pdf", mockProcessor.LastUpload.Filename)
	assert.Equal(t, documentModel.ProcessOptions{Language: "eng", DPI: 150}, mockProcessor.LastUpload.Options)

	_, err := os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExecuteJob_RecordsFailure(t *testing.T) {
	jobs := &MockJobStore{}
	InitServices(&job.Service{JobStore: jobs}, &MockProcessor{
		Err: fmt.Errorf("%w: notes.txt", documentModel.ErrUnsupportedFormat),
	})

	executeJob(jobModel.Job{Id: "job-2", DocumentId: "doc-2"})

	final, ok := jobs.GetJob(context.Background(), "job-2")
	require.True(t, ok)
	assert.Equal(t, jobModel.JobStatusError, final.Status)
	assert.Equal(t, jobModel.Error, final.CurrentStep)
	assert.Equal(t, 415, final.Error.Code)
	assert.False(t, final.Error.Retry)
	assert.Contains(t, final.Error.Message, "unsupported format")
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, 422, errorCode(documentModel.ErrUnreadable))
	assert.Equal(t, 504, errorCode(fmt.Errorf("processing interrupted: %w", context.DeadlineExceeded)))
	assert.Equal(t, 500, errorCode(documentModel.ErrPersistenceFailure))
}

func TestWorker_IdleTimeout(t *testing.T) {
	atomic.StoreInt64(&currentWorkerCount, 0)
	atomic.StoreInt64(&minWorkerCount, 0)
	idleWorkerTimeout = 20 * time.Millisecond
	logger = logger_i.NewLogger("TestWorkerPool")
	InitServices(&job.Service{JobChannel: make(chan jobModel.Job)}, &MockProcessor{})

	workerWaitGroup = &sync.WaitGroup{}
	stopWorkerChannel = make(chan bool)

	createWorker()
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, int64(0), atomic.LoadInt64(&currentWorkerCount), "idle worker should have retired")
}
