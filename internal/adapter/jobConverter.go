package adapter

import (
	"fmt"
	"time"

	"github.com/akolanti/FinDocAPI/internal/api"
	"github.com/akolanti/FinDocAPI/internal/domain/documentModel"
	"github.com/akolanti/FinDocAPI/internal/domain/jobModel"
)

func DocumentURL(documentId string) string {
	return fmt.Sprintf("api/documents/%s", documentId)
}

func JobStatusURL(jobId string) string {
	return fmt.Sprintf("api/jobs/%s", jobId)
}

func ToUploadResponse(doc documentModel.Document, jobId string) api.UploadResponse {
	res := api.UploadResponse{
		DocumentId:  doc.Id,
		JobId:       jobId,
		Status:      string(doc.Status),
		Reason:      doc.Reason,
		DocumentURL: DocumentURL(doc.Id),
	}
	if jobId != "" {
		res.StatusURL = JobStatusURL(jobId)
	}
	return res
}

func ToAPIResponse(job jobModel.Job) api.JobResponse {

	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:    job.Error.Code,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}

	result := api.Result{
		Status: string(job.Status),
		Step:   string(job.CurrentStep),
	}
	if job.DocumentId != "" {
		result.DocumentURL = DocumentURL(job.DocumentId)
	}

	return api.JobResponse{
		Id:         job.Id,
		DocumentId: job.DocumentId,
		StartTime:  job.CreatedTime,
		EndTime:    job.EndTime,
		Error:      errorPtr,
		Result:     result,
	}
}

func ToDocumentList(docs []documentModel.Document) api.DocumentListResponse {
	out := api.DocumentListResponse{Documents: make([]api.DocumentSummary, 0, len(docs))}
	for _, d := range docs {
		out.Documents = append(out.Documents, api.DocumentSummary{
			Id:         d.Id,
			Filename:   d.Filename,
			Status:     string(d.Status),
			PageCount:  d.PageCount,
			UploadedAt: d.UploadedAt,
		})
	}
	return out
}

func BadRequest(id string, error string, code int) api.JobResponse {
	return api.JobResponse{
		Id:        id,
		StartTime: time.Time{},
		EndTime:   time.Time{},
		Result: api.Result{
			Status: string(api.JobStatusError),
		},
		Error: &api.JobOutgoingError{
			Code:    code,
			Message: error,
			Retry:   false,
		},
	}
}
