package api

import "time"

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

type JobResponse struct {
	Id         string            `json:"id" example:"job_cz109"`
	DocumentId string            `json:"document_id" example:"doc_550"`
	Result     Result            `json:"result"`
	Error      *JobOutgoingError `json:"error,omitempty"`
	StartTime  time.Time         `json:"start_time"`
	EndTime    time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"Job not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type Result struct {
	Status      string `json:"status"`
	Step        string `json:"step,omitempty"`
	DocumentURL string `json:"document_url,omitempty"`
}

// UploadResponse is returned for every accepted upload, queued or rejected.
type UploadResponse struct {
	DocumentId  string `json:"document_id"`
	JobId       string `json:"job_id,omitempty"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
	DocumentURL string `json:"document_url"`
	StatusURL   string `json:"status_url,omitempty"`
}

type DocumentSummary struct {
	Id         string    `json:"document_id"`
	Filename   string    `json:"filename"`
	Status     string    `json:"status"`
	PageCount  int       `json:"page_count"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type DocumentListResponse struct {
	Documents []DocumentSummary `json:"documents"`
}
