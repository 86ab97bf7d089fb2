package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/akolanti/FinDocAPI/internal/adapter"
	"github.com/akolanti/FinDocAPI/internal/config"
	"github.com/akolanti/FinDocAPI/internal/domain/documentModel"
	"github.com/akolanti/FinDocAPI/internal/domain/jobModel"
	"github.com/akolanti/FinDocAPI/pkg/logger_i"
)

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but can't send a clean status code now
		logRH.Error("Error encoding response", "error", err)
	}
}

func validateId(id string, traceId string) (result jobModel.Job, isFound bool) {
	if id == "" {
		logRH.Warn("Empty Job ID")
		return jobModel.Job{}, false
	}
	return GetJobStatus(id, traceId)
}

func validateContext(ctx context.Context) bool {
	if ctx.Err() != nil {
		logRH.Warn("context error", "traceId", logger_i.TraceID(ctx), "error", ctx.Err())
		return false
	}
	return true
}

func traceId(r *http.Request) string {
	return logger_i.TraceID(r.Context())
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, id string, error string) {
	writeJsonResponse(w, httpCode, adapter.BadRequest(id, error, httpCode))
}

func getTargetDirectory() (string, string) {
	targetDir := config.Get().Server.UploadDir
	if !filepath.IsAbs(targetDir) {
		root, err := os.Getwd()
		if err != nil {
			return "", "Storage Error"
		}
		targetDir = filepath.Join(root, targetDir)
	}
	if err := os.MkdirAll(targetDir, 0750); err != nil {
		return "", "Storage Error"
	}
	return targetDir, ""
}

// parseOptions reads the optional language and dpi form fields.
func parseOptions(r *http.Request) (documentModel.ProcessOptions, bool) {
	opts := documentModel.ProcessOptions{Language: r.FormValue("language")}
	if raw := r.FormValue("dpi"); raw != "" {
		dpi, err := strconv.Atoi(raw)
		if err != nil || dpi <= 0 {
			return opts, false
		}
		opts.DPI = dpi
	}
	return opts, true
}

// loadDocument writes the error response itself and reports whether doc is usable.
func loadDocument(w http.ResponseWriter, r *http.Request, id string) (documentModel.Document, bool) {
	doc, err := GetDocument(r.Context(), id)
	switch {
	case err == nil:
		return doc, true
	case isNotFound(err):
		WriteErrorResponse(w, http.StatusNotFound, id, "Document not found")
	default:
		logRH.Error("Could not load document", "documentId", id, "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, id, "Storage error")
	}
	return doc, false
}

// requireComplete rejects analysis and export of documents that did not finish.
func requireComplete(w http.ResponseWriter, doc documentModel.Document) bool {
	if doc.Status == documentModel.StatusComplete {
		return true
	}
	WriteErrorResponse(w, http.StatusConflict, doc.Id, "Document is "+string(doc.Status))
	return false
}
