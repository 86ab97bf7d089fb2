package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/akolanti/FinDocAPI/internal/adapter"
	"github.com/akolanti/FinDocAPI/internal/adapter/utils"
	"github.com/akolanti/FinDocAPI/internal/config"
	"github.com/akolanti/FinDocAPI/internal/domain/documentModel"
	"github.com/akolanti/FinDocAPI/internal/export"
	"github.com/akolanti/FinDocAPI/internal/extraction/pdfsource"
	"github.com/akolanti/FinDocAPI/pkg/logger_i"
)

var logRH = logger_i.NewLogger("RequestHandler")

type newJobData struct {
	id         string
	documentId string
	traceId    string
	fileName   string
	filePath   string
	options    documentModel.ProcessOptions
}

func GetHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// PostUploadHandler saves a multipart "file" upload and queues it for extraction.
// Uploads that are not PDFs are recorded as failed documents and answered with 415.
func PostUploadHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logRH.Warn("Invalid Context by request", "remoteAddr", r.RemoteAddr)
		return
	}

	targetDir, errString := getTargetDirectory()
	if errString != "" {
		logRH.Error("Couldn't get target directory", "err", errString)
		WriteErrorResponse(w, http.StatusInternalServerError, "", errString)
		return
	}

	if err := r.ParseMultipartForm(config.MaxUploadSize); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "File too large or bad request")
		return
	}
	opts, ok := parseOptions(r)
	if !ok {
		WriteErrorResponse(w, http.StatusBadRequest, "", "dpi must be a positive integer")
		return
	}

	fileReader, fileMetadata, err := r.FormFile("file")
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "Could not retrieve file")
		return
	}
	defer fileReader.Close()

	newJob := newJobData{
		id:         utils.GetNewUUID(),
		documentId: utils.GetNewUUID(),
		traceId:    traceId(r),
		fileName:   filepath.Base(fileMetadata.Filename),
		options:    opts,
	}
	newJob.filePath = filepath.Join(targetDir, newJob.documentId+"-"+newJob.fileName)

	if err := saveUpload(newJob.filePath, fileReader); err != nil {
		logRH.Error("Could not store upload", "path", newJob.filePath, "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, newJob.documentId, "Storage error")
		return
	}

	if err := pdfsource.CheckFormat(newJob.filePath); err != nil {
		defer removeFile(newJob.filePath)
		doc, procErr := RejectUpload(r.Context(), newJob)
		if errors.Is(procErr, documentModel.ErrPersistenceFailure) {
			WriteErrorResponse(w, http.StatusInternalServerError, newJob.documentId, "Storage error")
			return
		}
		code := http.StatusUnsupportedMediaType
		if !errors.Is(err, documentModel.ErrUnsupportedFormat) {
			code = http.StatusUnprocessableEntity
		}
		writeJsonResponse(w, code, adapter.ToUploadResponse(doc, ""))
		return
	}

	doc, err := CreateNewJob(r.Context(), newJob)
	if err != nil {
		removeFile(newJob.filePath)
		WriteErrorResponse(w, http.StatusInternalServerError, newJob.documentId, "Storage error")
		return
	}
	writeJsonResponse(w, http.StatusAccepted, adapter.ToUploadResponse(doc, newJob.id))
}

func GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	idString := utils.GetChiURLParam(r, "id")
	logRH.Debug("Get Status Request", "URL path", r.URL.Path)

	result, isFound := validateId(idString, traceId(r))
	if !isFound {
		WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result))
}

func GetDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	doc, ok := loadDocument(w, r, utils.GetChiURLParam(r, "id"))
	if !ok {
		return
	}
	writeJsonResponse(w, http.StatusOK, doc)
}

func ListDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	docs, err := ListDocuments(r.Context())
	if err != nil {
		logRH.Error("Could not list documents", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "", "Storage error")
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToDocumentList(docs))
}

func GetAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	doc, ok := loadDocument(w, r, utils.GetChiURLParam(r, "id"))
	if !ok || !requireComplete(w, doc) {
		return
	}
	writeJsonResponse(w, http.StatusOK, AnalyzeDocument(doc))
}

func GetExportCSVHandler(w http.ResponseWriter, r *http.Request) {
	exportDocument(w, r, "text/csv", "csv", export.WriteCSV)
}

func GetExportXLSXHandler(w http.ResponseWriter, r *http.Request) {
	exportDocument(w, r, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx", export.WriteXLSX)
}

// exportDocument buffers the whole file so a writer error still becomes a 500.
func exportDocument(w http.ResponseWriter, r *http.Request, contentType string, ext string, write export.WriterFunc) {
	if !validateContext(r.Context()) {
		return
	}
	doc, ok := loadDocument(w, r, utils.GetChiURLParam(r, "id"))
	if !ok || !requireComplete(w, doc) {
		return
	}

	var buf bytes.Buffer
	if err := write(&buf, AnalyzeDocument(doc)); err != nil {
		logRH.Error("Export failed", "documentId", doc.Id, "format", ext, "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, doc.Id, "Export failed")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, doc.Id, ext))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logRH.Warn("Export write interrupted", "documentId", doc.Id, "error", err)
	}
}

func saveUpload(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func removeFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logRH.Warn("Could not remove upload", "path", path, "error", err)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, documentModel.ErrNotFound)
}
