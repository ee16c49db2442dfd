package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/uniassist/uniassist/internal/ingest"
	"github.com/uniassist/uniassist/internal/knowledge"
)

// maxUploadSize limits document uploads to 50MB.
const maxUploadSize = 50 << 20

// ingestRunner is the subset of the ingest pipeline the API needs.
type ingestRunner interface {
	Run(ctx context.Context, path, docType string) (*ingest.Result, error)
}

// chunkCounter is the subset of the knowledge store the stats endpoint
// needs.
type chunkCounter interface {
	Count(ctx context.Context, filter map[string]string) (int, error)
}

// documentsHandler serves document upload and knowledge base stats.
type documentsHandler struct {
	pipeline  ingestRunner
	counter   chunkCounter
	uploadDir string
	logger    *slog.Logger
}

// uploadResponse is the response body for /api/v1/documents.
type uploadResponse struct {
	Filename    string `json:"filename"`
	ChunksAdded int    `json:"chunks_added"`
	FilesFailed int    `json:"files_failed"`
}

// upload accepts a multipart document upload, stores it under the
// upload directory, and runs the ingest pipeline on it.
func (h *documentsHandler) upload(w http.ResponseWriter, r *http.Request) {
	if h.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "ingest_unavailable", "ingest pipeline not configured", h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "multipart form with a \"file\" field is required", h.logger)
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if filename == "." || filename == string(filepath.Separator) || !supportedUpload(filename) {
		writeError(w, http.StatusBadRequest, "unsupported_file", "only .pdf, .md and .txt files are accepted", h.logger)
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o750); err != nil {
		h.logger.Error("creating upload directory", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
		return
	}

	dest := filepath.Join(h.uploadDir, filename)
	if err := saveUpload(dest, file); err != nil {
		h.logger.Error("saving upload", "file", filename, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
		return
	}

	docType := r.FormValue("doc_type")
	result, err := h.pipeline.Run(r.Context(), dest, docType)
	if err != nil {
		if errors.Is(err, ingest.ErrLocked) {
			writeError(w, http.StatusConflict, "ingest_locked", "another ingestion is already running", h.logger)
			return
		}
		h.logger.Error("ingesting upload", "file", filename, "error", err)
		writeError(w, http.StatusInternalServerError, "ingest_failed", "document ingestion failed", h.logger)
		return
	}

	h.logger.Info("document ingested", "file", filename, "chunks", result.ChunksAdded)
	writeJSON(w, http.StatusCreated, uploadResponse{
		Filename:    filename,
		ChunksAdded: result.ChunksAdded,
		FilesFailed: result.FilesFailed,
	}, h.logger)
}

// statsResponse is the response body for /api/v1/stats.
type statsResponse struct {
	TotalChunks  int            `json:"total_chunks"`
	BySourceType map[string]int `json:"by_source_type"`
}

// stats reports knowledge base chunk counts, total and per source type.
func (h *documentsHandler) stats(w http.ResponseWriter, r *http.Request) {
	if h.counter == nil {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "knowledge store not configured", h.logger)
		return
	}

	ctx := r.Context()
	total, err := h.counter.Count(ctx, nil)
	if err != nil {
		h.logger.Error("counting chunks", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
		return
	}

	byType := make(map[string]int, len(knowledge.ValidSourceTypes))
	for _, sourceType := range knowledge.ValidSourceTypes {
		count, err := h.counter.Count(ctx, map[string]string{"source_type": sourceType})
		if err != nil {
			h.logger.Error("counting chunks", "source_type", sourceType, "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
			return
		}
		byType[sourceType] = count
	}

	writeJSON(w, http.StatusOK, statsResponse{TotalChunks: total, BySourceType: byType}, h.logger)
}

// supportedUpload reports whether the filename has an ingestable
// extension.
func supportedUpload(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".md", ".txt":
		return true
	}
	return false
}

// saveUpload writes the uploaded file to dest.
func saveUpload(dest string, src io.Reader) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	return out.Close()
}
