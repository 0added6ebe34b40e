package handlers

import (
	"context"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mverdani/primanota/internal/api/middleware"
	"github.com/mverdani/primanota/internal/archive"
	"github.com/mverdani/primanota/internal/dedup"
)

// maxImportSize bounds the uploaded CSV size.
const maxImportSize = 10 << 20

// FileImporter runs the import pipeline for uploaded CSV files.
type FileImporter interface {
	ImportStatement(ctx context.Context, filename string, content []byte) (*dedup.Report, error)
	ImportObligations(ctx context.Context, filename string, content []byte) (*dedup.Report, error)
}

// ImportsHandler handles CSV upload and archive download endpoints.
type ImportsHandler struct {
	importer FileImporter
	files    archive.Storage
	log      zerolog.Logger
}

// NewImportsHandler creates a new imports handler. files may be nil when
// no archive bucket is configured; downloads then answer 404.
func NewImportsHandler(importer FileImporter, files archive.Storage, log zerolog.Logger) *ImportsHandler {
	return &ImportsHandler{importer: importer, files: files, log: log}
}

// ImportStatement handles POST /api/estratti/import: a multipart upload
// of one bank-statement CSV. The response is the dedup report; importing
// the same file twice is safe and returns everything as skipped.
func (h *ImportsHandler) ImportStatement(w http.ResponseWriter, r *http.Request) {
	h.runImport(w, r, h.importer.ImportStatement)
}

// ImportObligations handles POST /api/scadenze/import: a multipart
// upload of one scadenzario CSV.
func (h *ImportsHandler) ImportObligations(w http.ResponseWriter, r *http.Request) {
	h.runImport(w, r, h.importer.ImportObligations)
}

// DownloadStatement handles GET /api/estratti/download?uri=gs://...: it
// returns the archived source file a movement's statement_uri points at.
func (h *ImportsHandler) DownloadStatement(w http.ResponseWriter, r *http.Request) {
	if h.files == nil {
		middleware.WriteError(w, http.StatusNotFound, "Statement archive is not configured")
		return
	}

	uri := r.URL.Query().Get("uri")
	if !strings.HasPrefix(uri, "gs://") {
		middleware.WriteError(w, http.StatusBadRequest, "uri must be a gs:// archive URI")
		return
	}

	content, err := h.files.Fetch(r.Context(), uri)
	if err != nil {
		h.log.Error().Err(err).Str("uri", uri).Msg("Failed to fetch archived statement")
		middleware.WriteError(w, http.StatusNotFound, "Archived statement not found")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(path.Base(uri)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (h *ImportsHandler) runImport(w http.ResponseWriter, r *http.Request, run func(context.Context, string, []byte) (*dedup.Report, error)) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxImportSize))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read uploaded file")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read uploaded file")
		return
	}

	filename := filepath.Base(header.Filename)
	report, err := run(ctx, filename, content)
	if err != nil {
		h.log.Error().Err(err).Str("filename", filename).Msg("Import failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Import failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, report)
}
