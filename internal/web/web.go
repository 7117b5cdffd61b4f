package web

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/sheetmd/internal/config"
	"github.com/local/sheetmd/internal/convert"
	"github.com/local/sheetmd/internal/filetype"
	"github.com/local/sheetmd/internal/metrics"
	"github.com/local/sheetmd/internal/storage"
	"github.com/local/sheetmd/internal/store"
)

// StatusStore is the subset of the redis store the API needs.
type StatusStore interface {
	Set(ctx context.Context, jobID string, st store.Status) error
	Get(ctx context.Context, jobID string) (store.Status, bool, error)
}

// Fetcher pulls s3:// inputs to local disk. Nil when S3 is not configured.
type Fetcher interface {
	FetchToDir(ctx context.Context, s3Path, dir string) (string, error)
}

// Uploader pushes finished results to object storage. Nil disables upload.
type Uploader interface {
	UploadResults(ctx context.Context, localPaths []string, keyPrefix string) ([]string, error)
}

// Server exposes the conversion pipeline over HTTP. Each job runs in its own
// goroutine; the coordinator itself stays sequential per job.
type Server struct {
	coord    *convert.Coordinator
	status   StatusStore
	fetcher  Fetcher
	uploader Uploader
	cfg      config.ServerConfig
}

func New(coord *convert.Coordinator, status StatusStore, fetcher Fetcher, cfg config.ServerConfig) *Server {
	return &Server{coord: coord, status: status, fetcher: fetcher, cfg: cfg}
}

// WithUploader enables pushing finished results to object storage under
// results/<job_id>/.
func (s *Server) WithUploader(u Uploader) *Server {
	s.uploader = u
	return s
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/api/upload", s.handleUpload)
	mux.HandleFunc("/api/convert", s.handleConvert)
	mux.HandleFunc("/api/progress/", s.handleProgress)
	mux.HandleFunc("/api/outputs/", s.handleOutputs)
	mux.HandleFunc("/api/download/", s.handleDownload)
}

type convertReq struct {
	FilePath string `json:"file_path"`
}

type convertResp struct {
	Status  string `json:"status"`
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

type outputFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type outputsResp struct {
	Files []outputFile `json:"files"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// handleUpload accepts a multipart spreadsheet upload and starts a conversion
// job for it.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	maxBytes := int64(s.cfg.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		http.Error(w, "invalid multipart form or file too large", http.StatusBadRequest)
		return
	}

	file, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if filetype.DetectByExtension(hdr.Filename) == filetype.KindUnsupported {
		http.Error(w, "unsupported file type: only .xlsx, .xls and .csv are accepted", http.StatusBadRequest)
		return
	}

	jobID := uuid.NewString()
	jobDir := filepath.Join(s.cfg.UploadDir, jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		http.Error(w, "upload failed", http.StatusInternalServerError)
		return
	}

	local := filepath.Join(jobDir, filepath.Base(hdr.Filename))
	dst, err := os.Create(local)
	if err != nil {
		http.Error(w, "upload failed", http.StatusInternalServerError)
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		http.Error(w, "upload failed", http.StatusInternalServerError)
		return
	}
	dst.Close()

	s.startJob(jobID, local)
	writeJSON(w, http.StatusAccepted, convertResp{Status: "queued", JobID: jobID, Message: "conversion started"})
}

// handleConvert starts a conversion job for a path already reachable by the
// server: a local file, a local directory, or an s3:// object.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	var req convertReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.FilePath == "" {
		http.Error(w, "missing file_path", http.StatusBadRequest)
		return
	}

	jobID := uuid.NewString()
	input := req.FilePath

	if storage.IsS3Path(input) {
		if s.fetcher == nil {
			http.Error(w, "s3 input not configured", http.StatusBadRequest)
			return
		}
		jobDir := filepath.Join(s.cfg.UploadDir, jobID)
		if err := os.MkdirAll(jobDir, 0o755); err != nil {
			http.Error(w, "fetch failed", http.StatusInternalServerError)
			return
		}
		local, err := s.fetcher.FetchToDir(r.Context(), input, jobDir)
		if err != nil {
			log.Error().Err(err).Str("path", input).Msg("S3 fetch failed")
			http.Error(w, "fetch failed: "+err.Error(), http.StatusBadGateway)
			return
		}
		input = local
	} else if _, err := os.Stat(input); err != nil {
		http.Error(w, "file_path not found", http.StatusBadRequest)
		return
	}

	s.startJob(jobID, input)
	writeJSON(w, http.StatusAccepted, convertResp{Status: "queued", JobID: jobID, Message: "conversion started"})
}

// startJob records the queued status and runs the conversion in the
// background. Job output lands under <output_dir>/<job_id>.
func (s *Server) startJob(jobID, inputPath string) {
	start := time.Now()
	_ = s.status.Set(context.Background(), jobID, store.Status{
		Status:   store.StateQueued,
		Message:  "queued",
		Start:    &start,
		Metadata: map[string]interface{}{"input": filepath.Base(inputPath)},
	})
	log.Info().Str("job_id", jobID).Str("input", inputPath).Msg("job created")

	go func() {
		ctx := context.Background()
		_ = s.status.Set(ctx, jobID, store.Status{
			Status: store.StateProcessing, Progress: 10, Message: "converting", Start: &start,
		})

		outDir := filepath.Join(s.cfg.OutputDir, jobID)
		res := s.coord.Convert(ctx, inputPath, outDir)

		if s.uploader != nil && len(res.Created) > 0 {
			if _, err := s.uploader.UploadResults(ctx, res.Created, "results/"+jobID); err != nil {
				log.Warn().Err(err).Str("job_id", jobID).Msg("result upload failed")
			}
		}

		end := time.Now()
		st := store.Status{
			Status:   store.StateCompleted,
			Progress: 100,
			Message:  fmt.Sprintf("%d files created", len(res.Created)),
			Start:    &start,
			End:      &end,
		}
		if len(res.Errors) > 0 {
			errs := make([]interface{}, 0, len(res.Errors))
			for _, e := range res.Errors {
				errs = append(errs, map[string]interface{}{"file": e.File, "error": e.Err})
			}
			st.Metadata = map[string]interface{}{"errors": errs}
			if len(res.Created) == 0 {
				st.Status = store.StateFailed
				st.Message = "conversion failed"
			} else {
				st.Message = fmt.Sprintf("%d files created, %d errors", len(res.Created), len(res.Errors))
			}
		}
		_ = s.status.Set(ctx, jobID, st)
		log.Info().Str("job_id", jobID).Int("files", len(res.Created)).Int("errors", len(res.Errors)).Msg("job finished")
	}()
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/api/progress/")
	if jobID == "" {
		http.Error(w, "missing job id", http.StatusBadRequest)
		return
	}
	st, ok, err := s.status.Get(r.Context(), jobID)
	if err != nil {
		http.Error(w, "status lookup failed", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleOutputs lists the markdown files a finished job produced.
func (s *Server) handleOutputs(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/api/outputs/")
	if jobID == "" || strings.Contains(jobID, "/") || strings.Contains(jobID, "..") {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}

	dir := filepath.Join(s.cfg.OutputDir, jobID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		http.Error(w, "job output not found", http.StatusNotFound)
		return
	}

	resp := outputsResp{Files: []outputFile{}}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		resp.Files = append(resp.Files, outputFile{Name: e.Name(), Size: info.Size()})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDownload streams a zip archive of a job's markdown files.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/api/download/")
	if jobID == "" || strings.Contains(jobID, "/") || strings.Contains(jobID, "..") {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}

	dir := filepath.Join(s.cfg.OutputDir, jobID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		http.Error(w, "job output not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", jobID+".zip"))

	zw := zip.NewWriter(w)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		f, err := os.Open(filepath.Join(dir, e.Name()))
		if err != nil {
			log.Warn().Err(err).Str("file", e.Name()).Msg("skipping unreadable output file")
			continue
		}
		entry, err := zw.Create(e.Name())
		if err != nil {
			f.Close()
			break
		}
		_, _ = io.Copy(entry, f)
		f.Close()
	}
	if err := zw.Close(); err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("zip stream close failed")
	}
}
