// Package stubserver is an in-memory stand-in for the remote transcription
// service. It speaks the same HTTP API as the real backend so the client can
// be exercised end to end without audio models or API keys.
package stubserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"audiobrief/jobapi"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MaxUploadBytes matches the backend's 1 GB request limit
const MaxUploadBytes = 1 << 30

// DefaultProcessingTime is used when Options.ProcessingTime is unset
const DefaultProcessingTime = 15 * time.Second

// Options tunes the simulated backend
type Options struct {
	// ProcessingTime is how long a background job takes to finish
	ProcessingTime time.Duration

	// FailMarker makes any upload whose filename contains it fail
	FailMarker string

	// Now replaces the wall clock in tests
	Now func() time.Time

	Log zerolog.Logger
}

type job struct {
	ID          string     `json:"job_id"`
	Filename    string     `json:"filename"`
	FileSize    int64      `json:"file_size"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Transcript  string     `json:"transcript,omitempty"`
	RecordID    int        `json:"transcription_id,omitempty"`
	Error       string     `json:"error,omitempty"`
	ErrorType   string     `json:"error_type,omitempty"`
}

type transcription struct {
	ID         int       `json:"id"`
	Filename   string    `json:"filename"`
	FileSize   int64     `json:"file_size"`
	Transcript string    `json:"transcript"`
	CreatedAt  time.Time `json:"created_at"`
}

type summaryRecord struct {
	Summary   string `json:"summary"`
	WordCount int    `json:"word_count"`
	Style     string `json:"style"`
}

type questionRecord struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Server holds jobs and stored transcriptions in memory
type Server struct {
	opts Options
	log  zerolog.Logger

	mu             sync.Mutex
	jobs           map[string]*job
	transcriptions []*transcription
	summaries      map[int][]summaryRecord
	questions      map[int][]questionRecord
}

// New creates a stub backend
func New(opts Options) *Server {
	if opts.ProcessingTime <= 0 {
		opts.ProcessingTime = DefaultProcessingTime
	}
	if opts.FailMarker == "" {
		opts.FailMarker = "fail"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Server{
		opts:      opts,
		log:       opts.Log.With().Str("component", "stubserver").Logger(),
		jobs:      make(map[string]*job),
		summaries: make(map[int][]summaryRecord),
		questions: make(map[int][]questionRecord),
	}
}

// Handler returns the routed HTTP handler
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		api.Post("/transcribe", s.transcribe)
		api.Post("/transcribe-large", s.transcribeLarge)
		api.Get("/job-status/{id}", s.jobStatus)
		api.Post("/summarize", s.summarize)
		api.Post("/customize-summary", s.summarize)
		api.Post("/ask", s.ask)
	})

	r.Route("/admin", func(admin chi.Router) {
		admin.Get("/jobs", s.listJobs)
		admin.Get("/transcriptions", s.listTranscriptions)
		admin.Get("/transcription/{id}", s.transcriptionDetails)
	})

	return r
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Dur("processing_time", s.opts.ProcessingTime).Msg("stub server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

// upload reads the multipart file field and reports its name and size
func (s *Server) upload(w http.ResponseWriter, r *http.Request) (string, int64, map[string]string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "The file is too large to upload. Maximum allowed size is 1GB.")
			return "", 0, nil, false
		}
		writeError(w, http.StatusBadRequest, "No file part")
		return "", 0, nil, false
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file part")
		return "", 0, nil, false
	}
	defer file.Close()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "No selected file")
		return "", 0, nil, false
	}

	size, err := io.Copy(io.Discard, file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read upload")
		return "", 0, nil, false
	}

	fields := make(map[string]string)
	for k, v := range r.MultipartForm.Value {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return header.Filename, size, fields, true
}

func (s *Server) transcribe(w http.ResponseWriter, r *http.Request) {
	name, size, _, ok := s.upload(w, r)
	if !ok {
		return
	}

	if s.shouldFail(name) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":      "Could not transcribe " + name,
			"error_type": "TranscriptionError",
		})
		return
	}

	text := transcriptFor(name, size, 0)
	id := s.store(name, size, text)
	s.log.Info().Str("file", name).Int64("size", size).Int("transcription_id", id).Msg("transcribed")

	writeJSON(w, http.StatusOK, map[string]any{
		"transcript":       text,
		"transcription_id": id,
	})
}

func (s *Server) transcribeLarge(w http.ResponseWriter, r *http.Request) {
	name, size, fields, ok := s.upload(w, r)
	if !ok {
		return
	}

	trim, _ := strconv.Atoi(fields["trim_duration"])
	j := &job{
		ID:        uuid.NewString(),
		Filename:  name,
		FileSize:  size,
		Status:    jobapi.StatusQueued,
		CreatedAt: s.opts.Now(),
	}
	if trim > 0 {
		j.Transcript = transcriptFor(name, size, trim)
	}

	s.mu.Lock()
	s.jobs[j.ID] = j
	s.mu.Unlock()

	s.log.Info().Str("job_id", j.ID).Str("file", name).Int("trim_seconds", trim).Msg("job queued")

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  jobapi.StatusProcessing,
		"job_id":  j.ID,
		"message": "Your file is being processed. Please check status using the /api/job-status/{job_id} endpoint.",
	})
}

// advance moves a job along its timeline. Caller holds mu.
func (s *Server) advance(j *job) {
	if j.Status == jobapi.StatusCompleted || j.Status == jobapi.StatusFailed {
		return
	}

	now := s.opts.Now()
	elapsed := now.Sub(j.CreatedAt)
	switch {
	case elapsed < s.opts.ProcessingTime/4:
		j.Status = jobapi.StatusQueued
	case elapsed < s.opts.ProcessingTime:
		j.Status = jobapi.StatusProcessing
	case s.shouldFail(j.Filename):
		j.Status = jobapi.StatusFailed
		j.Error = "Audio decoding failed for " + j.Filename
		j.ErrorType = "DecodeError"
		j.CompletedAt = &now
	default:
		if j.Transcript == "" {
			j.Transcript = transcriptFor(j.Filename, j.FileSize, 0)
		}
		j.RecordID = s.storeLocked(j.Filename, j.FileSize, j.Transcript)
		j.Status = jobapi.StatusCompleted
		j.CompletedAt = &now
	}
}

func (s *Server) jobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	s.mu.Lock()
	j, ok := s.jobs[jobID]
	if ok {
		s.advance(j)
	}
	var snapshot job
	if ok {
		snapshot = *j
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error":  "Job not found",
			"job_id": jobID,
		})
		return
	}

	switch snapshot.Status {
	case jobapi.StatusCompleted:
		writeJSON(w, http.StatusOK, map[string]any{
			"job_id":           jobID,
			"status":           jobapi.StatusCompleted,
			"transcription_id": snapshot.RecordID,
			"transcript":       snapshot.Transcript,
			"message":          "Transcription complete",
		})
	case jobapi.StatusFailed:
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"job_id":     jobID,
			"status":     jobapi.StatusFailed,
			"error":      snapshot.Error,
			"error_type": snapshot.ErrorType,
			"message":    "Transcription failed",
		})
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"job_id":       jobID,
			"status":       snapshot.Status,
			"filename":     snapshot.Filename,
			"file_size":    snapshot.FileSize,
			"elapsed_time": s.opts.Now().Sub(snapshot.CreatedAt).Seconds(),
			"message":      "Your file is still being processed. Please check back later.",
		})
	}
}

func (s *Server) summarize(w http.ResponseWriter, r *http.Request) {
	var req jobapi.SummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Transcript == "" {
		writeError(w, http.StatusBadRequest, "No transcript provided")
		return
	}

	words, style := req.WordCount, req.Style
	if words <= 0 {
		words = 100
	}
	if style == "" {
		style = "overview"
	}

	summary := summarize(req.Transcript, words, style)
	if id, err := strconv.Atoi(req.TranscriptionID.Value()); err == nil {
		s.mu.Lock()
		s.summaries[id] = append(s.summaries[id], summaryRecord{summary, words, style})
		s.mu.Unlock()
	}

	writeJSON(w, http.StatusOK, jobapi.SummaryResponse{Summary: summary})
}

func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	var req jobapi.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Transcript == "" || req.Question == "" {
		writeError(w, http.StatusBadRequest, "Transcript or question missing")
		return
	}

	answer := answerFor(req.Transcript, req.Question)
	if id, err := strconv.Atoi(req.TranscriptionID.Value()); err == nil {
		s.mu.Lock()
		s.questions[id] = append(s.questions[id], questionRecord{req.Question, answer})
		s.mu.Unlock()
	}

	writeJSON(w, http.StatusOK, jobapi.AskResponse{Answer: answer})
}

func (s *Server) listJobs(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := make(map[string]job, len(s.jobs))
	for id, j := range s.jobs {
		s.advance(j)
		cp := *j
		if cp.Transcript != "" {
			cp.Transcript = fmt.Sprintf("[Transcript available, length: %d chars]", len(cp.Transcript))
		}
		out[id] = cp
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

func (s *Server) listTranscriptions(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}

	s.mu.Lock()
	out := make([]transcription, 0, limit)
	for i := len(s.transcriptions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *s.transcriptions[i])
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"transcriptions": out})
}

func (s *Server) transcriptionDetails(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Transcription not found")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 1 || id > len(s.transcriptions) {
		writeError(w, http.StatusNotFound, "Transcription not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transcription": s.transcriptions[id-1],
		"summaries":     append([]summaryRecord{}, s.summaries[id]...),
		"questions":     append([]questionRecord{}, s.questions[id]...),
	})
}

func (s *Server) store(name string, size int64, text string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeLocked(name, size, text)
}

func (s *Server) storeLocked(name string, size int64, text string) int {
	t := &transcription{
		ID:         len(s.transcriptions) + 1,
		Filename:   name,
		FileSize:   size,
		Transcript: text,
		CreatedAt:  s.opts.Now(),
	}
	s.transcriptions = append(s.transcriptions, t)
	return t.ID
}

func (s *Server) shouldFail(name string) bool {
	return strings.Contains(strings.ToLower(name), strings.ToLower(s.opts.FailMarker))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
