package session

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"audiobrief/jobapi"
)

type event struct {
	kind    string
	text    string
	percent float64
	errKind Kind
	sender  Sender
	op      Operation
	loading bool
}

// recorder is a Presenter that keeps every event
type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) add(e event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) RenderProgress(percent float64, status string) {
	r.add(event{kind: "progress", percent: percent, text: status})
}

func (r *recorder) RenderTranscript(text string) {
	r.add(event{kind: "transcript", text: text})
}

func (r *recorder) RenderSummary(text string) {
	r.add(event{kind: "summary", text: text})
}

func (r *recorder) RenderError(kind Kind, message string) {
	r.add(event{kind: "error", errKind: kind, text: message})
}

func (r *recorder) AppendChatMessage(text string, sender Sender) {
	r.add(event{kind: "chat", text: text, sender: sender})
}

func (r *recorder) SetLoading(op Operation, loading bool) {
	r.add(event{kind: "loading", op: op, loading: loading})
}

func (r *recorder) ClearSections() {
	r.add(event{kind: "clear"})
}

func (r *recorder) all() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event(nil), r.events...)
}

func (r *recorder) of(kind string) []event {
	var out []event
	for _, e := range r.all() {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) progress() []float64 {
	var out []float64
	for _, e := range r.of("progress") {
		out = append(out, e.percent)
	}
	return out
}

// fakeConfirm records the prompts it was shown
type fakeConfirm struct {
	mu         sync.Mutex
	trim       bool
	background bool
	err        error
	asked      []string
}

func (f *fakeConfirm) ConfirmTrim(_ context.Context, _ jobapi.MediaFile, seconds int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, "trim")
	return f.trim, f.err
}

func (f *fakeConfirm) ConfirmBackground(context.Context, jobapi.MediaFile) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, "background")
	return f.background, f.err
}

func (f *fakeConfirm) prompts() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.asked, ",")
}

// fakeAPI scripts the remote service
type fakeAPI struct {
	mu sync.Mutex

	transcribe      func(ctx context.Context, file jobapi.MediaFile) (*jobapi.UploadResponse, error)
	transcribeLarge func(ctx context.Context, file jobapi.MediaFile, trim int) (*jobapi.UploadResponse, error)

	// statuses are returned in order; the last one repeats
	statuses    []statusReply
	statusCalls int

	summarize func(ctx context.Context, req jobapi.SummaryRequest) (*jobapi.SummaryResponse, error)
	customize func(ctx context.Context, req jobapi.SummaryRequest) (*jobapi.SummaryResponse, error)
	ask       func(ctx context.Context, req jobapi.AskRequest) (*jobapi.AskResponse, error)

	uploads     int
	trimSent    int
	summaryReqs []jobapi.SummaryRequest
	customReqs  []jobapi.SummaryRequest
	askReqs     []jobapi.AskRequest
}

type statusReply struct {
	status *jobapi.JobStatus
	err    error
}

func (f *fakeAPI) Transcribe(ctx context.Context, file jobapi.MediaFile) (*jobapi.UploadResponse, error) {
	f.mu.Lock()
	f.uploads++
	fn := f.transcribe
	f.mu.Unlock()
	return fn(ctx, file)
}

func (f *fakeAPI) TranscribeLarge(ctx context.Context, file jobapi.MediaFile, trim int) (*jobapi.UploadResponse, error) {
	f.mu.Lock()
	f.uploads++
	f.trimSent = trim
	fn := f.transcribeLarge
	f.mu.Unlock()
	return fn(ctx, file, trim)
}

func (f *fakeAPI) JobStatus(ctx context.Context, jobID string) (*jobapi.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.statusCalls
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	f.statusCalls++
	r := f.statuses[i]
	if r.status != nil {
		st := *r.status
		st.JobID = jobID
		return &st, r.err
	}
	return nil, r.err
}

func (f *fakeAPI) Summarize(ctx context.Context, req jobapi.SummaryRequest) (*jobapi.SummaryResponse, error) {
	f.mu.Lock()
	f.summaryReqs = append(f.summaryReqs, req)
	fn := f.summarize
	f.mu.Unlock()
	return fn(ctx, req)
}

func (f *fakeAPI) CustomizeSummary(ctx context.Context, req jobapi.SummaryRequest) (*jobapi.SummaryResponse, error) {
	f.mu.Lock()
	f.customReqs = append(f.customReqs, req)
	fn := f.customize
	f.mu.Unlock()
	return fn(ctx, req)
}

func (f *fakeAPI) Ask(ctx context.Context, req jobapi.AskRequest) (*jobapi.AskResponse, error) {
	f.mu.Lock()
	f.askReqs = append(f.askReqs, req)
	fn := f.ask
	f.mu.Unlock()
	return fn(ctx, req)
}

func (f *fakeAPI) calls() (uploads, statuses int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads, f.statusCalls
}

func pending() statusReply {
	return statusReply{status: &jobapi.JobStatus{Status: jobapi.StatusProcessing, HTTPStatus: 200}}
}

func completed(text string) statusReply {
	return statusReply{status: &jobapi.JobStatus{Status: jobapi.StatusCompleted, Transcript: text, TranscriptionID: "9", HTTPStatus: 200}}
}

func failed(msg string) statusReply {
	return statusReply{status: &jobapi.JobStatus{Status: jobapi.StatusFailed, Error: msg, HTTPStatus: 500}}
}

func transportError() statusReply {
	return statusReply{err: io.ErrUnexpectedEOF}
}

func transcriptReply(text string) func(context.Context, jobapi.MediaFile) (*jobapi.UploadResponse, error) {
	return func(context.Context, jobapi.MediaFile) (*jobapi.UploadResponse, error) {
		return &jobapi.UploadResponse{Transcript: &text, TranscriptionID: "1"}, nil
	}
}

func jobReply(id string) func(context.Context, jobapi.MediaFile, int) (*jobapi.UploadResponse, error) {
	return func(context.Context, jobapi.MediaFile, int) (*jobapi.UploadResponse, error) {
		return &jobapi.UploadResponse{JobID: id, Status: "processing"}, nil
	}
}

func audioFile(name string, size int64) *jobapi.MediaFile {
	f := jobapi.FileFromBytes(name, jobapi.TypeForName(name), []byte("audio"))
	f.Size = size
	return &f
}

func testConfig() Config {
	return Config{
		TranscribeTimeout: time.Second,
		SubmitTimeout:     time.Second,
		RequestTimeout:    time.Second,
		TrimSeconds:       1800,
		ProgressInterval:  time.Millisecond,
		Poller: PollerConfig{
			Interval:       5 * time.Millisecond,
			AbandonAfter:   time.Second,
			DisplayDelay:   time.Millisecond,
			RequestTimeout: time.Second,
		},
	}
}

// eventually polls cond until it holds or the deadline passes
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}
