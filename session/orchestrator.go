package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"audiobrief/jobapi"

	"github.com/rs/zerolog"
)

// TranscriptionAPI is the part of the remote service used for uploads
type TranscriptionAPI interface {
	StatusFetcher
	Transcribe(ctx context.Context, file jobapi.MediaFile) (*jobapi.UploadResponse, error)
	TranscribeLarge(ctx context.Context, file jobapi.MediaFile, trimSeconds int) (*jobapi.UploadResponse, error)
}

// Config controls timeouts and pacing for session operations
type Config struct {
	// TranscribeTimeout bounds a direct transcription round trip
	TranscribeTimeout time.Duration

	// SubmitTimeout bounds the hand-off of a large file to a background job
	SubmitTimeout time.Duration

	// RequestTimeout bounds summary and question requests
	RequestTimeout time.Duration

	// TrimSeconds is the processing cap offered for very large files
	TrimSeconds int

	// ProgressInterval is the time between simulated progress steps
	ProgressInterval time.Duration

	Poller PollerConfig
}

// DefaultConfig returns production timeouts
func DefaultConfig() Config {
	return Config{
		TranscribeTimeout: 300 * time.Second,
		SubmitTimeout:     60 * time.Second,
		RequestTimeout:    120 * time.Second,
		TrimSeconds:       1800,
		ProgressInterval:  DefaultProgressInterval,
		Poller:            DefaultPollerConfig(),
	}
}

const transcribeFallback = "Failed to transcribe audio"

// Orchestrator validates, confirms, and submits uploads, and hands large
// files to a JobPoller.
type Orchestrator struct {
	api       TranscriptionAPI
	sess      *Session
	presenter Presenter
	confirm   Confirmer
	cfg       Config
	log       zerolog.Logger

	mu           sync.Mutex
	uploadCancel context.CancelFunc
	uploadTok    token
	progress     *ProgressSimulator
	poller       *JobPoller
}

// NewOrchestrator wires an orchestrator to a session
func NewOrchestrator(api TranscriptionAPI, sess *Session, presenter Presenter, confirm Confirmer, cfg Config, log zerolog.Logger) *Orchestrator {
	def := DefaultConfig()
	if cfg.TranscribeTimeout <= 0 {
		cfg.TranscribeTimeout = def.TranscribeTimeout
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = def.SubmitTimeout
	}
	if cfg.TrimSeconds <= 0 {
		cfg.TrimSeconds = def.TrimSeconds
	}

	return &Orchestrator{
		api:       api,
		sess:      sess,
		presenter: presenter,
		confirm:   confirm,
		cfg:       cfg,
		log:       log.With().Str("component", "orchestrator").Logger(),
	}
}

// Session returns the session this orchestrator drives
func (o *Orchestrator) Session() *Session {
	return o.sess
}

// Submit uploads file and drives it to a transcript or a background job.
// A nil return means the transcript was stored or a job is being polled.
// ctx governs the whole operation, including background polling.
func (o *Orchestrator) Submit(ctx context.Context, file *jobapi.MediaFile) error {
	plan, err := o.prepare(ctx, file, false)
	if err != nil {
		return err
	}
	return o.start(ctx, file, plan)
}

// Supersede submits file in place of whatever upload is in flight. The old
// upload keeps running until file has passed validation and every prompt.
func (o *Orchestrator) Supersede(ctx context.Context, file *jobapi.MediaFile) error {
	plan, err := o.prepare(ctx, file, true)
	if err != nil {
		return err
	}
	o.Cancel()
	return o.start(ctx, file, plan)
}

// uploadPlan is what validation and the confirmations decided
type uploadPlan struct {
	class SizeClass
	trim  int
}

// prepare validates file and asks the confirmations without touching the
// session. replacing allows a busy session when the busy operation is an
// upload that the caller is about to cancel.
func (o *Orchestrator) prepare(ctx context.Context, file *jobapi.MediaFile, replacing bool) (uploadPlan, error) {
	if o.sess.Busy() && (!replacing || o.sess.Snapshot().Operation != OpUpload) {
		return uploadPlan{}, o.reject(validationError(OpUpload, ErrBusy, "Please wait for the current operation to finish"))
	}
	if file == nil {
		return uploadPlan{}, o.reject(validationError(OpUpload, ErrNoFile, "Please select an audio file"))
	}
	if !AcceptedFile(*file) {
		return uploadPlan{}, o.reject(validationError(OpUpload, ErrUnsupported, "Please upload a valid audio file ("+SupportedFormats+")"))
	}

	class := Classify(file.Size)
	log := o.log.With().Str("file", file.Name).Int64("size", file.Size).Str("class", class.String()).Logger()

	trim := 0
	if class == VeryLarge {
		ok, err := o.confirm.ConfirmTrim(ctx, *file, o.cfg.TrimSeconds)
		if err != nil {
			log.Debug().Err(err).Msg("trim confirmation aborted")
			return uploadPlan{}, &Error{Kind: UserDeclined, Op: OpUpload, Err: ErrDeclined}
		}
		if ok {
			trim = o.cfg.TrimSeconds
		}
	}
	if class.IsLarge() {
		ok, err := o.confirm.ConfirmBackground(ctx, *file)
		if err != nil || !ok {
			log.Debug().Err(err).Msg("background processing declined")
			return uploadPlan{}, &Error{Kind: UserDeclined, Op: OpUpload, Err: ErrDeclined}
		}
	}
	return uploadPlan{class: class, trim: trim}, nil
}

// start claims the session and sends the upload
func (o *Orchestrator) start(ctx context.Context, file *jobapi.MediaFile, plan uploadPlan) error {
	class, trim := plan.class, plan.trim
	log := o.log.With().Str("file", file.Name).Int64("size", file.Size).Str("class", class.String()).Logger()

	o.cancelPoller()

	timeout := o.cfg.TranscribeTimeout
	if class.IsLarge() {
		timeout = o.cfg.SubmitTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Each upload has its own simulator; Cancel stops whichever is current.
	progress := NewProgressSimulator(o.cfg.ProgressInterval, o.presenter.RenderProgress)

	// Claiming the session and publishing the cancel func happen together so
	// that Cancel either sees both or neither.
	o.mu.Lock()
	tok, err := o.sess.begin(OpUpload)
	if err == nil {
		o.uploadCancel = cancel
		o.uploadTok = tok
		o.progress = progress
	}
	o.mu.Unlock()
	if err != nil {
		return o.reject(validationError(OpUpload, err, "Please wait for the current operation to finish"))
	}

	o.presenter.ClearSections()
	progress.Start(ctx, PacingFor(class))

	log.Info().Int("trim_seconds", trim).Msg("upload started")

	var resp *jobapi.UploadResponse
	if class.IsLarge() {
		resp, err = o.api.TranscribeLarge(reqCtx, *file, trim)
	} else {
		resp, err = o.api.Transcribe(reqCtx, *file)
	}
	timedOut := errors.Is(reqCtx.Err(), context.DeadlineExceeded)
	cancel()

	o.mu.Lock()
	if o.uploadTok == tok {
		o.uploadCancel = nil
	}
	o.mu.Unlock()

	if err != nil {
		progress.Stop()
		e := classify(OpUpload, err, timedOut, timeout, transcribeFallback)
		log.Warn().Err(err).Str("kind", e.Kind.String()).Msg("upload failed")
		o.fail(tok, e)
		return e
	}

	switch {
	case resp.HasJob():
		if !o.sess.setJob(tok, resp.JobID) {
			return &Error{Kind: Cancelled, Op: OpUpload, Err: ErrCancelled}
		}
		log.Info().Str("job_id", resp.JobID).Msg("handed off to background job")
		progress.Complete("Upload complete. Processing in background...")
		o.startPoller(ctx, tok, resp.JobID)
		return nil

	case resp.HasTranscript():
		if !o.sess.current(tok) {
			progress.Stop()
			return &Error{Kind: Cancelled, Op: OpUpload, Err: ErrCancelled}
		}
		progress.Complete("Transcription complete!")
		if o.sess.complete(tok, *resp.Transcript, resp.TranscriptionID) {
			log.Info().Int("chars", len(*resp.Transcript)).Msg("transcript received")
			o.presenter.RenderTranscript(*resp.Transcript)
		}
		return nil

	default:
		progress.Stop()
		e := &Error{
			Kind:    InvalidResponse,
			Op:      OpUpload,
			Message: "Received an invalid response from the server",
			Raw:     resp.Raw,
		}
		if resp.Error != "" {
			e.Kind = Server
			e.Message = resp.Error
		}
		log.Warn().Str("body", resp.Raw).Msg("response had neither transcript nor job id")
		o.fail(tok, e)
		return e
	}
}

// Cancel aborts the in-flight upload request and any active poller.
// It reports whether anything was cancelled.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	cancel := o.uploadCancel
	o.uploadCancel = nil
	progress := o.progress
	active := o.sess.abort(OpUpload)
	o.mu.Unlock()

	if cancel != nil {
		cancel()
		active = true
	}
	if o.cancelPoller() {
		active = true
	}
	if progress != nil {
		progress.Stop()
	}
	if active {
		o.log.Info().Msg("upload cancelled")
	}
	return active
}

// Wait blocks until the active background job, if any, reaches a terminal
// state and returns its error.
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	p := o.poller
	o.mu.Unlock()

	if p == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.Done():
	}

	if r := p.Result(); r.Err != nil {
		return r.Err
	}
	return nil
}

// ActiveJob returns the poller for the current background job, or nil
func (o *Orchestrator) ActiveJob() *JobPoller {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.poller
}

func (o *Orchestrator) startPoller(ctx context.Context, tok token, jobID string) {
	p := StartPoller(ctx, o.api, jobID, o.cfg.Poller, PollHooks{
		OnStatus: func(msg string) {
			if o.sess.current(tok) {
				o.presenter.RenderProgress(100, msg)
			}
		},
		OnDone: func(r PollResult) {
			o.finishJob(tok, r)
		},
	}, o.log)

	o.mu.Lock()
	if o.sess.superseded(tok) {
		o.mu.Unlock()
		p.Cancel()
		return
	}
	o.poller = p
	o.mu.Unlock()
}

// finishJob applies a poller's terminal result. It runs on the polling
// goroutine and so must never cancel the poller.
func (o *Orchestrator) finishJob(tok token, r PollResult) {
	switch r.State {
	case PollCompleted:
		if o.sess.complete(tok, r.Transcript, r.TranscriptionID) {
			o.presenter.RenderTranscript(r.Transcript)
		}
	case PollFailed, PollAbandoned, PollCancelled:
		o.fail(tok, r.Err)
	}
}

// cancelPoller stops an active poller and reports whether one was pending
func (o *Orchestrator) cancelPoller() bool {
	o.mu.Lock()
	p := o.poller
	o.poller = nil
	o.mu.Unlock()

	if p == nil {
		return false
	}
	pending := p.State() == PollPending
	p.Cancel()
	return pending
}

// fail releases the session and reports e, unless the operation was superseded
func (o *Orchestrator) fail(tok token, e *Error) {
	if !o.sess.release(tok) {
		return
	}
	if !e.Kind.Silent() {
		o.presenter.RenderError(e.Kind, e.Message)
	}
}

func (o *Orchestrator) reject(e *Error) error {
	o.presenter.RenderError(e.Kind, e.Message)
	return e
}
