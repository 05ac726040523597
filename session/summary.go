package session

import (
	"context"
	"errors"
	"time"

	"audiobrief/jobapi"

	"github.com/rs/zerolog"
)

// SummaryAPI is the part of the remote service that produces summaries
type SummaryAPI interface {
	Summarize(ctx context.Context, req jobapi.SummaryRequest) (*jobapi.SummaryResponse, error)
	CustomizeSummary(ctx context.Context, req jobapi.SummaryRequest) (*jobapi.SummaryResponse, error)
}

// requester runs one request-response operation against the session
type requester struct {
	sess      *Session
	presenter Presenter
	timeout   time.Duration
	log       zerolog.Logger
}

// call is one API round trip; it receives the transcript and its server id
type call func(ctx context.Context, transcript string, id jobapi.RecordID) (string, error)

// run guards, claims the session, performs fn and releases the session.
// Guards reject silently: nothing is rendered and nothing is queued.
func (r *requester) run(ctx context.Context, op Operation, fallback string, fn call) (string, token, error) {
	transcript, id := r.sess.document()
	if transcript == "" {
		return "", 0, validationError(op, ErrNoTranscript, "Transcribe an audio file first")
	}

	tok, err := r.sess.begin(op)
	if err != nil {
		return "", 0, validationError(op, err, "Please wait for the current operation to finish")
	}

	r.presenter.SetLoading(op, true)

	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	out, err := fn(reqCtx, transcript, id)
	timedOut := errors.Is(reqCtx.Err(), context.DeadlineExceeded)
	cancel()

	r.presenter.SetLoading(op, false)

	if err != nil {
		e := classify(op, err, timedOut, r.timeout, fallback)
		r.log.Warn().Err(err).Str("op", op.String()).Str("kind", e.Kind.String()).Msg("request failed")
		if r.sess.release(tok) && !e.Kind.Silent() {
			r.presenter.RenderError(e.Kind, e.Message)
		}
		return "", tok, e
	}

	r.log.Debug().Str("op", op.String()).Int("chars", len(out)).Msg("request finished")
	return out, tok, nil
}

// SummaryController produces default, regenerated and customized summaries
type SummaryController struct {
	api SummaryAPI
	requester
}

// NewSummaryController creates a summary controller bound to sess
func NewSummaryController(api SummaryAPI, sess *Session, presenter Presenter, timeout time.Duration, log zerolog.Logger) *SummaryController {
	if timeout <= 0 {
		timeout = DefaultConfig().RequestTimeout
	}
	return &SummaryController{
		api: api,
		requester: requester{
			sess:      sess,
			presenter: presenter,
			timeout:   timeout,
			log:       log.With().Str("component", "summary").Logger(),
		},
	}
}

// Summarize requests a summary with server defaults
func (c *SummaryController) Summarize(ctx context.Context) error {
	return c.summarize(ctx, OpSummarize, "Failed to summarize transcript", nil, c.api.Summarize)
}

// Regenerate requests a fresh summary using settings
func (c *SummaryController) Regenerate(ctx context.Context, settings Settings) error {
	s := settings.Normalize()
	return c.summarize(ctx, OpRegenerate, "Failed to regenerate summary", &s, c.api.Summarize)
}

// Customize requests a summary with settings from the customize endpoint.
// On success the settings become the session's applied settings; on failure
// the previous summary and applied settings are kept.
func (c *SummaryController) Customize(ctx context.Context, settings Settings) error {
	s := settings.Normalize()
	return c.summarize(ctx, OpCustomize, "Failed to customize summary", &s, c.api.CustomizeSummary)
}

func (c *SummaryController) summarize(ctx context.Context, op Operation, fallback string, settings *Settings,
	endpoint func(context.Context, jobapi.SummaryRequest) (*jobapi.SummaryResponse, error)) error {

	summary, tok, err := c.run(ctx, op, fallback, func(ctx context.Context, transcript string, id jobapi.RecordID) (string, error) {
		req := jobapi.SummaryRequest{Transcript: transcript, TranscriptionID: id}
		if settings != nil {
			req.WordCount = settings.WordCount
			req.Style = settings.Style
		}
		resp, err := endpoint(ctx, req)
		if err != nil {
			return "", err
		}
		return resp.Summary, nil
	})
	if err != nil {
		return err
	}

	var applied *Settings
	if op == OpCustomize {
		applied = settings
	}
	if c.sess.summarized(tok, summary, applied) {
		c.presenter.RenderSummary(summary)
	}
	return nil
}
