package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"audiobrief/jobapi"

	"github.com/rs/zerolog"
)

// PollState is the lifecycle state of a background job as seen by the client
type PollState int

const (
	PollPending PollState = iota
	PollCompleted
	PollFailed
	PollAbandoned
	PollCancelled
)

func (s PollState) String() string {
	switch s {
	case PollPending:
		return "pending"
	case PollCompleted:
		return "completed"
	case PollFailed:
		return "failed"
	case PollAbandoned:
		return "abandoned"
	case PollCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen
func (s PollState) Terminal() bool {
	return s != PollPending
}

// PollerConfig controls status polling
type PollerConfig struct {
	// Interval is the time between status queries
	Interval time.Duration

	// AbandonAfter bounds how long queries may fail continuously
	AbandonAfter time.Duration

	// DisplayDelay is the pause before a finished transcript is reported
	DisplayDelay time.Duration

	// RequestTimeout caps a single status query
	RequestTimeout time.Duration
}

// DefaultPollerConfig returns the production polling settings
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval:       5 * time.Second,
		AbandonAfter:   300 * time.Second,
		DisplayDelay:   time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// StatusFetcher queries the state of a background job
type StatusFetcher interface {
	JobStatus(ctx context.Context, jobID string) (*jobapi.JobStatus, error)
}

// PollResult is the outcome of a finished poller
type PollResult struct {
	State           PollState
	Transcript      string
	TranscriptionID jobapi.RecordID

	// Err is set for Failed, Abandoned and Cancelled results
	Err *Error
}

// PollHooks receive poller events. Both are called from the polling goroutine.
type PollHooks struct {
	// OnStatus receives a transient message after every pending or failed tick
	OnStatus func(message string)

	// OnDone is called once with the terminal result. It is not called after
	// Cancel, but it is called with a Cancelled result when ctx ends.
	OnDone func(PollResult)
}

// JobPoller tracks one background job until it reaches a terminal state
type JobPoller struct {
	api   StatusFetcher
	jobID string
	cfg   PollerConfig
	hooks PollHooks
	log   zerolog.Logger
	now   func() time.Time

	mu          sync.Mutex
	state       PollState
	failures    int
	startedAt   time.Time
	lastHealthy time.Time
	result      PollResult
	task        *Task
	done        chan struct{}
}

// StartPoller begins polling jobID. The first query is issued immediately.
func StartPoller(ctx context.Context, api StatusFetcher, jobID string, cfg PollerConfig, hooks PollHooks, log zerolog.Logger) *JobPoller {
	p := newPoller(api, jobID, cfg, hooks, log, time.Now)
	p.start(ctx)
	return p
}

func newPoller(api StatusFetcher, jobID string, cfg PollerConfig, hooks PollHooks, log zerolog.Logger, now func() time.Time) *JobPoller {
	def := DefaultPollerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.AbandonAfter <= 0 {
		cfg.AbandonAfter = def.AbandonAfter
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.DisplayDelay < 0 {
		cfg.DisplayDelay = 0
	}

	return &JobPoller{
		api:   api,
		jobID: jobID,
		cfg:   cfg,
		hooks: hooks,
		log:   log.With().Str("component", "poller").Str("job_id", jobID).Logger(),
		now:   now,
		done:  make(chan struct{}),
	}
}

func (p *JobPoller) start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startedAt = p.now()
	p.lastHealthy = p.startedAt
	p.task = Every(ctx, p.cfg.Interval, p.tick)
	p.log.Info().Dur("interval", p.cfg.Interval).Msg("polling started")

	go p.await(p.task)
}

// await reports a Cancelled result when polling stopped without reaching a
// terminal state, which only happens when the caller's context ended.
func (p *JobPoller) await(task *Task) {
	task.Wait()

	r := PollResult{State: PollCancelled, Err: cancelledError()}
	p.mu.Lock()
	ok := p.transitionLocked(r)
	p.mu.Unlock()
	if !ok {
		return
	}

	p.log.Info().Msg("polling stopped by context")
	if p.hooks.OnDone != nil {
		p.hooks.OnDone(r)
	}
}

func cancelledError() *Error {
	return &Error{Kind: Cancelled, Op: OpUpload, Message: "Cancelled", Err: ErrCancelled}
}

// JobID returns the job being tracked
func (p *JobPoller) JobID() string {
	return p.jobID
}

// State returns the current state
func (p *JobPoller) State() PollState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Failures returns how many status queries have failed
func (p *JobPoller) Failures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures
}

// Done is closed when the poller reaches a terminal state
func (p *JobPoller) Done() <-chan struct{} {
	return p.done
}

// Result returns the terminal result. It is only meaningful after Done.
func (p *JobPoller) Result() PollResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// Cancel stops polling and waits for an in-flight tick to finish.
// A cancelled poller never calls OnDone afterwards.
func (p *JobPoller) Cancel() {
	p.mu.Lock()
	task := p.task
	cancelled := p.transitionLocked(PollResult{State: PollCancelled, Err: cancelledError()})
	p.mu.Unlock()

	if task != nil {
		task.Stop()
	}
	if cancelled {
		p.log.Info().Msg("polling cancelled")
	}
}

// transitionLocked moves to a terminal state once. Caller holds mu.
func (p *JobPoller) transitionLocked(r PollResult) bool {
	if p.state.Terminal() {
		return false
	}
	p.state = r.State
	p.result = r
	close(p.done)
	return true
}

// finish records a terminal result and notifies OnDone
func (p *JobPoller) finish(ctx context.Context, r PollResult) {
	p.mu.Lock()
	if ctx.Err() != nil || !p.transitionLocked(r) {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.log.Info().Str("state", r.State.String()).Msg("polling finished")
	if p.hooks.OnDone != nil {
		p.hooks.OnDone(r)
	}
}

func (p *JobPoller) status(msg string) {
	if p.hooks.OnStatus != nil {
		p.hooks.OnStatus(msg)
	}
}

// tick performs one status query. It returns false once polling should stop.
func (p *JobPoller) tick(ctx context.Context) bool {
	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	st, err := p.api.JobStatus(reqCtx, p.jobID)
	cancel()

	if ctx.Err() != nil {
		return false
	}

	switch {
	case err == nil && st.IsCompleted():
		if p.cfg.DisplayDelay > 0 {
			p.status("Transcription complete!")
			select {
			case <-ctx.Done():
				return false
			case <-time.After(p.cfg.DisplayDelay):
			}
		}
		p.finish(ctx, PollResult{
			State:           PollCompleted,
			Transcript:      st.Transcript,
			TranscriptionID: st.TranscriptionID,
		})
		return false

	case err == nil && st.IsFailed():
		msg := st.Error
		if msg == "" {
			msg = "Transcription failed"
		}
		p.finish(ctx, PollResult{
			State: PollFailed,
			Err:   &Error{Kind: Server, Op: OpUpload, Message: msg},
		})
		return false

	case err == nil && st.IsPending():
		p.mu.Lock()
		p.lastHealthy = p.now()
		p.mu.Unlock()
		p.status(pendingMessage(st))
		return true
	}

	if err == nil {
		err = fmt.Errorf("unexpected job status %q", st.Status)
	}
	return p.tickFailed(ctx, err)
}

// tickFailed records a failed query and decides whether to give up.
// The job is abandoned once queries have failed continuously for
// AbandonAfter, measured from the later of start and the last healthy tick.
func (p *JobPoller) tickFailed(ctx context.Context, err error) bool {
	p.mu.Lock()
	p.failures++
	failures := p.failures
	failingFor := p.now().Sub(p.lastHealthy)
	p.mu.Unlock()

	p.log.Warn().Err(err).Int("failures", failures).Dur("failing_for", failingFor).Msg("status check failed")

	if failingFor >= p.cfg.AbandonAfter {
		p.finish(ctx, PollResult{
			State: PollAbandoned,
			Err: &Error{
				Kind:    JobAbandoned,
				Op:      OpUpload,
				Message: "Lost contact with the transcription job. Please try again later.",
				Err:     err,
			},
		})
		return false
	}

	p.status(fmt.Sprintf("Checking status... (attempt %d failed, retrying)", failures))
	return true
}

func pendingMessage(st *jobapi.JobStatus) string {
	if st.ElapsedTime > 0 {
		elapsed := time.Duration(st.ElapsedTime * float64(time.Second)).Round(time.Second)
		return fmt.Sprintf("Processing in background... (%s elapsed)", elapsed)
	}
	return "Processing in background..."
}
