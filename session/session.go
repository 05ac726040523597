// Package session holds the state and control flow of a transcription
// session: uploading audio, tracking background jobs, simulating progress,
// and the summary and chat operations that run against a transcript.
package session

import (
	"strconv"
	"strings"
	"sync"

	"audiobrief/jobapi"
)

// Operation names a user-initiated action that occupies the session
type Operation int

const (
	OpNone Operation = iota
	OpUpload
	OpSummarize
	OpRegenerate
	OpCustomize
	OpAsk
)

func (o Operation) String() string {
	switch o {
	case OpUpload:
		return "upload"
	case OpSummarize:
		return "summarize"
	case OpRegenerate:
		return "regenerate"
	case OpCustomize:
		return "customize"
	case OpAsk:
		return "ask"
	default:
		return "none"
	}
}

// Summary defaults
const (
	DefaultWordCount = 100
	DefaultStyle     = "overview"
)

// Settings controls the length and style of a customized summary
type Settings struct {
	WordCount int
	Style     string
}

// DefaultSettings returns the settings used before the user changes anything
func DefaultSettings() Settings {
	return Settings{WordCount: DefaultWordCount, Style: DefaultStyle}
}

// Normalize replaces unusable values with defaults
func (s Settings) Normalize() Settings {
	if s.WordCount <= 0 {
		s.WordCount = DefaultWordCount
	}
	s.Style = strings.TrimSpace(s.Style)
	if s.Style == "" {
		s.Style = DefaultStyle
	}
	return s
}

// ParseSettings builds settings from raw form input
func ParseSettings(wordCount, style string) Settings {
	n, err := strconv.Atoi(strings.TrimSpace(wordCount))
	if err != nil {
		n = 0
	}
	return Settings{WordCount: n, Style: style}.Normalize()
}

// token identifies one busy period; stale tokens cannot touch the session
type token uint64

// Session is the single source of truth for one user's work. All fields are
// guarded by mu and only mutated through the begin/finish methods below.
type Session struct {
	mu sync.Mutex

	transcript      string
	transcriptionID jobapi.RecordID
	summary         string

	busy        bool
	op          Operation
	gen         token
	activeJobID string

	applied *Settings
}

// Snapshot is a point-in-time copy of the session state
type Snapshot struct {
	Transcript      string
	TranscriptionID jobapi.RecordID
	Summary         string
	Busy            bool
	Operation       Operation
	ActiveJobID     string
	AppliedSettings *Settings
}

// New returns an idle session with no transcript
func New() *Session {
	return &Session{}
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Transcript:      s.transcript,
		TranscriptionID: s.transcriptionID,
		Summary:         s.summary,
		Busy:            s.busy,
		Operation:       s.op,
		ActiveJobID:     s.activeJobID,
	}
	if s.applied != nil {
		applied := *s.applied
		snap.AppliedSettings = &applied
	}
	return snap
}

// Busy reports whether an operation is in flight
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Transcript returns the current transcript, empty if none
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript
}

// SettingsStale reports whether current differs from the settings that
// produced the last customized summary.
func (s *Session) SettingsStale(current Settings) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied == nil || *s.applied != current.Normalize()
}

// begin atomically claims the session for op
func (s *Session) begin(op Operation) (token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return 0, ErrBusy
	}
	s.gen++
	s.busy = true
	s.op = op
	s.activeJobID = ""
	return s.gen, nil
}

// document returns the transcript and its server id for a request
func (s *Session) document() (string, jobapi.RecordID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript, s.transcriptionID
}

func (s *Session) current(t token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy && s.gen == t
}

// superseded reports whether a later begin or abort has replaced t
func (s *Session) superseded(t token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen != t
}

// release clears busy if t still owns the session
func (s *Session) release(t token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseLocked(t)
}

func (s *Session) releaseLocked(t token) bool {
	if !s.busy || s.gen != t {
		return false
	}
	s.busy = false
	s.op = OpNone
	s.activeJobID = ""
	return true
}

// setJob records the background job that now owns the session
func (s *Session) setJob(t token, jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.busy || s.gen != t {
		return false
	}
	s.activeJobID = jobID
	return true
}

// complete stores a new transcript and releases the session
func (s *Session) complete(t token, transcript string, id jobapi.RecordID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.busy || s.gen != t {
		return false
	}
	s.transcript = transcript
	s.transcriptionID = id
	s.summary = ""
	s.applied = nil
	return s.releaseLocked(t)
}

// summarized stores a summary and releases the session
func (s *Session) summarized(t token, summary string, applied *Settings) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.busy || s.gen != t {
		return false
	}
	s.summary = summary
	if applied != nil {
		a := *applied
		s.applied = &a
	}
	return s.releaseLocked(t)
}

// abort forcibly releases the session if op is in flight. Any holder of the
// previous token is locked out.
func (s *Session) abort(op Operation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.busy || s.op != op {
		return false
	}
	s.gen++
	s.busy = false
	s.op = OpNone
	s.activeJobID = ""
	return true
}
