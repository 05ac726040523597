// Package jobapi provides a Go client for the remote transcription service:
// direct and background transcription, job status polling, summaries and
// transcript questions.
package jobapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Job states reported by the status endpoint
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusPending    = "pending"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// RecordID is the server's identifier for a stored transcription, kept as
// the raw JSON token it arrived in (`7` or `"007"`) so it is echoed back
// exactly as received. Use Value for the plain text.
type RecordID string

// UnmarshalJSON keeps numbers and strings verbatim and maps null to ""
func (id *RecordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("transcription_id: %w", err)
		}
	}
	*id = RecordID(data)
	return nil
}

// MarshalJSON writes the token back unchanged. Ids built in Go that are not
// valid JSON are written as strings.
func (id RecordID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if id.isToken() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// isToken reports whether id is a JSON string or number literal
func (id RecordID) isToken() bool {
	if id[0] == '"' {
		return json.Valid([]byte(id))
	}
	var n json.Number
	return json.Unmarshal([]byte(id), &n) == nil
}

// Value returns the id without JSON quoting
func (id RecordID) Value() string {
	if strings.HasPrefix(string(id), `"`) {
		var s string
		if err := json.Unmarshal([]byte(id), &s); err == nil {
			return s
		}
	}
	return string(id)
}

// UploadResponse is the body returned by both upload endpoints.
// A direct transcription fills Transcript; a background submission fills JobID.
type UploadResponse struct {
	// Transcript is nil when the field was absent from the response
	Transcript      *string  `json:"transcript,omitempty"`
	TranscriptionID RecordID `json:"transcription_id,omitempty"`

	JobID   string `json:"job_id,omitempty"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`

	// Raw is the undecoded response body
	Raw string `json:"-"`
}

// HasTranscript reports whether the response carried a transcript
func (r *UploadResponse) HasTranscript() bool {
	return r != nil && r.Transcript != nil
}

// HasJob reports whether the response handed off to a background job
func (r *UploadResponse) HasJob() bool {
	return r != nil && strings.TrimSpace(r.JobID) != ""
}

// JobStatus is the body returned by the job status endpoint
type JobStatus struct {
	JobID           string   `json:"job_id,omitempty"`
	Status          string   `json:"status"`
	Transcript      string   `json:"transcript,omitempty"`
	TranscriptionID RecordID `json:"transcription_id,omitempty"`
	Error           string   `json:"error,omitempty"`
	ErrorType       string   `json:"error_type,omitempty"`
	Message         string   `json:"message,omitempty"`
	Filename        string   `json:"filename,omitempty"`
	FileSize        int64    `json:"file_size,omitempty"`
	ElapsedTime     float64  `json:"elapsed_time,omitempty"`

	// HTTPStatus is the status code the response arrived with
	HTTPStatus int `json:"-"`
}

// IsPending reports whether the job is still being worked on
func (s *JobStatus) IsPending() bool {
	switch s.Status {
	case StatusQueued, StatusProcessing, StatusPending:
		return true
	}
	return false
}

// IsCompleted reports whether the job finished with a transcript
func (s *JobStatus) IsCompleted() bool {
	return s.Status == StatusCompleted
}

// IsFailed reports whether the job terminated with an error
func (s *JobStatus) IsFailed() bool {
	return s.Status == StatusFailed
}

// SummaryRequest is the body for the summarize and customize endpoints.
// WordCount and Style are omitted for a default summary.
type SummaryRequest struct {
	Transcript      string   `json:"transcript"`
	TranscriptionID RecordID `json:"transcription_id,omitempty"`
	WordCount       int      `json:"wordCount,omitempty"`
	Style           string   `json:"style,omitempty"`
}

// SummaryResponse is the body returned by the summary endpoints
type SummaryResponse struct {
	Summary string `json:"summary"`
}

// AskRequest is the body for the question endpoint
type AskRequest struct {
	Transcript      string   `json:"transcript"`
	Question        string   `json:"question"`
	TranscriptionID RecordID `json:"transcription_id,omitempty"`
}

// AskResponse is the body returned by the question endpoint
type AskResponse struct {
	Answer string `json:"answer"`
}

// APIError represents a non-2xx response from the service
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	Body       string `json:"-"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error (status %d)", e.StatusCode)
}

// DecodeError is returned when a successful response body could not be parsed
type DecodeError struct {
	Body string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to parse response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
