package jobapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(WithBaseURL(server.URL + "/api/"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestNewClient(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		client, err := NewClient()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.BaseURL() != DefaultBaseURL {
			t.Errorf("expected base URL %q, got %q", DefaultBaseURL, client.BaseURL())
		}
	})

	t.Run("trailing slash trimmed", func(t *testing.T) {
		client, _ := NewClient(WithBaseURL("http://example.com/api/"))
		if client.BaseURL() != "http://example.com/api" {
			t.Errorf("unexpected base URL: %s", client.BaseURL())
		}
	})

	t.Run("invalid scheme", func(t *testing.T) {
		_, err := NewClient(WithBaseURL("ftp://example.com"))
		if err == nil {
			t.Error("expected error for ftp scheme")
		}
	})
}

func TestTranscribe(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/transcribe" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get(RequestIDHeader) == "" {
			t.Error("missing request id header")
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "talk.mp3" || string(data) != "audio" {
			t.Errorf("unexpected upload %s %q", header.Filename, data)
		}
		if r.FormValue("trim_duration") != "" {
			t.Error("direct transcription must not send trim_duration")
		}

		w.Write([]byte(`{"transcript":"hello world","transcription_id":42}`))
	})

	resp, err := client.Transcribe(context.Background(), FileFromBytes("talk.mp3", "audio/mpeg", []byte("audio")))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if !resp.HasTranscript() || *resp.Transcript != "hello world" {
		t.Errorf("unexpected transcript: %+v", resp)
	}
	if resp.TranscriptionID != "42" {
		t.Errorf("expected transcription id 42, got %q", resp.TranscriptionID)
	}
	if resp.HasJob() {
		t.Error("expected no job id")
	}
}

func TestTranscribeLarge(t *testing.T) {
	tests := []struct {
		name     string
		trim     int
		wantTrim string
	}{
		{"with trim", 1800, "1800"},
		{"without trim", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/transcribe-large" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if got := r.FormValue("trim_duration"); got != tt.wantTrim {
					t.Errorf("trim_duration = %q, want %q", got, tt.wantTrim)
				}
				w.WriteHeader(http.StatusAccepted)
				w.Write([]byte(`{"status":"processing","job_id":"J1","message":"queued"}`))
			})

			resp, err := client.TranscribeLarge(context.Background(), FileFromBytes("big.wav", "audio/wav", []byte("x")), tt.trim)
			if err != nil {
				t.Fatalf("TranscribeLarge failed: %v", err)
			}
			if !resp.HasJob() || resp.JobID != "J1" {
				t.Errorf("expected job J1, got %+v", resp)
			}
			if resp.HasTranscript() {
				t.Error("expected no transcript")
			}
		})
	}
}

func TestUploadErrors(t *testing.T) {
	t.Run("server error with message", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"No selected file"}`))
		})
		_, err := client.Transcribe(context.Background(), FileFromBytes("a.mp3", "audio/mpeg", nil))

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.StatusCode != 400 || apiErr.Message != "No selected file" {
			t.Errorf("unexpected APIError: %+v", apiErr)
		}
	})

	t.Run("server error without json", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("<html>bad gateway</html>"))
		})
		_, err := client.Transcribe(context.Background(), FileFromBytes("a.mp3", "audio/mpeg", nil))

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.Message != "" {
			t.Errorf("expected empty message, got %q", apiErr.Message)
		}
		if !strings.Contains(apiErr.Body, "bad gateway") {
			t.Errorf("expected raw body to be kept, got %q", apiErr.Body)
		}
	})

	t.Run("unparseable success body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		})
		_, err := client.Transcribe(context.Background(), FileFromBytes("a.mp3", "audio/mpeg", nil))

		var decodeErr *DecodeError
		if !errors.As(err, &decodeErr) {
			t.Fatalf("expected DecodeError, got %v", err)
		}
		if decodeErr.Body != "not json" {
			t.Errorf("expected raw body, got %q", decodeErr.Body)
		}
	})

	t.Run("missing content", func(t *testing.T) {
		client, _ := NewClient()
		_, err := client.Transcribe(context.Background(), MediaFile{Name: "a.mp3"})
		if err == nil {
			t.Error("expected error for file without content")
		}
	})
}

func TestJobStatus(t *testing.T) {
	tests := []struct {
		name       string
		code       int
		body       string
		wantStatus string
		wantErr    bool
	}{
		{"processing", 200, `{"job_id":"J1","status":"processing","elapsed_time":12.5}`, StatusProcessing, false},
		{"completed", 200, `{"job_id":"J1","status":"completed","transcript":"done","transcription_id":"7"}`, StatusCompleted, false},
		{"failed with 500", 500, `{"job_id":"J1","status":"failed","error":"decoder crashed"}`, StatusFailed, false},
		{"not found", 404, `{"error":"Job not found","job_id":"J1"}`, "", true},
		{"garbage", 200, `garbage`, "", true},
		{"missing status", 200, `{}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet || r.URL.Path != "/api/job-status/J1" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				w.WriteHeader(tt.code)
				w.Write([]byte(tt.body))
			})

			status, err := client.JobStatus(context.Background(), "J1")
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got status %+v", status)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if status.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status.Status, tt.wantStatus)
			}
			if status.HTTPStatus != tt.code {
				t.Errorf("HTTPStatus = %d, want %d", status.HTTPStatus, tt.code)
			}
		})
	}

	t.Run("failed job carries error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(500)
			w.Write([]byte(`{"status":"failed","error":"decoder crashed"}`))
		})
		status, err := client.JobStatus(context.Background(), "J1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !status.IsFailed() || status.Error != "decoder crashed" {
			t.Errorf("unexpected status: %+v", status)
		}
	})

	t.Run("empty id", func(t *testing.T) {
		client, _ := NewClient()
		if _, err := client.JobStatus(context.Background(), ""); err == nil {
			t.Error("expected error for empty job id")
		}
	})
}

func TestSummaryEndpoints(t *testing.T) {
	var gotPath string
	var gotBody map[string]any

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody = nil
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"summary":"short"}`))
	})

	t.Run("default summary omits settings", func(t *testing.T) {
		resp, err := client.Summarize(context.Background(), SummaryRequest{Transcript: "text"})
		if err != nil {
			t.Fatalf("Summarize failed: %v", err)
		}
		if resp.Summary != "short" || gotPath != "/api/summarize" {
			t.Errorf("unexpected result %q at %s", resp.Summary, gotPath)
		}
		if _, ok := gotBody["wordCount"]; ok {
			t.Error("wordCount should be omitted")
		}
		if _, ok := gotBody["transcription_id"]; ok {
			t.Error("transcription_id should be omitted when unknown")
		}
	})

	t.Run("customize sends settings and id", func(t *testing.T) {
		_, err := client.CustomizeSummary(context.Background(), SummaryRequest{
			Transcript:      "text",
			TranscriptionID: "12",
			WordCount:       250,
			Style:           "bullets",
		})
		if err != nil {
			t.Fatalf("CustomizeSummary failed: %v", err)
		}
		if gotPath != "/api/customize-summary" {
			t.Errorf("unexpected path %s", gotPath)
		}
		if gotBody["wordCount"] != float64(250) || gotBody["style"] != "bullets" {
			t.Errorf("unexpected body: %v", gotBody)
		}
		if gotBody["transcription_id"] != float64(12) {
			t.Errorf("expected numeric transcription_id, got %v", gotBody["transcription_id"])
		}
	})
}

func TestAsk(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Question != "who spoke?" {
			t.Errorf("unexpected question %q", req.Question)
		}
		w.Write([]byte(`{"answer":"Alice"}`))
	})

	resp, err := client.Ask(context.Background(), AskRequest{Transcript: "t", Question: "who spoke?"})
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if resp.Answer != "Alice" {
		t.Errorf("unexpected answer %q", resp.Answer)
	}
}

func TestRequestCancellation(t *testing.T) {
	block := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-block
	})
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Summarize(ctx, SummaryRequest{Transcript: "t"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRecordID(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		value string
		out   string
	}{
		{"number", `7`, "7", `{"transcript":"t","transcription_id":7}`},
		{"string", `"abc"`, "abc", `{"transcript":"t","transcription_id":"abc"}`},
		{"digit string", `"42"`, "42", `{"transcript":"t","transcription_id":"42"}`},
		{"leading zeros", `"007"`, "007", `{"transcript":"t","transcription_id":"007"}`},
		{"null", `null`, "", `{"transcript":"t"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id RecordID
			if err := json.Unmarshal([]byte(tt.in), &id); err != nil {
				t.Fatalf("Unmarshal(%s) failed: %v", tt.in, err)
			}
			if id.Value() != tt.value {
				t.Errorf("Value() = %q, want %q", id.Value(), tt.value)
			}

			out, err := json.Marshal(SummaryRequest{Transcript: "t", TranscriptionID: id})
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if string(out) != tt.out {
				t.Errorf("Marshal = %s, want %s", out, tt.out)
			}
		})
	}

	t.Run("built in Go", func(t *testing.T) {
		out, _ := json.Marshal(RecordID("abc"))
		if string(out) != `"abc"` {
			t.Errorf("Marshal(abc) = %s", out)
		}
		out, _ = json.Marshal(RecordID("12"))
		if string(out) != `12` {
			t.Errorf("Marshal(12) = %s", out)
		}
	})

	t.Run("rejects objects", func(t *testing.T) {
		var id RecordID
		if err := json.Unmarshal([]byte(`{"id":1}`), &id); err == nil {
			t.Error("expected an error for an object id")
		}
	})
}

func TestFileFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Meeting.M4A")
	if err := os.WriteFile(path, []byte("1234"), 0644); err != nil {
		t.Fatal(err)
	}

	f, err := FileFromPath(path)
	if err != nil {
		t.Fatalf("FileFromPath failed: %v", err)
	}
	if f.Name != "Meeting.M4A" || f.Size != 4 || f.MIMEType != "audio/x-m4a" || f.Ext() != ".m4a" {
		t.Errorf("unexpected file: %+v", f)
	}

	if _, err := FileFromPath(dir); err == nil {
		t.Error("expected error for directory")
	}
	if _, err := FileFromPath(filepath.Join(dir, "missing.mp3")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{512, "512 bytes"},
		{2048, "2.00 KB"},
		{60 * 1024 * 1024, "60.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.bytes); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}
