package watch

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"audiobrief/jobapi"
	"audiobrief/session"
	"audiobrief/stubserver"

	"github.com/rs/zerolog"
)

func newProcessor(t *testing.T) *Processor {
	t.Helper()
	ts := httptest.NewServer(stubserver.New(stubserver.Options{Log: zerolog.Nop()}).Handler())
	t.Cleanup(ts.Close)

	client, err := jobapi.NewClient(jobapi.WithBaseURL(ts.URL + "/api"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	cfg := session.DefaultConfig()
	cfg.ProgressInterval = time.Millisecond

	return &Processor{
		API:       client,
		Config:    cfg,
		OutputDir: filepath.Join(t.TempDir(), "out"),
		Settings:  session.Settings{WordCount: 5, Style: "bullets"},
		Log:       zerolog.Nop(),
	}
}

func writeAudio(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("fake audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProcess(t *testing.T) {
	tests := []struct {
		name      string
		summarize bool
		want      []string
		absent    []string
	}{
		{
			name:   "transcript only",
			want:   []string{"Source: weekly-sync.mp3", "Transcription ID:", "Transcript\n", "weekly-sync.mp3"},
			absent: []string{"Summary\n"},
		},
		{
			name:      "with summary",
			summarize: true,
			want:      []string{"Summary\n", "[bullets]", "Transcript\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProcessor(t)
			p.Summarize = tt.summarize

			path := writeAudio(t, t.TempDir(), "weekly-sync.mp3")
			if err := p.Process(context.Background(), path); err != nil {
				t.Fatalf("Process: %v", err)
			}

			data, err := os.ReadFile(filepath.Join(p.OutputDir, "weekly-sync.txt"))
			if err != nil {
				t.Fatalf("expected output file: %v", err)
			}
			out := string(data)
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
			for _, absent := range tt.absent {
				if strings.Contains(out, absent) {
					t.Errorf("output should not contain %q:\n%s", absent, out)
				}
			}
		})
	}
}

func TestProcessFailure(t *testing.T) {
	p := newProcessor(t)

	path := writeAudio(t, t.TempDir(), "fail-upload.mp3")
	err := p.Process(context.Background(), path)
	if err == nil {
		t.Fatal("expected an error for a failing transcription")
	}
	if session.KindOf(err) != session.Server {
		t.Errorf("expected a server error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(p.OutputDir, "fail-upload.txt")); !os.IsNotExist(statErr) {
		t.Error("no output should be written for a failed transcription")
	}
}

func TestProcessMissingFile(t *testing.T) {
	p := newProcessor(t)
	if err := p.Process(context.Background(), filepath.Join(t.TempDir(), "gone.mp3")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	handled := make(chan string, 4)

	w, err := New(dir, func(_ context.Context, path string) error {
		handled <- filepath.Base(path)
		return nil
	}, Options{Settle: 10 * time.Millisecond, Log: zerolog.Nop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Start(ctx) }()

	writeAudio(t, dir, "notes.txt")
	writeAudio(t, dir, "interview.m4a")
	if err := os.Mkdir(filepath.Join(dir, "folder.mp3"), 0o755); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-handled:
		if got != "interview.m4a" {
			t.Errorf("handled %q, want interview.m4a", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("audio file was not handled")
	}

	select {
	case got := <-handled:
		t.Errorf("unexpected file handled: %q", got)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Start returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestWatcherSettlesFilesIndependently(t *testing.T) {
	dir := t.TempDir()
	handled := make(chan string, 4)
	const settle = 300 * time.Millisecond

	w, err := New(dir, func(_ context.Context, path string) error {
		handled <- filepath.Base(path)
		return nil
	}, Options{Settle: settle, MaxConcurrent: 2, Log: zerolog.Nop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	start := time.Now()
	writeAudio(t, dir, "first.mp3")
	writeAudio(t, dir, "second.mp3")

	for i := 0; i < 2; i++ {
		select {
		case <-handled:
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d of 2 files handled", i)
		}
	}
	if elapsed := time.Since(start); elapsed >= 2*settle {
		t.Errorf("both files took %v; each new file should not delay the next by %v", elapsed, settle)
	}
}

func TestNewMissingDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope"), func(context.Context, string) error { return nil }, Options{})
	if err == nil {
		t.Error("expected an error for a missing directory")
	}
}
