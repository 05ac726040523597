package session

import (
	"errors"
	"testing"

	"audiobrief/jobapi"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		size  int64
		want  SizeClass
		large bool
	}{
		{"empty", 0, Small, false},
		{"exactly 50 MiB", 50 * 1024 * 1024, Small, false},
		{"just over 50 MiB", 50*1024*1024 + 1, Large, true},
		{"exactly 100 MiB", 100 * 1024 * 1024, Large, true},
		{"just over 100 MiB", 100*1024*1024 + 1, VeryLarge, true},
		{"one GiB", 1 << 30, VeryLarge, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.size)
			if got != tt.want {
				t.Errorf("Classify(%d) = %v, want %v", tt.size, got, tt.want)
			}
			if got.IsLarge() != tt.large {
				t.Errorf("IsLarge() = %v, want %v", got.IsLarge(), tt.large)
			}
		})
	}
}

func TestAcceptedFile(t *testing.T) {
	tests := []struct {
		name string
		mime string
		want bool
	}{
		{"talk.mp3", "audio/mpeg", true},
		{"talk.bin", "audio/x-m4a", true},
		{"talk.bin", "audio/ogg; codecs=opus", true},
		{"talk.WAV", "", true},
		{"talk.webm", "application/octet-stream", true},
		{"notes.txt", "text/plain", false},
		{"video.mkv", "video/x-matroska", false},
		{"noext", "", false},
	}

	for _, tt := range tests {
		f := jobapi.MediaFile{Name: tt.name, MIMEType: tt.mime}
		if got := AcceptedFile(f); got != tt.want {
			t.Errorf("AcceptedFile(%s, %q) = %v, want %v", tt.name, tt.mime, got, tt.want)
		}
	}
}

func TestSettings(t *testing.T) {
	t.Run("parse falls back to defaults", func(t *testing.T) {
		tests := []struct {
			count, style string
			want         Settings
		}{
			{"250", "bullets", Settings{250, "bullets"}},
			{"abc", "  ", DefaultSettings()},
			{"-5", "detailed", Settings{DefaultWordCount, "detailed"}},
			{" 80 ", " key points ", Settings{80, "key points"}},
		}
		for _, tt := range tests {
			if got := ParseSettings(tt.count, tt.style); got != tt.want {
				t.Errorf("ParseSettings(%q, %q) = %+v, want %+v", tt.count, tt.style, got, tt.want)
			}
		}
	})

	t.Run("stale until applied", func(t *testing.T) {
		s := New()
		if !s.SettingsStale(DefaultSettings()) {
			t.Error("settings should be stale before any customization")
		}
		s.applied = &Settings{150, "overview"}
		if s.SettingsStale(Settings{150, " overview "}) {
			t.Error("equal settings should not be stale")
		}
		if !s.SettingsStale(Settings{200, "overview"}) {
			t.Error("different word count should be stale")
		}
	})
}

func TestSessionTokens(t *testing.T) {
	s := New()

	tok, err := s.begin(OpUpload)
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if _, err := s.begin(OpSummarize); !errors.Is(err, ErrBusy) {
		t.Errorf("second begin should fail with ErrBusy, got %v", err)
	}

	if !s.abort(OpUpload) {
		t.Fatal("abort should release an upload")
	}
	if s.complete(tok, "stale", "1") {
		t.Error("stale token must not store a transcript")
	}
	if s.Transcript() != "" {
		t.Errorf("transcript changed by stale token: %q", s.Transcript())
	}

	tok2, err := s.begin(OpUpload)
	if err != nil {
		t.Fatalf("begin after abort failed: %v", err)
	}
	if s.release(tok) {
		t.Error("old token must not release the new operation")
	}
	if !s.Busy() {
		t.Error("session should still be busy")
	}
	if !s.complete(tok2, "fresh", "2") {
		t.Fatal("current token should complete")
	}

	snap := s.Snapshot()
	if snap.Busy || snap.Transcript != "fresh" || snap.TranscriptionID != "2" || snap.Operation != OpNone {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestAbortOnlyMatchingOperation(t *testing.T) {
	s := New()
	if _, err := s.begin(OpSummarize); err != nil {
		t.Fatal(err)
	}
	if s.abort(OpUpload) {
		t.Error("aborting an upload must not release a summary")
	}
	if !s.Busy() {
		t.Error("summary should still hold the session")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{&Error{Kind: Timeout}, Timeout},
		{&jobapi.APIError{StatusCode: 500}, Server},
		{&jobapi.DecodeError{Err: errors.New("bad")}, InvalidResponse},
		{errors.New("dial tcp: refused"), Network},
		{nil, KindUnknown},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
