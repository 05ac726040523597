package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"audiobrief/jobapi"
	"audiobrief/session"

	"github.com/rs/zerolog"
)

// API is the remote service a Processor needs
type API interface {
	session.TranscriptionAPI
	session.SummaryAPI
}

// Processor transcribes one file with its own session and writes the result
// next to OutputDir. Large files are always accepted as background jobs.
type Processor struct {
	API       API
	Config    session.Config
	OutputDir string

	// Trim accepts the trim offer for very large files
	Trim bool

	// Summarize adds a customized summary to the output
	Summarize bool
	Settings  session.Settings

	Log zerolog.Logger
}

// Process transcribes path and writes <name>.txt into OutputDir
func (p *Processor) Process(ctx context.Context, path string) error {
	log := p.Log.With().Str("file", filepath.Base(path)).Logger()

	file, err := jobapi.FileFromPath(path)
	if err != nil {
		return err
	}

	sess := session.New()
	orch := session.NewOrchestrator(p.API, sess, session.NopPresenter{},
		session.AutoConfirm{Trim: p.Trim, Background: true}, p.Config, log)

	if err := orch.Submit(ctx, &file); err != nil {
		return fmt.Errorf("transcribe %s: %w", file.Name, err)
	}
	if err := orch.Wait(ctx); err != nil {
		return fmt.Errorf("transcribe %s: %w", file.Name, err)
	}

	if p.Summarize {
		sc := session.NewSummaryController(p.API, sess, session.NopPresenter{}, p.Config.RequestTimeout, log)
		if err := sc.Customize(ctx, p.Settings); err != nil {
			// the transcript is still worth keeping
			log.Warn().Err(err).Msg("summary failed")
		}
	}

	if err := os.MkdirAll(p.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	base := strings.TrimSuffix(file.Name, filepath.Ext(file.Name))
	out := filepath.Join(p.OutputDir, base+".txt")

	if err := os.WriteFile(out, []byte(Render(file.Name, sess.Snapshot())), 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	log.Info().Str("output", out).Msg("transcript saved")
	return nil
}

// Render formats a finished session as plain text: a short header, the
// summary when there is one, then the transcript.
func Render(source string, snap session.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source: %s\n", source)
	if id := snap.TranscriptionID.Value(); id != "" {
		fmt.Fprintf(&b, "Transcription ID: %s\n", id)
	}
	if snap.Summary != "" {
		b.WriteString("\nSummary\n-------\n")
		b.WriteString(snap.Summary)
		b.WriteString("\n")
	}
	b.WriteString("\nTranscript\n----------\n")
	b.WriteString(snap.Transcript)
	b.WriteString("\n")
	return b.String()
}
