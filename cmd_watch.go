package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"audiobrief/config"
	"audiobrief/tui"
	"audiobrief/watch"
)

// settleDelay gives copies time to finish before a new file is uploaded
const settleDelay = 500 * time.Millisecond

// runWatch transcribes audio files as they appear in a directory
func runWatch(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	out := fs.String("out", cfg.Watch.OutputDir, "Directory for transcript files")
	summarize := fs.Bool("summarize", false, "Add a summary to each transcript")
	trim := fs.Bool("trim", false, "Only process the first part of very large files")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: audiobrief watch [--out DIR] [--summarize] [--trim] DIR")
	}
	dir := fs.Arg(0)

	log, closeLog, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer closeLog()

	client, err := newClient(cfg, log)
	if err != nil {
		return err
	}

	proc := &watch.Processor{
		API:       client,
		Config:    cfg.Session(),
		OutputDir: *out,
		Trim:      *trim,
		Summarize: *summarize,
		Settings:  cfg.SummarySettings(),
		Log:       log,
	}

	w, err := watch.New(dir, proc.Process, watch.Options{Settle: settleDelay, Log: log})
	if err != nil {
		return err
	}
	defer w.Stop()

	fmt.Println(tui.InfoStyle.Render(fmt.Sprintf("Watching %s, writing transcripts to %s (Ctrl+C to stop)", dir, *out)))

	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
