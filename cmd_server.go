package main

import (
	"context"
	"flag"
	"fmt"

	"audiobrief/config"
	"audiobrief/stubserver"
	"audiobrief/tui"
)

// runStubServer serves a local stand-in for the transcription API
func runStubServer(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("stub-server", flag.ContinueOnError)
	addr := fs.String("addr", ":5000", "Listen address")
	processing := fs.Duration("processing-time", stubserver.DefaultProcessingTime, "How long background jobs take")
	failMarker := fs.String("fail-marker", "fail", "Uploads whose name contains this fail")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log, closeLog, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer closeLog()

	srv := stubserver.New(stubserver.Options{
		ProcessingTime: *processing,
		FailMarker:     *failMarker,
		Log:            log,
	})

	fmt.Println(tui.InfoStyle.Render(fmt.Sprintf("Stub API on %s/api (Ctrl+C to stop)", displayAddr(*addr))))
	return srv.ListenAndServe(ctx, *addr)
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
