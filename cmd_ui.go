package main

import (
	"context"
	"fmt"

	"audiobrief/config"
	"audiobrief/session"
	"audiobrief/tui"
)

// runUI runs the interactive app. An optional first argument is uploaded
// right away.
func runUI(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("ui takes at most one file, got %d", len(args))
	}

	log, closeLog, err := newLogger(cfg, true)
	if err != nil {
		return err
	}
	defer closeLog()

	client, err := newClient(cfg, log)
	if err != nil {
		return err
	}

	bridge := tui.NewBridge()
	sess := session.New()
	scfg := cfg.Session()

	deps := tui.Deps{
		Orchestrator: session.NewOrchestrator(client, sess, bridge, bridge, scfg, log),
		Summary:      session.NewSummaryController(client, sess, bridge, scfg.RequestTimeout, log),
		Chat:         session.NewChatController(client, sess, bridge, scfg.RequestTimeout, log),
		Settings:     cfg.SummarySettings(),
		Log:          log,
	}

	var opts tui.Options
	if len(args) == 1 {
		opts.File = args[0]
	}

	log.Info().Str("api", client.BaseURL()).Msg("starting interactive session")
	return tui.Run(ctx, bridge, deps, opts)
}
