package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"audiobrief/config"
	"audiobrief/jobapi"
	"audiobrief/logger"
	"audiobrief/tui"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Build info - set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// errReported means the failure was already shown to the user
var errReported = errors.New("error already reported")

func main() {
	// Parse flags
	versionFlag := flag.Bool("version", false, "Print version information")
	shortVersionFlag := flag.Bool("v", false, "Print version information (short)")
	configPath := flag.String("config", "", "Path to a YAML config file (default: ./"+config.DefaultPath+" if present)")
	flag.Usage = printHelp
	flag.Parse()

	if *versionFlag || *shortVersionFlag {
		fmt.Printf("audiobrief %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
		fmt.Printf("  go:     %s\n", runtime.Version())
		fmt.Printf("  os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	// Load .env file if it exists (won't error if missing)
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Println(tui.ErrorStyle.Render("Error: " + err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := "", flag.Args()
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "", "ui":
		err = runUI(ctx, cfg, args)
	case "transcribe":
		err = runTranscribe(ctx, cfg, args)
	case "watch":
		err = runWatch(ctx, cfg, args)
	case "stub-server":
		err = runStubServer(ctx, cfg, args)
	case "update":
		err = runUpdate(ctx, args)
	case "help":
		printHelp()
	default:
		err = fmt.Errorf("unknown command %q (run 'audiobrief help')", cmd)
	}

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, flag.ErrHelp) {
		if !errors.Is(err, errReported) {
			fmt.Println(tui.ErrorStyle.Render("Error: " + err.Error()))
		}
		stop()
		os.Exit(1)
	}
}

// newLogger builds the command logger and a func that closes its file.
// quiet drops everything unless a log file is configured, for screens that
// own the terminal.
func newLogger(cfg *config.Config, quiet bool) (zerolog.Logger, func(), error) {
	if quiet && cfg.Logging.File == "" {
		return logger.Discard(), func() {}, nil
	}
	log, closer, err := logger.New(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		return log, func() {}, err
	}
	return log, func() { _ = closer.Close() }, nil
}

func newClient(cfg *config.Config, log zerolog.Logger) (*jobapi.Client, error) {
	return jobapi.NewClient(
		jobapi.WithBaseURL(cfg.API.BaseURL),
		jobapi.WithDebug(cfg.Debug),
		jobapi.WithLogger(log),
	)
}

func printHelp() {
	help := `
audiobrief - transcribe, summarize and question audio from the terminal

USAGE:
    audiobrief [--config FILE] [COMMAND] [ARGS]

COMMANDS:
    ui [FILE]               Interactive app (default). Opens FILE right away if given
    transcribe [OPTIONS] FILE
                            Transcribe one file and print the result
    watch [OPTIONS] DIR     Transcribe audio files as they appear in DIR
    stub-server [OPTIONS]   Run a local stand-in for the transcription API
    update [--check]        Update audiobrief to the latest release
    help                    Show this help

FLAGS:
    --config <file>         YAML config file (default: ./audiobrief.yaml if present)
    -v, --version           Print version information

ENVIRONMENT:
    AUDIOBRIEF_API_URL      Transcription API base URL (default: http://localhost:5000/api)
    AUDIOBRIEF_LOG_LEVEL    trace, debug, info, warn, error or disabled
    AUDIOBRIEF_LOG_FILE     Write logs to this file (the interactive app logs nowhere otherwise)
    AUDIOBRIEF_DEBUG        Log request and response details

EXAMPLES:
    # Pick a file interactively
    audiobrief

    # Transcribe, summarize in 50 words, and ask a question
    audiobrief transcribe --summarize --words 50 --ask "What was decided?" standup.mp3

    # Keep transcribing recordings dropped into a folder
    audiobrief watch --out ./transcripts ./recordings

    # Develop against a local stub
    audiobrief stub-server --addr :5000
`
	fmt.Println(help)
}
