package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"audiobrief/config"
	"audiobrief/jobapi"
	"audiobrief/session"
	"audiobrief/tui"
	"audiobrief/watch"
)

// TranscribeOptions holds the configuration for a one-shot transcription
type TranscribeOptions struct {
	File      string
	Summarize bool
	WordCount int
	Style     string
	Questions []string
	Output    string
	Yes       bool
	NoTrim    bool
}

// customized reports whether summary settings were given on the command line
func (o TranscribeOptions) customized() bool {
	return o.WordCount > 0 || o.Style != ""
}

// noTrim declines the trim offer and defers everything else
type noTrim struct {
	session.Confirmer
}

func (noTrim) ConfirmTrim(context.Context, jobapi.MediaFile, int) (bool, error) {
	return false, nil
}

// runTranscribe transcribes one file, then optionally summarizes it and asks
// questions, printing each result as it arrives.
func runTranscribe(ctx context.Context, cfg *config.Config, args []string) error {
	opts, err := parseTranscribeArgs(args)
	if err != nil {
		return err
	}
	if opts == nil {
		printTranscribeHelp()
		return nil
	}

	log, closeLog, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer closeLog()

	client, err := newClient(cfg, log)
	if err != nil {
		return err
	}

	file, err := jobapi.FileFromPath(opts.File)
	if err != nil {
		return err
	}

	var confirm session.Confirmer = tui.FormConfirm{}
	if opts.Yes {
		confirm = session.AutoConfirm{Trim: true, Background: true}
	}
	if opts.NoTrim {
		confirm = noTrim{confirm}
	}

	console := tui.NewConsole(os.Stdout)
	sess := session.New()
	scfg := cfg.Session()
	orch := session.NewOrchestrator(client, sess, console, confirm, scfg, log)

	fmt.Println(tui.SubtitleStyle.Render(fmt.Sprintf("%s (%s, %s)",
		file.Name, jobapi.FormatSize(file.Size), session.Classify(file.Size))))

	err = orch.Submit(ctx, &file)
	if err == nil {
		err = orch.Wait(ctx)
	}
	if err != nil {
		return reportSessionError(err)
	}

	if opts.Summarize || opts.customized() {
		sc := session.NewSummaryController(client, sess, console, scfg.RequestTimeout, log)
		settings := cfg.SummarySettings()
		if opts.WordCount > 0 {
			settings.WordCount = opts.WordCount
		}
		if opts.Style != "" {
			settings.Style = opts.Style
		}

		var sumErr error
		if err := console.Spin("Summarizing...", func() {
			if opts.customized() {
				sumErr = sc.Customize(ctx, settings)
			} else {
				sumErr = sc.Summarize(ctx)
			}
		}); err != nil {
			return err
		}
		if sumErr != nil {
			return reportSessionError(sumErr)
		}
	}

	if len(opts.Questions) > 0 {
		chat := session.NewChatController(client, sess, console, scfg.RequestTimeout, log)
		for _, q := range opts.Questions {
			var askErr error
			if err := console.Spin("Thinking...", func() {
				askErr = chat.Ask(ctx, q)
			}); err != nil {
				return err
			}
			if askErr != nil {
				return reportSessionError(askErr)
			}
		}
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(watch.Render(file.Name, sess.Snapshot())), 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Println(tui.SuccessStyle.Render("Saved to " + opts.Output))
	}
	return nil
}

// reportSessionError maps session errors to exit behaviour. The console has
// already shown visible errors; silent ones end the command quietly.
func reportSessionError(err error) error {
	kind := session.KindOf(err)
	if kind.Silent() {
		fmt.Println(tui.MutedStyle.Render("Cancelled."))
		return nil
	}
	var se *session.Error
	if errors.As(err, &se) {
		return fmt.Errorf("%w: %s", errReported, se.Error())
	}
	return err
}

// parseTranscribeArgs parses transcribe command arguments. A nil result
// with no error means help was requested.
func parseTranscribeArgs(args []string) (*TranscribeOptions, error) {
	opts := &TranscribeOptions{}
	var files []string

	value := func(i int, name string) (string, error) {
		if i+1 >= len(args) {
			return "", fmt.Errorf("%s requires a value", name)
		}
		return args[i+1], nil
	}

	i := 0
	for i < len(args) {
		arg := args[i]

		switch arg {
		case "--summarize":
			opts.Summarize = true
			i++
		case "-w", "--words":
			v, err := value(i, arg)
			if err != nil {
				return nil, err
			}
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("%s must be a positive number, got %q", arg, v)
			}
			opts.WordCount = n
			i += 2
		case "-s", "--style":
			v, err := value(i, arg)
			if err != nil {
				return nil, err
			}
			opts.Style = strings.TrimSpace(v)
			i += 2
		case "-a", "--ask":
			v, err := value(i, arg)
			if err != nil {
				return nil, err
			}
			opts.Questions = append(opts.Questions, v)
			i += 2
		case "-o", "--out":
			v, err := value(i, arg)
			if err != nil {
				return nil, err
			}
			opts.Output = v
			i += 2
		case "-y", "--yes":
			opts.Yes = true
			i++
		case "--no-trim":
			opts.NoTrim = true
			i++
		case "-h", "--help":
			return nil, nil
		default:
			if strings.HasPrefix(arg, "-") {
				return nil, fmt.Errorf("unknown option %s", arg)
			}
			files = append(files, arg)
			i++
		}
	}

	switch len(files) {
	case 0:
		return nil, errors.New("transcribe needs an audio file")
	case 1:
		opts.File = files[0]
	default:
		return nil, fmt.Errorf("transcribe takes one file, got %d", len(files))
	}
	return opts, nil
}

// printTranscribeHelp prints help for the transcribe command
func printTranscribeHelp() {
	help := `
Transcribe one audio file

USAGE:
    audiobrief transcribe [OPTIONS] FILE

ARGUMENTS:
    FILE                    MP3, WAV, OGG, M4A, WEBM or MP4 audio

OPTIONS:
    --summarize             Summarize the transcript
    -w, --words <n>         Summary length in words (implies --summarize)
    -s, --style <style>     Summary style, e.g. overview, bullets (implies --summarize)
    -a, --ask <question>    Ask a question about the transcript (repeatable)
    -o, --out <path>        Also save transcript and summary to a text file
    -y, --yes               Accept background processing and trimming without asking
    --no-trim               Always send the whole file

Files over 50 MB are processed as background jobs; files over 100 MB can be
trimmed to the first 30 minutes.
`
	fmt.Println(help)
}
