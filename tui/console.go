package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"audiobrief/jobapi"
	"audiobrief/session"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
)

// Console is a line-oriented session.Presenter for one-shot commands.
// Output produced while a spinner is showing is held and flushed when the
// spinner stops.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	width   int
	status  string
	held    bool
	pending []string
}

// NewConsole returns a console that writes to out
func NewConsole(out io.Writer) *Console {
	return &Console{out: out, width: 76}
}

func (c *Console) write(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held {
		c.pending = append(c.pending, s)
		return
	}
	fmt.Fprintln(c.out, s)
}

// RenderProgress prints a line whenever the status text changes
func (c *Console) RenderProgress(percent float64, status string) {
	c.mu.Lock()
	changed := status != c.status
	c.status = status
	c.mu.Unlock()

	if changed {
		c.write(ProgressBar(percent, 24) + "  " + InfoStyle.Render(status))
	}
}

func (c *Console) RenderTranscript(text string) {
	c.write(Card("Transcript", text, c.width))
}

func (c *Console) RenderSummary(text string) {
	c.write(Card("Summary", text, c.width))
}

func (c *Console) RenderError(kind session.Kind, message string) {
	c.write(KindBadge(kind) + " " + ErrorStyle.Render(message))
}

func (c *Console) AppendChatMessage(text string, sender session.Sender) {
	c.write(SenderBadge(sender) + " " + BodyStyle.Render(text))
}

// SetLoading is a no-op; Spin shows activity instead
func (c *Console) SetLoading(session.Operation, bool) {}

func (c *Console) ClearSections() {
	c.mu.Lock()
	c.status = ""
	c.mu.Unlock()
}

// Spin runs fn behind a spinner titled title
func (c *Console) Spin(title string, fn func()) error {
	c.mu.Lock()
	c.held = true
	c.mu.Unlock()

	err := spinner.New().
		Title(title).
		Action(fn).
		Run()

	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.held = false
	c.mu.Unlock()

	if len(pending) > 0 {
		fmt.Fprintln(c.out, strings.Join(pending, "\n"))
	}
	return err
}

// FormConfirm asks large-file questions with huh forms
type FormConfirm struct{}

func (FormConfirm) ConfirmTrim(ctx context.Context, file jobapi.MediaFile, seconds int) (bool, error) {
	return confirm(ctx,
		"Process only the first part?",
		fmt.Sprintf("%s is %s. Trimming to the first %d minutes speeds things up.",
			file.Name, jobapi.FormatSize(file.Size), seconds/60),
		"Yes, trim it",
		"No, use the whole file",
	)
}

func (FormConfirm) ConfirmBackground(ctx context.Context, file jobapi.MediaFile) (bool, error) {
	return confirm(ctx,
		"Process in the background?",
		fmt.Sprintf("%s is %s. Large files are transcribed as a background job.",
			file.Name, jobapi.FormatSize(file.Size)),
		"Yes, start the job",
		"No, cancel",
	)
}

func confirm(ctx context.Context, title, description, yes, no string) (bool, error) {
	var ok bool
	field := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative(yes).
		Negative(no).
		Value(&ok)

	err := huh.NewForm(huh.NewGroup(field)).
		WithTheme(huh.ThemeCatppuccin()).
		RunWithContext(ctx)
	if err != nil {
		return false, err
	}
	return ok, nil
}
