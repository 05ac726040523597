package tui

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"audiobrief/jobapi"
	"audiobrief/session"

	tea "github.com/charmbracelet/bubbletea"
)

// ErrDetached is returned by confirmations asked while no program is attached
var ErrDetached = errors.New("no interactive program attached")

// Messages delivered from the session to the app
type (
	progressMsg struct {
		percent float64
		status  string
	}

	transcriptMsg string

	summaryMsg string

	errorMsg struct {
		kind session.Kind
		text string
	}

	chatMsg struct {
		text   string
		sender session.Sender
	}

	loadingMsg struct {
		op      session.Operation
		loading bool
	}

	clearMsg struct{}

	// confirmMsg asks the user a yes/no question; the answer goes to reply
	confirmMsg struct {
		title  string
		detail string
		reply  chan bool
	}
)

// Bridge adapts session callbacks into Bubble Tea messages. It implements
// session.Presenter and session.Confirmer. Callbacks block until the
// program accepts the message, so session operations must run inside
// tea.Cmd goroutines, never on the Update loop.
type Bridge struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

// NewBridge returns a bridge with no program attached
func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach routes messages to send; nil detaches
func (b *Bridge) Attach(send func(tea.Msg)) {
	b.mu.Lock()
	b.send = send
	b.mu.Unlock()
}

func (b *Bridge) emit(msg tea.Msg) bool {
	b.mu.Lock()
	send := b.send
	b.mu.Unlock()

	if send == nil {
		return false
	}
	send(msg)
	return true
}

func (b *Bridge) RenderProgress(percent float64, status string) {
	b.emit(progressMsg{percent: percent, status: status})
}

func (b *Bridge) RenderTranscript(text string) {
	b.emit(transcriptMsg(text))
}

func (b *Bridge) RenderSummary(text string) {
	b.emit(summaryMsg(text))
}

func (b *Bridge) RenderError(kind session.Kind, message string) {
	b.emit(errorMsg{kind: kind, text: message})
}

func (b *Bridge) AppendChatMessage(text string, sender session.Sender) {
	b.emit(chatMsg{text: text, sender: sender})
}

func (b *Bridge) SetLoading(op session.Operation, loading bool) {
	b.emit(loadingMsg{op: op, loading: loading})
}

func (b *Bridge) ClearSections() {
	b.emit(clearMsg{})
}

func (b *Bridge) ConfirmTrim(ctx context.Context, file jobapi.MediaFile, seconds int) (bool, error) {
	return b.ask(ctx,
		"Process only the first part?",
		fmt.Sprintf("%s is %s. Trim it to the first %d minutes to speed things up?",
			file.Name, jobapi.FormatSize(file.Size), seconds/60),
	)
}

func (b *Bridge) ConfirmBackground(ctx context.Context, file jobapi.MediaFile) (bool, error) {
	return b.ask(ctx,
		"Process in the background?",
		fmt.Sprintf("%s is %s. Large files are transcribed as a background job, which can take several minutes.",
			file.Name, jobapi.FormatSize(file.Size)),
	)
}

func (b *Bridge) ask(ctx context.Context, title, detail string) (bool, error) {
	reply := make(chan bool, 1)
	if !b.emit(confirmMsg{title: title, detail: detail, reply: reply}) {
		return false, ErrDetached
	}

	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
