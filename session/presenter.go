package session

import (
	"context"

	"audiobrief/jobapi"
)

// Sender identifies who wrote a chat message
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "ai"
)

// Presenter renders session events. Implementations must be safe for use
// from multiple goroutines and must not call back into the session
// synchronously.
type Presenter interface {
	RenderProgress(percent float64, status string)
	RenderTranscript(text string)
	RenderSummary(text string)
	RenderError(kind Kind, message string)
	AppendChatMessage(text string, sender Sender)

	// SetLoading toggles the transient indicator for op
	SetLoading(op Operation, loading bool)

	// ClearSections hides transcript, summary and chat before a new upload
	ClearSections()
}

// Confirmer asks the user to accept large-file handling
type Confirmer interface {
	// ConfirmTrim asks whether to process only the first seconds of audio
	ConfirmTrim(ctx context.Context, file jobapi.MediaFile, seconds int) (bool, error)

	// ConfirmBackground asks whether to process the file as a background job
	ConfirmBackground(ctx context.Context, file jobapi.MediaFile) (bool, error)
}

// AutoConfirm answers confirmations without asking
type AutoConfirm struct {
	Trim       bool
	Background bool
}

func (a AutoConfirm) ConfirmTrim(context.Context, jobapi.MediaFile, int) (bool, error) {
	return a.Trim, nil
}

func (a AutoConfirm) ConfirmBackground(context.Context, jobapi.MediaFile) (bool, error) {
	return a.Background, nil
}

// NopPresenter discards every event
type NopPresenter struct{}

func (NopPresenter) RenderProgress(float64, string) {}
func (NopPresenter) RenderTranscript(string) {}
func (NopPresenter) RenderSummary(string) {}
func (NopPresenter) RenderError(Kind, string) {}
func (NopPresenter) AppendChatMessage(string, Sender) {}
func (NopPresenter) SetLoading(Operation, bool) {}
func (NopPresenter) ClearSections() {}
