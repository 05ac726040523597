package session

import (
	"context"
	"strings"
	"time"

	"audiobrief/jobapi"

	"github.com/rs/zerolog"
)

// ChatAPI is the part of the remote service that answers questions
type ChatAPI interface {
	Ask(ctx context.Context, req jobapi.AskRequest) (*jobapi.AskResponse, error)
}

// ChatApology is appended to the conversation when a question fails
const ChatApology = "Sorry, I couldn't process your question. Please try again."

// ChatController answers questions about the current transcript
type ChatController struct {
	api ChatAPI
	requester
}

// NewChatController creates a chat controller bound to sess
func NewChatController(api ChatAPI, sess *Session, presenter Presenter, timeout time.Duration, log zerolog.Logger) *ChatController {
	if timeout <= 0 {
		timeout = DefaultConfig().RequestTimeout
	}
	return &ChatController{
		api: api,
		requester: requester{
			sess:      sess,
			presenter: presenter,
			timeout:   timeout,
			log:       log.With().Str("component", "chat").Logger(),
		},
	}
}

// Ask sends question and appends the exchange to the conversation.
// Blank questions, a missing transcript or a busy session are rejected.
func (c *ChatController) Ask(ctx context.Context, question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return validationError(OpAsk, ErrEmptyQuestion, "Please enter a question")
	}
	if c.sess.Transcript() == "" {
		return validationError(OpAsk, ErrNoTranscript, "Transcribe an audio file first")
	}
	if c.sess.Busy() {
		return validationError(OpAsk, ErrBusy, "Please wait for the current operation to finish")
	}

	c.presenter.AppendChatMessage(question, SenderUser)

	answer, tok, err := c.run(ctx, OpAsk, "Failed to get answer", func(ctx context.Context, transcript string, id jobapi.RecordID) (string, error) {
		resp, err := c.api.Ask(ctx, jobapi.AskRequest{
			Transcript:      transcript,
			Question:        question,
			TranscriptionID: id,
		})
		if err != nil {
			return "", err
		}
		return resp.Answer, nil
	})
	if err != nil {
		if KindOf(err) != Validation {
			c.presenter.AppendChatMessage(ChatApology, SenderAssistant)
		}
		return err
	}

	if c.sess.release(tok) {
		c.presenter.AppendChatMessage(answer, SenderAssistant)
	}
	return nil
}
