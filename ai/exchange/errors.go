package exchange

import (
	"errors"
	"fmt"
)

var (
	// ErrNothingToSend is returned when the text is blank and nothing is attached.
	ErrNothingToSend = errors.New("nothing to send")
	// ErrNoChatSelected is returned when a send is attempted with no chat open.
	ErrNoChatSelected = errors.New("no chat selected")
	// ErrExchangeInFlight is returned when the chat is already waiting for a reply.
	ErrExchangeInFlight = errors.New("an exchange is already in flight for this chat")
	// ErrChatNotFound is returned for chats that do not exist or belong to someone else.
	ErrChatNotFound = errors.New("chat not found")
)

// Step names a pipeline stage that can abort an exchange.
type Step string

const (
	StepEncode           Step = "encode"
	StepPersistUser      Step = "persist_user"
	StepComplete         Step = "complete"
	StepPersistAssistant Step = "persist_assistant"
)

// StepError is the failure result of an exchange. Turns persisted by
// earlier steps are kept.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
