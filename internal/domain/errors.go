package domain

import "fmt"

// ErrorKind classifies a failure for the client-facing error notification.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindInvalidRequest
	KindEmptyMessage
	KindUnknownSender
	KindUploadFailed
	KindConversationNotFound
	KindPollNotFound
	KindInvalidOption
	KindAlreadyVoted
	KindNotFound
	KindBlocked
	KindCalleeOffline
	KindCallerOffline
	KindCalleeMultiDevice
	KindCallerMultiDevice
	KindAlreadyInCall
	KindRecipientGone
	KindRecipientOffline
	KindUpstream
)

// Error is the structured failure every handler reports. Message is safe to
// relay to the triggering connection.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// E creates a new error of the given kind.
func E(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapErr attaches a cause to a new error of the given kind.
func WrapErr(err error, kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: err}
}

// KindOf extracts the kind from an error chain, defaulting to KindInternal.
func KindOf(err error) ErrorKind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return KindInternal
}

// UserMessage returns the text relayed in error-notification. Internal
// failures are masked.
func UserMessage(err error) string {
	if e, ok := err.(*Error); ok && e.Kind != KindInternal {
		return e.Message
	}
	return "something went wrong, please try again"
}
