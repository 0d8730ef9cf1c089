package errors

import "github.com/pkg/errors"

var (
	// precondition errors, never retried
	ErrAccountNotFound      = errors.New("email account not found")
	ErrAccountInactive      = errors.New("email account is inactive")
	ErrMissingCredentials   = errors.New("no usable credentials for email account")
	ErrMissingServerConfig  = errors.New("missing imap server details for email account")
	ErrCredential           = errors.New("credential decryption failed")
	ErrCredentialKeyInvalid = errors.New("credential key is missing or invalid")

	// mailbox errors
	ErrMailboxConnection = errors.New("mailbox connection failed")
	ErrMailboxFetch      = errors.New("mailbox fetch failed")

	// parser drop signals
	ErrMalformedMessage = errors.New("malformed message")
	ErrMissingMessageID = errors.New("message-id header missing")

	// ai backend errors
	ErrAINotConfigured      = errors.New("ai backend not configured")
	ErrAIServiceUnavailable = errors.New("ai backend call failed")
	ErrAIInvalidResponse    = errors.New("ai backend returned an invalid payload")

	// run coordination
	ErrRunInProgress = errors.New("ingestion run already in progress for account")
)

// IsPrecondition reports whether err is a non-retryable precondition failure.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrAccountInactive) ||
		errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrMissingServerConfig) ||
		errors.Is(err, ErrCredential)
}

// IsDrop reports whether err is a per-message parse failure.
func IsDrop(err error) bool {
	return errors.Is(err, ErrMalformedMessage) || errors.Is(err, ErrMissingMessageID)
}

// IsAIHardFailure distinguishes a failed call from a call whose payload violated the schema.
func IsAIHardFailure(err error) bool {
	return errors.Is(err, ErrAINotConfigured) || errors.Is(err, ErrAIServiceUnavailable)
}
