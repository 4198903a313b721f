package live

import "fmt"

// FailureKind classifies how a session failed.
type FailureKind int

const (
	// FailurePermissionDenied means microphone access was refused.
	FailurePermissionDenied FailureKind = iota
	// FailureConnection means the transport could not be established.
	FailureConnection
	// FailureQuota means the service rejected the session for billing or
	// quota reasons.
	FailureQuota
	// FailureTransport means an established transport broke mid-session.
	FailureTransport
)

func (k FailureKind) String() string {
	switch k {
	case FailurePermissionDenied:
		return "permission_denied"
	case FailureConnection:
		return "connection_failed"
	case FailureQuota:
		return "quota_exceeded"
	case FailureTransport:
		return "transport_error"
	default:
		return "unknown"
	}
}

// SessionError is a terminal session failure. Message is suitable for showing
// to an end user; Err carries the underlying cause when one exists.
type SessionError struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SessionError) Unwrap() error { return e.Err }

func permissionDeniedError(err error) *SessionError {
	return &SessionError{
		Kind:    FailurePermissionDenied,
		Message: "Microphone access denied. Please allow microphone access to use voice mode.",
		Err:     err,
	}
}

func connectionFailedError(err error) *SessionError {
	return &SessionError{
		Kind:    FailureConnection,
		Message: fmt.Sprintf("Connection failed: %v. Please try again.", err),
		Err:     err,
	}
}

func quotaExceededError() *SessionError {
	return &SessionError{
		Kind:    FailureQuota,
		Message: "Voice quota exceeded. Please enable billing on your project to continue using voice mode.",
	}
}

func transportError(err error) *SessionError {
	return &SessionError{
		Kind:    FailureTransport,
		Message: "Connection error occurred. Please check your internet connection and try again.",
		Err:     err,
	}
}
