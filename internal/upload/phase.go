// Package upload drives one BEP artifact through the ingest protocol:
// init, direct-to-storage upload, completion notice, status polling, and
// artifact retrieval. One session is active at a time; a new upload
// supersedes and cancels the previous one.
package upload

import "fmt"

// Phase is a named state of the upload/processing state machine. Phases
// advance strictly in declaration order; the only skip allowed is
// Finalizing straight to a terminal phase when the completion notice
// already reports a terminal status.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseInitializing
	PhaseUploadingToStorage
	PhaseFinalizing
	PhaseProcessing
	PhaseCompleted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseInitializing:
		return "Initializing"
	case PhaseUploadingToStorage:
		return "UploadingToStorage"
	case PhaseFinalizing:
		return "Finalizing"
	case PhaseProcessing:
		return "Processing"
	case PhaseCompleted:
		return "Completed"
	case PhaseFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Terminal reports whether no further transitions can happen.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// ErrorKind classifies session failures by the protocol step that
// produced them.
type ErrorKind string

const (
	// KindInit covers init-request failures and local pre-validation.
	// Not retried; the user must resubmit.
	KindInit ErrorKind = "InitError"
	// KindStorageUpload is a failed write to the one-time upload target.
	KindStorageUpload ErrorKind = "StorageUploadError"
	// KindCompletionNotify is a failed completion notice.
	KindCompletionNotify ErrorKind = "CompletionNotifyError"
	// KindProcessing is a server-reported job failure; Detail carries
	// the server's diagnostic.
	KindProcessing ErrorKind = "ProcessingError"
	// KindArtifactFetch is a partial artifact retrieval failure. It does
	// not revert the Completed phase.
	KindArtifactFetch ErrorKind = "ArtifactFetchError"
)

// SessionError is the user-visible failure diagnostic: the phase it
// happened in plus the underlying detail, without leaking more of the
// session identity than a retry needs.
type SessionError struct {
	Kind   ErrorKind
	Phase  Phase
	Detail string
	Err    error
}

func (e *SessionError) Error() string {
	msg := fmt.Sprintf("%s during %s", e.Kind, e.Phase)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SessionError) Unwrap() error { return e.Err }
