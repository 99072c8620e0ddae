package adapter

import (
	"context"
	"encoding/json"
	"errors"
)

// RemoteState is the raw state vocabulary of the execution service.
type RemoteState string

const (
	RemoteInQueue    RemoteState = "IN_QUEUE"
	RemoteInProgress RemoteState = "IN_PROGRESS"
	RemoteCompleted  RemoteState = "COMPLETED"
	RemoteFailed     RemoteState = "FAILED"
	RemoteCancelled  RemoteState = "CANCELLED"
	RemoteTimedOut   RemoteState = "TIMED_OUT"
)

// ErrRunNotFound is the distinct "expired or never existed" answer from the
// status endpoint. Callers treat it like a failed dispatch, not a plumbing error.
var ErrRunNotFound = errors.New("remote execution not found")

// RunStatus is one status-query round trip.
type RunStatus struct {
	State  RemoteState
	Output json.RawMessage // optional result payload
	Error  string          // optional error string, captured verbatim
}

// RunnerClient is the contract with the external GPU execution service.
// The service is opaque beyond dispatch/status/cancel.
type RunnerClient interface {
	// Dispatch submits a job descriptor plus a callback address and returns
	// the remote execution id.
	Dispatch(ctx context.Context, input map[string]any, webhookURL string) (string, error)
	// Status queries by remote execution id. Returns ErrRunNotFound when the
	// service no longer knows the id.
	Status(ctx context.Context, remoteID string) (*RunStatus, error)
	// Cancel asks the service to stop a run. Idempotent on the remote side.
	Cancel(ctx context.Context, remoteID string) error
}
