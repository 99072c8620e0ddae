// File: internal/usecase/health_uc.go
package usecase

import (
	"bytes"
	"context"
	"errors"

	"github.com/rs/zerolog"

	"video-analysis-platform/internal/domain/model"
	"video-analysis-platform/internal/domain/ports/adapter"
	"video-analysis-platform/internal/infra/metrics"
)

// Compile-time check
var _ WorkerHealthUseCase = (*workerHealthUC)(nil)

// HealthVerdict is the normalized liveness classification of one remote run.
type HealthVerdict struct {
	IsAlive               bool
	CompletedSuccessfully bool
	WorkerDied            bool
	ShouldRetry           bool
	ErrorMessage          string
	Category              model.ErrorCategory
	RemoteState           adapter.RemoteState
	Output                []byte
}

type WorkerHealthUseCase interface {
	// Check queries the execution service and classifies the run's liveness.
	// A transport-level failure of the query itself is returned as an error;
	// everything the service actually said becomes a verdict.
	Check(ctx context.Context, remoteID string) (*HealthVerdict, error)
}

type workerHealthUC struct {
	runner adapter.RunnerClient
	log    *zerolog.Logger
}

func NewWorkerHealthUseCase(runner adapter.RunnerClient, logger *zerolog.Logger) *workerHealthUC {
	return &workerHealthUC{runner: runner, log: logger}
}

func (u *workerHealthUC) Check(ctx context.Context, remoteID string) (*HealthVerdict, error) {
	st, err := u.runner.Status(ctx, remoteID)
	if err != nil {
		if errors.Is(err, adapter.ErrRunNotFound) {
			// The service no longer knows the run: same handling as a failed
			// dispatch, but with its own category so operators can tell
			// "never ran" apart from "ran and failed".
			v := &HealthVerdict{
				WorkerDied:   true,
				ShouldRetry:  true,
				ErrorMessage: "remote execution not found (expired or never started)",
				Category:     model.ErrCategoryNeverRan,
			}
			metrics.IncHealthVerdict(string(v.Category))
			return v, nil
		}
		return nil, err
	}

	v := &HealthVerdict{RemoteState: st.State, Output: st.Output}
	switch st.State {
	case adapter.RemoteInQueue, adapter.RemoteInProgress:
		v.IsAlive = true

	case adapter.RemoteCompleted:
		if emptyOutput(st.Output) {
			// An execution-layer "done" is not trusted without corroborating
			// output: a clean process exit does not guarantee the final
			// artifact write finished. Treat it as the worker dying silently
			// during its last step.
			v.WorkerDied = true
			v.ShouldRetry = true
			v.Category = model.ErrCategoryWorkerDied
			v.ErrorMessage = "worker reported completion but produced no output"
		} else {
			v.CompletedSuccessfully = true
		}

	case adapter.RemoteFailed:
		v.WorkerDied = true
		v.ShouldRetry = true
		v.Category = model.ErrCategoryRemote
		v.ErrorMessage = st.Error

	case adapter.RemoteTimedOut:
		v.WorkerDied = true
		v.ShouldRetry = true
		v.Category = model.ErrCategoryTimeout
		v.ErrorMessage = st.Error
		if v.ErrorMessage == "" {
			v.ErrorMessage = "remote execution timed out"
		}

	case adapter.RemoteCancelled:
		// An explicit cancellation is not a failure; terminal, not retryable.
		v.ErrorMessage = st.Error

	default:
		// Unknown vocabulary from the service; keep polling rather than guess.
		v.IsAlive = true
		if u.log != nil {
			u.log.Warn().Str("remote_id", remoteID).Str("state", string(st.State)).Msg("unknown remote state")
		}
	}

	metrics.IncHealthVerdict(verdictLabel(v))
	return v, nil
}

func emptyOutput(out []byte) bool {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return true
	}
	switch string(trimmed) {
	case "null", "{}", "[]", `""`:
		return true
	}
	return false
}

func verdictLabel(v *HealthVerdict) string {
	switch {
	case v.CompletedSuccessfully:
		return "success"
	case v.WorkerDied:
		return string(v.Category)
	case v.IsAlive:
		return "alive"
	default:
		return "cancelled"
	}
}
