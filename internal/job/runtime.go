package job

import (
	"context"
	"fmt"
	"time"

	"github.com/ragsync/ragsync/internal/config"
	"github.com/ragsync/ragsync/internal/errors"
)

// Status is the lifecycle state of a submitted job.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusSubmitted Status = "Submitted"
	StatusRunning   Status = "Running"
	StatusSucceeded Status = "Succeeded"
	StatusFailed    Status = "Failed"
	StatusCancelled Status = "Cancelled"
	StatusUnknown   Status = "Unknown"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Result is the outcome of a finished job.
type Result struct {
	JobID      string
	Status     Status
	Output     string
	Error      string
	ExitCode   int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Runtime executes job definitions somewhere.
type Runtime interface {
	// Submit starts the job and returns its id.
	Submit(ctx context.Context, def Definition) (string, error)

	// Status reports the current state of a job.
	Status(ctx context.Context, id string) (Status, error)

	// Result returns the outcome of a job. Valid once the job is terminal.
	Result(ctx context.Context, id string) (*Result, error)

	// Cancel stops a running job.
	Cancel(ctx context.Context, id string) error

	// Logs returns up to tail lines of the job's output; tail <= 0 means
	// everything.
	Logs(ctx context.Context, id string, tail int) (string, error)

	// Wait blocks until the job is terminal or the timeout elapses.
	Wait(ctx context.Context, id string, timeout time.Duration) (*Result, error)

	// Cleanup removes the job's working state.
	Cleanup(ctx context.Context, id string) error
}

// NewRuntime selects a runtime from configuration.
func NewRuntime(cfg config.RuntimeConfig) (Runtime, error) {
	switch cfg.Kind {
	case "", "local":
		return NewLocalRuntime(cfg.WorkDir)
	case "docker":
		return NewDockerRuntime(cfg.Image), nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("unknown runtime kind %q", cfg.Kind), nil).
			WithSuggestion("use \"local\" or \"docker\"")
	}
}

// pollInterval is how often Wait checks for completion.
const pollInterval = 100 * time.Millisecond

// waitForTerminal polls Status until terminal, then fetches the Result.
func waitForTerminal(ctx context.Context, r Runtime, id string, timeout time.Duration) (*Result, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		status, err := r.Status(ctx, id)
		if err != nil {
			return nil, err
		}
		if status.Terminal() {
			return r.Result(ctx, id)
		}
		if timeout > 0 && time.Now().After(deadline) {
			return nil, errors.New(errors.ErrCodeJobFailed,
				fmt.Sprintf("job %s did not finish within %s", id, timeout), nil)
		}

		select {
		case <-ctx.Done():
			return nil, errors.Cancelled(ctx.Err())
		case <-ticker.C:
		}
	}
}
