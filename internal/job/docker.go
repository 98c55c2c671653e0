package job

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ragsync/ragsync/internal/errors"
)

// DefaultImage is the worker image used when neither the definition nor the
// configuration names one.
const DefaultImage = "ragsync/worker:latest"

// DockerRuntime drives jobs through the docker CLI. Container names double
// as job ids.
type DockerRuntime struct {
	image string

	// For testing: override command execution
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewDockerRuntime creates a runtime with the given default image.
func NewDockerRuntime(image string) *DockerRuntime {
	if image == "" {
		image = DefaultImage
	}
	return &DockerRuntime{
		image:       image,
		execCommand: exec.CommandContext,
	}
}

func (r *DockerRuntime) docker(ctx context.Context, args ...string) (string, error) {
	cmd := r.execCommand(ctx, "docker", args...)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	if err := cmd.Run(); err != nil {
		return "", errors.New(errors.ErrCodeJobFailed,
			fmt.Sprintf("docker %s: %s", args[0], strings.TrimSpace(errBuf.String())), err)
	}
	return strings.TrimSpace(out.String()), nil
}

func (r *DockerRuntime) Submit(ctx context.Context, def Definition) (string, error) {
	if len(def.Command) == 0 {
		return "", errors.New(errors.ErrCodeInvalidInput, "job has no command", nil)
	}

	id := newJobID(def.Name)
	image := def.Image
	if image == "" {
		image = r.image
	}

	args := []string{"run", "--detach", "--name", id}
	if def.Resources.CPU != "" {
		args = append(args, "--cpus", def.Resources.CPU)
	}
	if def.Resources.Memory != "" {
		args = append(args, "--memory", def.Resources.Memory)
	}
	if def.Resources.GPU > 0 {
		args = append(args, "--gpus", strconv.Itoa(def.Resources.GPU))
	}
	for k, v := range def.Env {
		args = append(args, "--env", k+"="+v)
	}
	args = append(args, image)
	args = append(args, def.Command...)

	if _, err := r.docker(ctx, args...); err != nil {
		return "", err
	}
	slog.Info("job submitted",
		slog.String("id", id),
		slog.String("image", image))
	return id, nil
}

func (r *DockerRuntime) Status(ctx context.Context, id string) (Status, error) {
	out, err := r.docker(ctx, "inspect", "--format", "{{.State.Status}} {{.State.ExitCode}}", id)
	if err != nil {
		return StatusUnknown, err
	}

	state, codeStr, _ := strings.Cut(out, " ")
	switch state {
	case "created":
		return StatusSubmitted, nil
	case "running", "restarting", "paused":
		return StatusRunning, nil
	case "exited", "dead":
		if codeStr == "0" {
			return StatusSucceeded, nil
		}
		if codeStr == "137" {
			// SIGKILL via docker stop
			return StatusCancelled, nil
		}
		return StatusFailed, nil
	default:
		return StatusUnknown, nil
	}
}

func (r *DockerRuntime) Result(ctx context.Context, id string) (*Result, error) {
	status, err := r.Status(ctx, id)
	if err != nil {
		return nil, err
	}

	codeStr, err := r.docker(ctx, "inspect", "--format", "{{.State.ExitCode}}", id)
	if err != nil {
		return nil, err
	}
	exitCode, _ := strconv.Atoi(codeStr)

	logs, err := r.Logs(ctx, id, 0)
	if err != nil {
		return nil, err
	}

	res := &Result{JobID: id, Status: status, Output: logs, ExitCode: exitCode}
	if started, err := r.docker(ctx, "inspect", "--format", "{{.State.StartedAt}}", id); err == nil {
		if t, perr := time.Parse(time.RFC3339Nano, started); perr == nil {
			res.StartedAt = t
		}
	}
	if finished, err := r.docker(ctx, "inspect", "--format", "{{.State.FinishedAt}}", id); err == nil {
		if t, perr := time.Parse(time.RFC3339Nano, finished); perr == nil {
			res.FinishedAt = t
		}
	}
	return res, nil
}

func (r *DockerRuntime) Cancel(ctx context.Context, id string) error {
	_, err := r.docker(ctx, "stop", id)
	return err
}

func (r *DockerRuntime) Logs(ctx context.Context, id string, tail int) (string, error) {
	args := []string{"logs"}
	if tail > 0 {
		args = append(args, "--tail", strconv.Itoa(tail))
	}
	args = append(args, id)
	return r.docker(ctx, args...)
}

func (r *DockerRuntime) Wait(ctx context.Context, id string, timeout time.Duration) (*Result, error) {
	return waitForTerminal(ctx, r, id, timeout)
}

func (r *DockerRuntime) Cleanup(ctx context.Context, id string) error {
	_, err := r.docker(ctx, "rm", "--force", id)
	return err
}
