package job

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/ragsync/ragsync/internal/errors"
)

// LocalRuntime runs jobs as child processes, one directory per job under
// the work dir. The directory holds the definition, stdout.log, and
// stderr.log; a file lock marks it as owned by a live runtime.
type LocalRuntime struct {
	workDir string

	mu   sync.Mutex
	jobs map[string]*localJob
}

type localJob struct {
	def    Definition
	dir    string
	cmd    *exec.Cmd
	lock   *flock.Flock
	stdout *os.File
	stderr *os.File

	mu         sync.Mutex
	status     Status
	exitCode   int
	runErr     string
	startedAt  time.Time
	finishedAt time.Time
}

// NewLocalRuntime creates a runtime rooted at workDir.
func NewLocalRuntime(workDir string) (*LocalRuntime, error) {
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "ragsync-jobs")
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeJobFailed, err)
	}
	return &LocalRuntime{workDir: workDir, jobs: make(map[string]*localJob)}, nil
}

func newJobID(name string) string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return name + "-" + hex.EncodeToString(buf)
}

// Submit starts the job process and begins tracking it.
func (r *LocalRuntime) Submit(ctx context.Context, def Definition) (string, error) {
	if len(def.Command) == 0 {
		return "", errors.New(errors.ErrCodeInvalidInput, "job has no command", nil)
	}

	id := newJobID(def.Name)
	dir := filepath.Join(r.workDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(errors.ErrCodeJobFailed, err)
	}

	lock := flock.New(filepath.Join(dir, "job.lock"))
	held, err := lock.TryLock()
	if err != nil || !held {
		return "", errors.New(errors.ErrCodeJobFailed,
			fmt.Sprintf("cannot lock job dir %s", dir), err)
	}

	defBytes, err := yaml.Marshal(def)
	if err == nil {
		err = os.WriteFile(filepath.Join(dir, "definition.yaml"), defBytes, 0o644)
	}
	if err != nil {
		_ = lock.Unlock()
		return "", errors.Wrap(errors.ErrCodeJobFailed, err)
	}

	stdout, err := os.Create(filepath.Join(dir, "stdout.log"))
	if err != nil {
		_ = lock.Unlock()
		return "", errors.Wrap(errors.ErrCodeJobFailed, err)
	}
	stderr, err := os.Create(filepath.Join(dir, "stderr.log"))
	if err != nil {
		stdout.Close()
		_ = lock.Unlock()
		return "", errors.Wrap(errors.ErrCodeJobFailed, err)
	}

	cmd := exec.Command(def.Command[0], def.Command[1:]...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = os.Environ()
	for k, v := range def.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	j := &localJob{
		def:    def,
		dir:    dir,
		cmd:    cmd,
		lock:   lock,
		stdout: stdout,
		stderr: stderr,
		status: StatusSubmitted,
	}

	if err := cmd.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		_ = lock.Unlock()
		return "", errors.Wrap(errors.ErrCodeJobFailed, err)
	}
	j.status = StatusRunning
	j.startedAt = time.Now()

	r.mu.Lock()
	r.jobs[id] = j
	r.mu.Unlock()

	go j.reap(def.Resources.Timeout)

	slog.Info("job submitted",
		slog.String("id", id),
		slog.String("operation", def.Operation))
	return id, nil
}

// reap waits for the process and records its outcome. A positive timeout
// kills the process when exceeded.
func (j *localJob) reap(timeout time.Duration) {
	var timer *time.Timer
	if timeout > 0 {
		timer = time.AfterFunc(timeout, func() {
			_ = j.cmd.Process.Kill()
		})
	}
	err := j.cmd.Wait()
	if timer != nil {
		timer.Stop()
	}
	j.stdout.Close()
	j.stderr.Close()

	j.mu.Lock()
	defer j.mu.Unlock()
	j.finishedAt = time.Now()
	if j.status == StatusCancelled {
		return
	}
	if err != nil {
		j.status = StatusFailed
		j.runErr = err.Error()
		j.exitCode = j.cmd.ProcessState.ExitCode()
		return
	}
	j.status = StatusSucceeded
}

func (r *LocalRuntime) find(id string) (*localJob, error) {
	r.mu.Lock()
	j, ok := r.jobs[id]
	r.mu.Unlock()
	if !ok {
		return nil, errors.New(errors.ErrCodeJobFailed,
			fmt.Sprintf("unknown job %s", id), nil)
	}
	return j, nil
}

func (r *LocalRuntime) Status(_ context.Context, id string) (Status, error) {
	j, err := r.find(id)
	if err != nil {
		return StatusUnknown, err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status, nil
}

func (r *LocalRuntime) Result(_ context.Context, id string) (*Result, error) {
	j, err := r.find(id)
	if err != nil {
		return nil, err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	out, _ := os.ReadFile(filepath.Join(j.dir, "stdout.log"))
	errOut, _ := os.ReadFile(filepath.Join(j.dir, "stderr.log"))
	return &Result{
		JobID:      id,
		Status:     j.status,
		Output:     string(out),
		Error:      strings.TrimSpace(j.runErr + "\n" + string(errOut)),
		ExitCode:   j.exitCode,
		StartedAt:  j.startedAt,
		FinishedAt: j.finishedAt,
	}, nil
}

func (r *LocalRuntime) Cancel(_ context.Context, id string) error {
	j, err := r.find(id)
	if err != nil {
		return err
	}

	j.mu.Lock()
	if j.status.Terminal() {
		j.mu.Unlock()
		return nil
	}
	j.status = StatusCancelled
	j.mu.Unlock()

	if err := j.cmd.Process.Kill(); err != nil {
		return errors.Wrap(errors.ErrCodeJobFailed, err)
	}
	return nil
}

func (r *LocalRuntime) Logs(_ context.Context, id string, tail int) (string, error) {
	j, err := r.find(id)
	if err != nil {
		return "", err
	}

	out, err := os.ReadFile(filepath.Join(j.dir, "stdout.log"))
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeJobFailed, err)
	}
	if tail <= 0 {
		return string(out), nil
	}
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	if len(lines) > tail {
		lines = lines[len(lines)-tail:]
	}
	return strings.Join(lines, "\n") + "\n", nil
}

func (r *LocalRuntime) Wait(ctx context.Context, id string, timeout time.Duration) (*Result, error) {
	return waitForTerminal(ctx, r, id, timeout)
}

// Cleanup removes the job directory. Running jobs are cancelled first.
func (r *LocalRuntime) Cleanup(ctx context.Context, id string) error {
	j, err := r.find(id)
	if err != nil {
		return err
	}

	j.mu.Lock()
	terminal := j.status.Terminal()
	j.mu.Unlock()
	if !terminal {
		if err := r.Cancel(ctx, id); err != nil {
			return err
		}
	}

	_ = j.lock.Unlock()
	if err := os.RemoveAll(j.dir); err != nil {
		return errors.Wrap(errors.ErrCodeJobFailed, err)
	}
	r.mu.Lock()
	delete(r.jobs, id)
	r.mu.Unlock()
	return nil
}
