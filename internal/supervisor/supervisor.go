// Package supervisor launches the renderer and owns its lifetime.
//
// The renderer's stdout and stderr are diagnostics only. Each is drained on
// its own goroutine into the log until end of stream. Terminate kills the
// renderer's process group and returns only after both drains have finished
// and the process has been reaped.
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/sourcegraph/conc"
	"golang.org/x/sys/unix"

	fwerrors "github.com/conneroisu/fwif/internal/errors"
	"github.com/conneroisu/fwif/internal/logging"
)

// maxLineSize bounds a single diagnostic line. Longer lines are split.
const maxLineSize = 1024 * 1024

// Config describes how to launch the renderer.
type Config struct {
	// Path is the renderer executable. It is started with no arguments.
	Path string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env is appended to the inherited environment.
	Env []string
}

// Supervisor spawns renderer processes.
type Supervisor struct {
	config Config
	logger logging.Logger
}

// New creates a supervisor.
func New(config Config, logger logging.Logger) *Supervisor {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Supervisor{
		config: config,
		logger: logger.WithComponent("supervisor"),
	}
}

// Process is a running renderer.
type Process struct {
	cmd    *exec.Cmd
	logger logging.Logger

	drains conc.WaitGroup
	done   chan struct{}

	mu         sync.Mutex
	waitErr    error
	terminated bool
	killOnce   sync.Once
	killErr    error
}

// Spawn starts the renderer with env added to its environment. Cancelling
// ctx kills the renderer's process group.
func (s *Supervisor) Spawn(ctx context.Context, env ...string) (*Process, error) {
	if s.config.Path == "" {
		return nil, fwerrors.NewSupervisorError(fwerrors.CodeSpawnFailed, "renderer path is empty", nil)
	}

	path, err := exec.LookPath(s.config.Path)
	if err != nil {
		return nil, fwerrors.NewSupervisorError(fwerrors.CodeSpawnFailed, "renderer not found", err).
			WithContext("path", s.config.Path)
	}

	cmd := exec.CommandContext(ctx, path)
	cmd.Dir = s.config.Dir
	cmd.Env = append(append(os.Environ(), s.config.Env...), env...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return killGroup(cmd.Process.Pid)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fwerrors.NewSupervisorError(fwerrors.CodeSpawnFailed, "cannot capture stdout", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fwerrors.NewSupervisorError(fwerrors.CodeSpawnFailed, "cannot capture stderr", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fwerrors.NewSupervisorError(fwerrors.CodeSpawnFailed, "cannot start renderer", err).
			WithContext("path", path)
	}

	p := &Process{
		cmd:    cmd,
		logger: s.logger.WithComponent("renderer").With("pid", cmd.Process.Pid),
		done:   make(chan struct{}),
	}

	p.logger.Info(ctx, "Renderer started", "path", path)

	p.drains.Go(func() { p.drain(ctx, "stdout", stdout) })
	p.drains.Go(func() { p.drain(ctx, "stderr", stderr) })
	go p.wait(ctx)

	return p, nil
}

// drain copies lines from r to the log until end of stream.
func (p *Process) drain(ctx context.Context, stream string, r io.Reader) {
	logger := p.logger.With("stream", stream)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		if stream == "stderr" {
			logger.Warn(ctx, nil, scanner.Text())
		} else {
			logger.Info(ctx, scanner.Text())
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Warn(ctx, err, "Diagnostic stream unreadable, discarding the rest")
		_, _ = io.Copy(io.Discard, r)
	}
}

// wait joins both drains before reaping; os/exec closes the pipes in Wait.
func (p *Process) wait(ctx context.Context) {
	p.drains.Wait()
	err := p.cmd.Wait()

	p.mu.Lock()
	terminated := p.terminated
	if !terminated {
		p.waitErr = err
	}
	p.mu.Unlock()

	switch {
	case terminated:
		p.logger.Debug(ctx, "Renderer terminated")
	case err != nil:
		p.logger.Warn(ctx, err, "Renderer exited", "exit_code", p.cmd.ProcessState.ExitCode())
	default:
		p.logger.Info(ctx, "Renderer exited", "exit_code", 0)
	}

	close(p.done)
}

// Pid returns the renderer's process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Done is closed once the renderer has exited and both drains finished.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Err returns why the renderer exited on its own. It is nil while the
// renderer runs, after a clean exit and after Terminate.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.waitErr == nil {
		return nil
	}

	return fwerrors.NewSupervisorError(fwerrors.CodeRendererExited, "renderer exited", p.waitErr)
}

// Terminate kills the renderer's process group and waits until the process
// is reaped and both drains have returned. It is safe to call repeatedly and
// after the renderer already exited.
func (p *Process) Terminate() error {
	p.killOnce.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}

		p.mu.Lock()
		p.terminated = true
		p.mu.Unlock()

		if err := killGroup(p.cmd.Process.Pid); err != nil {
			p.killErr = fmt.Errorf("kill renderer: %w", err)
		}
	})

	<-p.done

	return p.killErr
}

// killGroup sends SIGKILL to the process group led by pid, falling back to
// the process alone. A group that is already gone is not an error.
func killGroup(pid int) error {
	err := unix.Kill(-pid, unix.SIGKILL)
	if err == nil || errors.Is(err, unix.ESRCH) {
		return nil
	}

	err = unix.Kill(pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}

	return err
}
