package connection

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/dshills/puppetext/internal/logging"
)

// ProcessSpec describes how to launch the language server.
type ProcessSpec struct {
	Command string
	Args    []string
	Env     []string
	Dir     string
}

// process is a running server with its pipes.
type process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	exited  chan struct{}
	waitErr error
}

// startProcess launches spec and forwards its standard error to logger.
func startProcess(spec ProcessSpec, logger *logging.Logger) (*process, error) {
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Env = spec.Env
	cmd.Dir = spec.Dir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("start process: %w", err)
	}
	logger.Debug("started %s (pid %d)", spec.Command, cmd.Process.Pid)

	out := &drainedReader{ReadCloser: stdout, done: make(chan struct{})}
	p := &process{
		cmd:    cmd,
		stdin:  stdin,
		stdout: out,
		exited: make(chan struct{}),
	}

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			logger.Debug("server: %s", scanner.Text())
		}
	}()
	go func() {
		// Wait closes the pipes, so both readers must be finished first.
		<-stderrDone
		<-out.done
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()
	return p, nil
}

// drainedReader closes done once its reader has hit the end of the stream,
// failed, or been closed.
type drainedReader struct {
	io.ReadCloser
	once sync.Once
	done chan struct{}
}

func (r *drainedReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if err != nil {
		r.finish()
	}
	return n, err
}

func (r *drainedReader) Close() error {
	err := r.ReadCloser.Close()
	r.finish()
	return err
}

func (r *drainedReader) finish() {
	r.once.Do(func() { close(r.done) })
}

// stop closes stdin, gives the process a moment to exit on its own and then
// kills it. It returns once the process has been reaped.
func (p *process) stop(ctx context.Context) {
	p.stdin.Close()
	grace := time.NewTimer(time.Second)
	defer grace.Stop()
	select {
	case <-p.exited:
		return
	case <-grace.C:
	case <-ctx.Done():
	}
	_ = p.cmd.Process.Kill()
	<-p.exited
}
