package sdr

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/roman-kulish/spectrum-sweep/internal/sdr/driver"
)

// ErrJoinTimeout is returned when the reader goroutine did not finish in time
// after the process was stopped. The goroutine is abandoned.
var ErrJoinTimeout = errors.New("reader did not finish in time")

// process owns one run of the external tool. Both output streams are plain
// os.Pipe pairs so that cmd.Wait never closes them under the readers: stdout
// reaches EOF only once every writer, the tool included, has gone away.
type process struct {
	cmd    *exec.Cmd
	stdout *os.File
	stderr *os.File

	exited  chan struct{} // closed once cmd.Wait returned
	waitErr error

	finished chan struct{} // closed once stdout was read to the end and the process reaped
	readErr  error

	failure    chan string   // first stderr line recognised as a failure
	stderrDone chan struct{} // closed once stderr was read to the end
}

// spawn starts cmd with its output wired to fresh pipes.
func spawn(cmd *exec.Cmd) (p *process, err error) {
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("error creating stdout pipe: %w", err)
	}

	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		_ = stdoutR.Close()
		_ = stdoutW.Close()
		return nil, fmt.Errorf("error creating stderr pipe: %w", err)
	}

	growPipe(stdoutR)
	setProcessGroup(cmd)

	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	err = cmd.Start()

	// the child holds its own copies of the write ends
	_ = stdoutW.Close()
	_ = stderrW.Close()

	if err != nil {
		_ = stdoutR.Close()
		_ = stderrR.Close()
		return nil, err
	}

	p = &process{
		cmd:        cmd,
		stdout:     stdoutR,
		stderr:     stderrR,
		exited:     make(chan struct{}),
		finished:   make(chan struct{}),
		failure:    make(chan string, 1),
		stderrDone: make(chan struct{}),
	}

	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()

	return p, nil
}

// read runs fn over stdout, then reaps the process. EOF on stdout is the
// only signal that the tool is gone, whether it was stopped or crashed.
func (p *process) read(fn func(r io.Reader) error) {
	defer close(p.finished)

	p.readErr = fn(p.stdout)
	_ = p.stdout.Close()

	<-p.exited
}

// watchStderr logs every stderr line and reports the first one isFailure
// recognises. It returns when the stream is closed.
func (p *process) watchStderr(device string, isFailure func(string) bool, logger *slog.Logger) {
	defer close(p.stderrDone)
	defer p.stderr.Close()

	scanner := bufio.NewScanner(p.stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if isFailure(line) {
			logger.Error(fmt.Sprintf("%s >> %s", device, line))

			select {
			case p.failure <- line:
			default:
			}
			continue
		}

		logger.Debug(fmt.Sprintf("%s >> %s", device, line))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		logger.Warn(fmt.Sprintf("error reading stderr: %s", err))
	}
}

// exitCode returns the exit code, or -1 while the process is running.
func (p *process) exitCode() int {
	select {
	case <-p.exited:
		return p.cmd.ProcessState.ExitCode()
	default:
		return -1
	}
}

// stop terminates the process, escalating to a kill after grace, then waits
// up to join for the reader to finish.
func (p *process) stop(grace, join time.Duration, logger *slog.Logger) error {
	select {
	case <-p.exited:
	default:
		if err := terminate(p.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
			logger.Warn(fmt.Sprintf("error terminating process: %s", err))
		}

		timer := time.NewTimer(grace)
		select {
		case <-p.exited:
			timer.Stop()

		case <-timer.C:
			logger.Warn("process did not terminate in time, killing", slog.Duration("grace", grace))
			if err := kill(p.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
				logger.Error(fmt.Sprintf("error killing process: %s", err))
			}
		}
	}

	timer := time.NewTimer(join)
	defer timer.Stop()

	select {
	case <-p.finished:
		return nil

	case <-timer.C:
		// a grandchild may still hold the pipe, closing our end unblocks the reader
		_ = p.stdout.Close()
		_ = p.stderr.Close()
		logger.Error("abandoning reader", slog.Duration("timeout", join))
		return ErrJoinTimeout
	}
}

// spawnError builds the error returned by Start when the tool died right
// after spawn or reported that the radio is unavailable.
func spawnError(runtime string, p *process, failure string) error {
	if failure != "" {
		return driver.NewSpawnError(runtime, "device unavailable", errors.New(failure))
	}
	return driver.NewSpawnError(runtime, fmt.Sprintf("exited with code %d", p.exitCode()), p.waitErr)
}
