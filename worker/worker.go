// Package worker invokes out-of-process workers over a stdin/stdout byte
// protocol: one JSON payload in, one JSON object (or raw bytes) out, success
// signalled solely by exit code 0. Each invocation spawns its own process;
// there is no long-lived worker.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Operation names a configured worker.
type Operation string

const (
	OpChat        Operation = "chat"
	OpScrape      Operation = "scrape"
	OpReindex     Operation = "reindex"
	OpProcessFile Operation = "process-file"
	OpTTS         Operation = "tts"
)

// Status classifies the result of one invocation.
type Status int

const (
	// StatusOK: exit 0 with a usable payload.
	StatusOK Status = iota
	// StatusDegraded: exit 0 but stdout was not valid JSON. The worker ran;
	// callers substitute documented defaults instead of failing.
	StatusDegraded
	// StatusFailed: nonzero exit, timeout, or spawn failure.
	StatusFailed
)

// ErrTimeout marks invocations killed by the invocation deadline.
var ErrTimeout = errors.New("worker timed out")

// Outcome is the transient result of one invocation. Payload is set only
// for StatusOK JSON operations; Raw always carries the accumulated stdout.
type Outcome struct {
	Status   Status
	Payload  json.RawMessage
	Raw      []byte
	Stderr   string
	ExitCode int
	TimedOut bool
}

// Options adjust a single invocation.
type Options struct {
	// Timeout overrides the pool default when positive.
	Timeout time.Duration
	// ExpectBinary skips JSON parsing; stdout is an opaque byte buffer.
	ExpectBinary bool
}

// Pool is the single entry point handlers use to run workers. The process
// spawn strategy behind it is swappable.
type Pool interface {
	Invoke(ctx context.Context, op Operation, payload any, opts Options) (Outcome, error)
}

// ProcessPool spawns one OS process per invocation from a per-operation
// argv table.
type ProcessPool struct {
	commands map[Operation][]string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewProcessPool validates that every configured command is runnable and
// returns the pool. A missing executable or script is a configuration
// error surfaced here, at startup, never per call.
func NewProcessPool(commands map[string][]string, timeout time.Duration, logger *slog.Logger) (*ProcessPool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cmds := make(map[Operation][]string, len(commands))
	for name, argv := range commands {
		if len(argv) == 0 {
			return nil, fmt.Errorf("worker %q: empty command", name)
		}
		if _, err := exec.LookPath(argv[0]); err != nil {
			return nil, fmt.Errorf("worker %q: %w", name, err)
		}
		// Interpreter invocations name the script as the first argument;
		// check it exists too so a missing script fails preflight, not a
		// request.
		if len(argv) > 1 && isInterpreter(argv[0]) {
			if _, err := os.Stat(argv[1]); err != nil {
				return nil, fmt.Errorf("worker %q: %w", name, err)
			}
		}
		cmds[Operation(name)] = argv
	}
	return &ProcessPool{commands: cmds, timeout: timeout, logger: logger}, nil
}

func isInterpreter(bin string) bool {
	base := filepath.Base(bin)
	return strings.HasPrefix(base, "python") || base == "node" || base == "ruby"
}

// Invoke runs the operation's process, writes the payload to its stdin,
// closes stdin, and accumulates stdout and stderr until exit. Process-level
// failures are reported through the Outcome; the returned error is non-nil
// only for caller mistakes (unknown operation, unmarshalable payload).
func (p *ProcessPool) Invoke(ctx context.Context, op Operation, payload any, opts Options) (Outcome, error) {
	argv, ok := p.commands[op]
	if !ok {
		return Outcome{Status: StatusFailed}, fmt.Errorf("unknown worker operation %q", op)
	}

	var input []byte
	if payload != nil {
		var err error
		if input, err = json.Marshal(payload); err != nil {
			return Outcome{Status: StatusFailed}, fmt.Errorf("marshal %s payload: %w", op, err)
		}
	}

	timeout := p.timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return Outcome{Status: StatusFailed}, fmt.Errorf("worker %s stdin: %w", op, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Outcome{Status: StatusFailed}, fmt.Errorf("worker %s stdout: %w", op, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Outcome{Status: StatusFailed}, fmt.Errorf("worker %s stderr: %w", op, err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Outcome{Status: StatusFailed, Stderr: err.Error()}, nil
	}

	var outBuf, errBuf bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		// Single hand-off: write everything, then close to signal EOF.
		defer stdin.Close()
		if len(input) == 0 {
			return nil
		}
		_, err := stdin.Write(input)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(&outBuf, stdout)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(&errBuf, stderr)
		return err
	})

	copyErr := g.Wait()
	waitErr := cmd.Wait()

	out := Outcome{
		Raw:    outBuf.Bytes(),
		Stderr: errBuf.String(),
	}

	if ctx.Err() == context.DeadlineExceeded {
		p.logger.Warn("worker timed out", "operation", op, "timeout", timeout)
		out.Status = StatusFailed
		out.TimedOut = true
		out.Stderr = ErrTimeout.Error()
		return out, nil
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
		} else {
			out.ExitCode = -1
		}
		p.logger.Warn("worker failed",
			"operation", op,
			"exit_code", out.ExitCode,
			"stderr", out.Stderr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		out.Status = StatusFailed
		return out, nil
	}
	if copyErr != nil {
		// The process exited 0 but a stream broke mid-copy; treat the
		// partial output the same as malformed output.
		out.Status = StatusDegraded
		return out, nil
	}

	if opts.ExpectBinary {
		out.Status = StatusOK
		p.logger.Debug("worker done", "operation", op, "bytes", len(out.Raw),
			"duration_ms", time.Since(start).Milliseconds())
		return out, nil
	}

	trimmed := bytes.TrimSpace(out.Raw)
	if !json.Valid(trimmed) || len(trimmed) == 0 {
		p.logger.Warn("worker emitted unparseable output", "operation", op)
		out.Status = StatusDegraded
		return out, nil
	}
	out.Status = StatusOK
	out.Payload = json.RawMessage(trimmed)
	p.logger.Debug("worker done", "operation", op,
		"duration_ms", time.Since(start).Milliseconds())
	return out, nil
}
