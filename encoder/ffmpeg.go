package encoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"vidpress/logger"
)

// killGrace is how long ffmpeg gets to exit after an interrupt before it is killed.
const killGrace = 5 * time.Second

const stderrTailLines = 4

// RunError is returned when the encoder process fails. Reason carries the
// last diagnostic lines ffmpeg printed.
type RunError struct {
	Reason   string
	ExitCode int
	Err      error
}

func (e *RunError) Error() string {
	return e.Reason
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// FFmpeg returns an EncodeFunc that runs the given ffmpeg binary.
func FFmpeg(binary string) EncodeFunc {
	return func(ctx context.Context, input, output string, opts EncodeOptions) error {
		return runFFmpeg(ctx, binary, input, output, opts)
	}
}

func runFFmpeg(parent context.Context, binary, input, output string, opts EncodeOptions) error {
	info, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("input not readable: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("input file is empty")
	}

	profile := opts.Profile
	if profile.isZero() {
		profile = DefaultProfile
	}

	ctx := parent
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, binary, profile.Args(input, output)...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = killGrace

	tracker := newProgressTracker(opts.OnProgress)
	tail := newLineTail(stderrTailLines)
	stdout := newLineWriter(tracker.observeProgress)
	stderr := newLineWriter(func(line string) {
		tail.add(line)
		tracker.observeStderr(line)
	})
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	logger.Debugf("ffmpeg command: %s", cmd.String())
	runErr := cmd.Run()
	stdout.Flush()
	stderr.Flush()

	if runErr != nil {
		switch {
		case parent.Err() != nil:
			return fmt.Errorf("encoding cancelled: %w", parent.Err())
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return &RunError{
				Reason:   fmt.Sprintf("encoder timed out after %s", opts.Timeout),
				ExitCode: -1,
				Err:      ctx.Err(),
			}
		}

		code := -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			code = exitErr.ExitCode()
		}
		reason := tail.String()
		if reason == "" {
			reason = runErr.Error()
		}
		if code >= 0 {
			reason = fmt.Sprintf("ffmpeg exited with code %d: %s", code, reason)
		}
		return &RunError{Reason: reason, ExitCode: code, Err: runErr}
	}

	out, err := os.Stat(output)
	if err != nil {
		return fmt.Errorf("encoder produced no output: %w", err)
	}
	if out.Size() == 0 {
		return errors.New("encoder produced an empty output file")
	}
	return nil
}

// lineTail keeps the last n non-empty lines written to it.
type lineTail struct {
	n     int
	lines []string
}

func newLineTail(n int) *lineTail {
	return &lineTail{n: n}
}

func (t *lineTail) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *lineTail) String() string {
	return strings.Join(t.lines, "; ")
}
