package encoder

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

var reDuration = regexp.MustCompile(`Duration: (\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

// parseDuration extracts the input duration from an ffmpeg stderr line.
func parseDuration(line string) (time.Duration, bool) {
	m := reDuration.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	sec, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return 0, false
	}
	d := time.Duration(h)*time.Hour + time.Duration(mins)*time.Minute +
		time.Duration(sec*float64(time.Second))
	return d, true
}

// progressTracker turns -progress key=value blocks into Progress callbacks.
// stdout and stderr are written from different goroutines.
type progressTracker struct {
	mu       sync.Mutex
	fn       func(Progress)
	duration time.Duration
	elapsed  time.Duration
}

func newProgressTracker(fn func(Progress)) *progressTracker {
	return &progressTracker{fn: fn}
}

func (t *progressTracker) observeStderr(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.duration > 0 {
		return
	}
	if d, ok := parseDuration(line); ok {
		t.duration = d
	}
}

func (t *progressTracker) observeProgress(line string) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return
	}

	t.mu.Lock()
	switch key {
	// out_time_ms is also in microseconds, ffmpeg kept the name for compatibility
	case "out_time_us", "out_time_ms":
		if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
			t.elapsed = time.Duration(us) * time.Microsecond
		}
		t.mu.Unlock()
	case "progress":
		p := t.snapshot(value == "end")
		t.mu.Unlock()
		if t.fn != nil {
			t.fn(p)
		}
	default:
		t.mu.Unlock()
	}
}

func (t *progressTracker) snapshot(done bool) Progress {
	p := Progress{Elapsed: t.elapsed, Duration: t.duration, Done: done}
	if t.duration > 0 {
		p.Percent = float64(t.elapsed) / float64(t.duration) * 100
		if p.Percent > 100 {
			p.Percent = 100
		}
	}
	if done && t.duration > 0 {
		p.Percent = 100
	}
	return p
}

// lineWriter is an io.Writer that calls fn for each complete line.
type lineWriter struct {
	fn  func(string)
	buf bytes.Buffer
}

func newLineWriter(fn func(string)) *lineWriter {
	return &lineWriter{fn: fn}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		data := w.buf.Bytes()
		// ffmpeg terminates some status lines with \r only
		i := bytes.IndexAny(data, "\r\n")
		if i < 0 {
			break
		}
		line := string(data[:i])
		w.buf.Next(i + 1)
		if line != "" {
			w.fn(line)
		}
	}
	return len(p), nil
}

// Flush emits a trailing line without a newline.
func (w *lineWriter) Flush() {
	if w.buf.Len() > 0 {
		w.fn(w.buf.String())
		w.buf.Reset()
	}
}
