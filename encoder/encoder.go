package encoder

import (
	"context"
	"os/exec"
	"sort"
	"sync"
	"time"

	"vidpress/logger"
)

// EncodeFunc is the function signature for any encoder. It blocks until the
// output file is complete or the encoder failed; on failure the output may be
// partially written.
type EncodeFunc func(ctx context.Context, input, output string, opts EncodeOptions) error

type EncodeOptions struct {
	Profile    Profile          // zero value means DefaultProfile
	Timeout    time.Duration    // bounds the encoder run, 0 = unbounded
	OnProgress func(p Progress) // optional, informational only
}

// Progress is a snapshot of a running encode.
type Progress struct {
	Elapsed  time.Duration // position written so far
	Duration time.Duration // input duration, 0 when unknown
	Percent  float64       // 0..100, 0 when Duration is unknown
	Done     bool
}

var (
	registryMu sync.RWMutex
	// Registry maps encoder name → encoder function
	Registry = map[string]EncodeFunc{}
)

// Register adds encoder if the underlying command exists, logs status
func Register(name string, cmdName string, fn EncodeFunc) bool {
	if _, err := exec.LookPath(cmdName); err != nil {
		logger.Warnf("encoder [%s] skipped: command '%s' not found in PATH", name, cmdName)
		return false
	}
	registryMu.Lock()
	Registry[name] = fn
	registryMu.Unlock()
	logger.Debugf("encoder [%s] registered (command: %s)", name, cmdName)
	return true
}

// Get looks up an encoder by name
func Get(name string) (EncodeFunc, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := Registry[name]
	return fn, ok
}

// Available returns the registered encoder names, sorted
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterDefaults registers the ffmpeg encoder using the given binary.
func RegisterDefaults(ffmpegPath string) {
	Register("ffmpeg", ffmpegPath, FFmpeg(ffmpegPath))
}
