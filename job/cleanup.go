package job

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidpress/logger"
	"vidpress/metrics"
)

// removeTemp deletes path if it exists. A file that is already gone is not
// an error.
func removeTemp(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// cleanup removes both temporary files of a job. Failures are logged and
// counted but never change the job's outcome.
func cleanup(j *Job) {
	for _, p := range []string{j.InputPath, j.OutputPath} {
		if err := removeTemp(p); err != nil {
			metrics.CleanupErrors.Inc()
			logger.Warnf("[job %s] failed to remove temp file %s: %v", j.ID, p, err)
		}
	}
}

// SweepTempDir removes vidpress temp files in dir older than maxAge. It only
// catches files left behind by a crashed process; running jobs clean up
// after themselves.
func SweepTempDir(dir string, maxAge time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), TempPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < maxAge {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if err := removeTemp(p); err != nil {
			metrics.CleanupErrors.Inc()
			logger.Warnf("Failed to sweep stale temp file %s: %v", p, err)
			continue
		}
		removed++
	}
	return removed, nil
}
