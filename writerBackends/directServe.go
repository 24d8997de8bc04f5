package writerbackends

// directServe writes the file into our own serving folder; the HTTP server
// exposes it under /files/{bucket}/{key}.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"vidpress/logger"
)

// DirectServeWriter stores objects on the local file system.
type DirectServeWriter struct {
	baseDir       string
	publicBaseURL string
}

// NewDirectServeWriter reads baseDir and publicBaseURL from creds.
func NewDirectServeWriter(creds map[string]string) (*DirectServeWriter, error) {
	if err := requireKeys(creds, "baseDir", "publicBaseURL"); err != nil {
		return nil, err
	}
	return &DirectServeWriter{
		baseDir:       filepath.Clean(creds["baseDir"]),
		publicBaseURL: creds["publicBaseURL"],
	}, nil
}

func (w *DirectServeWriter) path(bucket, key string) (string, error) {
	full := filepath.Join(w.baseDir, bucket, filepath.FromSlash(key))
	rel, err := filepath.Rel(w.baseDir, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes the serving directory", key)
	}
	return full, nil
}

func (w *DirectServeWriter) Upload(ctx context.Context, obj Object) error {
	fullPath, err := w.path(obj.Bucket, obj.Key)
	if err != nil {
		return err
	}

	// Ensure the target directory exists
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	file, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrObjectExists, fullPath)
		}
		return fmt.Errorf("failed to create file %s: %w", fullPath, err)
	}

	if _, err := io.Copy(file, &ctxReader{ctx: ctx, r: obj.Body}); err != nil {
		file.Close()
		os.Remove(fullPath)
		return fmt.Errorf("failed to write to file %s: %w", fullPath, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(fullPath)
		return fmt.Errorf("failed to write to file %s: %w", fullPath, err)
	}

	logger.Infof("Successfully saved '%s' to '%s'", obj.Key, fullPath)
	return nil
}

func (w *DirectServeWriter) PublicURL(bucket, key string) (string, error) {
	return joinURL(w.publicBaseURL, "files", bucket, key), nil
}

// ctxReader stops a local copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
