package writerbackends

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"vidpress/logger"
	"vidpress/models"
)

// ErrObjectExists is returned when the target key is already taken. Writers
// never overwrite.
var ErrObjectExists = errors.New("object already exists")

// Object is a single file to publish.
type Object struct {
	Bucket      string
	Key         string
	ContentType string
	Body        io.Reader
	Size        int64
}

// Writer publishes objects to one storage backend.
type Writer interface {
	// Upload stores obj under obj.Key and fails with ErrObjectExists if the
	// key is taken.
	Upload(ctx context.Context, obj Object) error
	// PublicURL returns the publicly reachable address of bucket/key.
	PublicURL(bucket, key string) (string, error)
}

// Close releases the client held by w, if any. Errors are logged.
func Close(w Writer) {
	c, ok := w.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warnf("Failed to close %T: %v", w, err)
	}
}

const (
	BackendSupabase    = "supabase"
	BackendS3          = "s3"
	BackendMinio       = "minio"
	BackendGCS         = "gcs"
	BackendSFTP        = "sftp"
	BackendDirectServe = "directServe"
)

const cacheControl = "max-age=3600"

type factory func(creds map[string]string) (Writer, error)

var factories = map[string]factory{
	BackendSupabase:    func(c map[string]string) (Writer, error) { return NewSupabaseWriter(c) },
	BackendS3:          func(c map[string]string) (Writer, error) { return NewS3Writer(c) },
	BackendMinio:       func(c map[string]string) (Writer, error) { return NewMinioWriter(c) },
	BackendGCS:         func(c map[string]string) (Writer, error) { return NewGCSWriter(c) },
	BackendSFTP:        func(c map[string]string) (Writer, error) { return NewSFTPWriter(c) },
	BackendDirectServe: func(c map[string]string) (Writer, error) { return NewDirectServeWriter(c) },
}

// Backends returns the supported backend types.
func Backends() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the writer described by job.
func New(job models.WriterJob) (Writer, error) {
	f, ok := factories[job.Type]
	if !ok {
		return nil, fmt.Errorf("unknown backend type: %s", job.Type)
	}
	w, err := f(job.Credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to configure %s backend: %w", job.Type, err)
	}
	return w, nil
}

var bucketNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{1,62}$`)

// ValidateBucketName accepts the names every backend agrees on.
func ValidateBucketName(name string) error {
	if !bucketNameRe.MatchString(name) || strings.Contains(name, "..") {
		return fmt.Errorf("invalid bucket name %q", name)
	}
	return nil
}

// requireKeys fails when any of keys is missing from creds.
func requireKeys(creds map[string]string, keys ...string) error {
	var missing []string
	for _, k := range keys {
		if creds[k] == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}

// joinURL appends escaped path segments to base.
func joinURL(base string, segments ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	for _, s := range segments {
		for _, part := range strings.Split(s, "/") {
			if part == "" {
				continue
			}
			b.WriteByte('/')
			b.WriteString(url.PathEscape(part))
		}
	}
	return b.String()
}
