package writerbackends

import (
	"context"
	"fmt"
	"sync"

	"vidpress/logger"
	"vidpress/models"
)

// Registry looks up the writer configuration of a bucket.
type Registry interface {
	Get(bucket string) (models.WriterJob, bool, error)
}

// Resolver maps a bucket name to its Writer. Registered buckets use their own
// configuration, all others the fallback backend. Writers are cached until
// Invalidate is called for their bucket.
type Resolver struct {
	registry Registry
	fallback models.WriterJob

	mu    sync.Mutex
	cache map[string]Writer
}

// NewResolver returns a Resolver. registry may be nil.
func NewResolver(registry Registry, fallback models.WriterJob) *Resolver {
	return &Resolver{
		registry: registry,
		fallback: fallback,
		cache:    make(map[string]Writer),
	}
}

// Writer returns the writer for bucket.
func (r *Resolver) Writer(ctx context.Context, bucket string) (Writer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateBucketName(bucket); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.cache[bucket]; ok {
		return w, nil
	}

	job := r.fallback
	if r.registry != nil {
		registered, ok, err := r.registry.Get(bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to look up bucket %s: %w", bucket, err)
		}
		if ok {
			job = registered
		}
	}

	w, err := New(job)
	if err != nil {
		return nil, err
	}
	logger.Debugf("Resolved bucket %s to %s backend", bucket, job.Type)
	r.cache[bucket] = w
	return w, nil
}

// Invalidate drops the cached writer for bucket. The writer is not closed, an
// upload may still be using it.
func (r *Resolver) Invalidate(bucket string) {
	r.mu.Lock()
	delete(r.cache, bucket)
	r.mu.Unlock()
}
