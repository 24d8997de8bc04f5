package job

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// State represents the current state of a job
type State int

const (
	StateReceived State = iota
	StateEncoding
	StateEncoded
	StateSizeChecked
	StateUploading
	StatePublished
	StateCleanup
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateEncoding:
		return "encoding"
	case StateEncoded:
		return "encoded"
	case StateSizeChecked:
		return "size_checked"
	case StateUploading:
		return "uploading"
	case StatePublished:
		return "published"
	case StateCleanup:
		return "cleanup"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var ErrJobNotFound = errors.New("job not found")

// Snapshot describes an in-flight job.
type Snapshot struct {
	ID           string    `json:"id"`
	State        string    `json:"state"`
	OriginalName string    `json:"originalName"`
	InputSize    int64     `json:"inputSize"`
	Bucket       string    `json:"bucket"`
	StartedAt    time.Time `json:"startedAt"`
}

type activeJob struct {
	job    *Job
	cancel context.CancelFunc
}

// Tracker knows the jobs that are running right now. Finished jobs are
// dropped immediately; nothing outlives the request.
type Tracker struct {
	mu   sync.RWMutex
	jobs map[string]activeJob
}

func NewTracker() *Tracker {
	return &Tracker{jobs: make(map[string]activeJob)}
}

func (t *Tracker) add(j *Job, cancel context.CancelFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[j.ID] = activeJob{job: j, cancel: cancel}
}

func (t *Tracker) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.jobs, id)
}

// Get returns the snapshot of a running job.
func (t *Tracker) Get(id string) (Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.jobs[id]
	if !ok {
		return Snapshot{}, false
	}
	return snapshot(a.job), true
}

// List returns all running jobs, oldest first.
func (t *Tracker) List() []Snapshot {
	t.mu.RLock()
	out := make([]Snapshot, 0, len(t.jobs))
	for _, a := range t.jobs {
		out = append(out, snapshot(a.job))
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool {
		return out[i].StartedAt.Before(out[k].StartedAt)
	})
	return out
}

// Cancel stops a running job. The encoder is interrupted and the job's
// temporary files are removed before its request returns.
func (t *Tracker) Cancel(id string) error {
	t.mu.RLock()
	a, ok := t.jobs[id]
	t.mu.RUnlock()
	if !ok {
		return ErrJobNotFound
	}
	a.cancel()
	return nil
}

func snapshot(j *Job) Snapshot {
	return Snapshot{
		ID:           j.ID,
		State:        j.State().String(),
		OriginalName: j.OriginalName,
		InputSize:    j.InputSize,
		Bucket:       j.Bucket,
		StartedAt:    j.StartedAt,
	}
}
