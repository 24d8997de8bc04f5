package job

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"vidpress/utils"

	"github.com/google/uuid"
)

// TempPrefix marks every temporary file vidpress creates.
const TempPrefix = "vidpress-"

// Input is an uploaded file already materialized on local disk.
type Input struct {
	Path         string
	OriginalName string
	Size         int64
	Bucket       string
	Folder       string
}

// Job is one compression request. It exclusively owns InputPath and OutputPath
// and both are removed when the job ends.
type Job struct {
	ID           string
	InputPath    string
	OutputPath   string
	OriginalName string
	InputSize    int64
	Bucket       string
	Folder       string
	StartedAt    time.Time

	mu    sync.Mutex
	state State
}

// New creates a job for in. The output path is a fresh name in tempDir that
// does not exist yet.
func New(in Input, tempDir, ext string, startedAt time.Time) (*Job, error) {
	out, err := NewTempPath(tempDir, "out", ext)
	if err != nil {
		return nil, err
	}
	return &Job{
		ID:           uuid.NewString(),
		InputPath:    in.Path,
		OutputPath:   out,
		OriginalName: in.OriginalName,
		InputSize:    in.Size,
		Bucket:       in.Bucket,
		Folder:       in.Folder,
		StartedAt:    startedAt,
		state:        StateReceived,
	}, nil
}

// NewTempPath returns a collision-free path such as
// {dir}/vidpress-out-1f2e3d4c5b6a7980.mp4. Nothing is created on disk.
func NewTempPath(dir, kind, ext string) (string, error) {
	suffix, err := utils.GenerateRandomHex(8)
	if err != nil {
		return "", fmt.Errorf("failed to generate temp name: %w", err)
	}
	return filepath.Join(dir, fmt.Sprintf("%s%s-%s%s", TempPrefix, kind, suffix, ext)), nil
}

// State returns the job's current state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *Job) setState(s State) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
}
