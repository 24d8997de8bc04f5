package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"vidpress/encoder"
	"vidpress/logger"
	"vidpress/metrics"
	"vidpress/models"
	writerbackends "vidpress/writerBackends"

	"golang.org/x/sync/semaphore"
)

// WriterResolver returns the storage writer for a bucket.
type WriterResolver interface {
	Writer(ctx context.Context, bucket string) (writerbackends.Writer, error)
}

// Options configures a Processor.
type Options struct {
	Encode        encoder.EncodeFunc
	Profile       encoder.Profile
	Writers       WriterResolver
	SizeCeiling   int64
	EncodeTimeout time.Duration
	MaxConcurrent int
	Tracker       *Tracker
	Now           func() time.Time
}

// Processor runs jobs through encode, size gate and upload. Any number of
// jobs may run at once; at most MaxConcurrent of them encode at the same time.
type Processor struct {
	encode        encoder.EncodeFunc
	profile       encoder.Profile
	writers       WriterResolver
	sizeCeiling   int64
	encodeTimeout time.Duration
	sem           *semaphore.Weighted
	tracker       *Tracker
	now           func() time.Time
}

func NewProcessor(opts Options) *Processor {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.Tracker == nil {
		opts.Tracker = NewTracker()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Profile == (encoder.Profile{}) {
		opts.Profile = encoder.DefaultProfile
	}
	return &Processor{
		encode:        opts.Encode,
		profile:       opts.Profile,
		writers:       opts.Writers,
		sizeCeiling:   opts.SizeCeiling,
		encodeTimeout: opts.EncodeTimeout,
		sem:           semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		tracker:       opts.Tracker,
		now:           opts.Now,
	}
}

// Tracker returns the tracker of running jobs.
func (p *Processor) Tracker() *Tracker {
	return p.tracker
}

// Profile returns the encoding profile applied to every job.
func (p *Processor) Profile() encoder.Profile {
	return p.profile
}

// Run processes j to completion. Both temporary files are removed before Run
// returns, whatever the outcome, including a panic inside the pipeline. The
// returned error is always a *Error.
func (p *Processor) Run(ctx context.Context, j *Job) (resp *models.CompressResponse, err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.tracker.add(j, cancel)
	defer p.tracker.remove(j.ID)

	metrics.JobsInFlight.Inc()
	defer metrics.JobsInFlight.Dec()
	metrics.BytesIn.Add(float64(j.InputSize))

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[job %s] panic: %v\n%s", j.ID, r, debug.Stack())
			resp, err = nil, unexpected("internal error: %v", r)
		}

		if err != nil {
			j.setState(StateCleanup)
		}
		cleanup(j)

		elapsed := p.now().Sub(j.StartedAt)
		if err != nil {
			j.setState(StateFailed)
			metrics.RecordJob(KindOf(err).String(), elapsed)
			logger.Warnf("[job %s] failed after %.1fs: %v", j.ID, elapsed.Seconds(), err)
			return
		}
		metrics.RecordJob(StatePublished.String(), elapsed)
	}()

	logger.Infof("[job %s] processing %s (%s) for bucket %s", j.ID, j.OriginalName, formatMB(j.InputSize), j.Bucket)

	if err := p.runEncode(ctx, j); err != nil {
		return nil, err
	}

	size, err := p.checkSize(j)
	if err != nil {
		return nil, err
	}

	key, url, err := p.publish(ctx, j, size)
	if err != nil {
		return nil, err
	}

	j.setState(StatePublished)
	metrics.BytesOut.Add(float64(size))
	resp = buildReport(j.InputSize, size, url, key, p.now().Sub(j.StartedAt))
	logger.Infof("[job %s] published %s: %s -> %s (%s saved) in %s",
		j.ID, key, resp.OriginalSize, resp.CompressedSize, resp.CompressionRatio, resp.ProcessingTime)
	return resp, nil
}

func (p *Processor) runEncode(ctx context.Context, j *Job) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return unexpected("job cancelled while waiting for an encoder: %w", err)
	}
	defer p.sem.Release(1)

	j.setState(StateEncoding)
	start := time.Now()
	err := p.encode(ctx, j.InputPath, j.OutputPath, encoder.EncodeOptions{
		Profile: p.profile,
		Timeout: p.encodeTimeout,
		OnProgress: func(pr encoder.Progress) {
			if pr.Done {
				return
			}
			logger.Debugf("[job %s] encoding %.0f%% (%s of %s)", j.ID, pr.Percent, pr.Elapsed, pr.Duration)
		},
	})
	metrics.ObserveStage("encode", time.Since(start))

	if err != nil {
		if ctx.Err() != nil {
			return unexpected("job cancelled: %w", ctx.Err())
		}
		return encodeFailed(err)
	}
	j.setState(StateEncoded)
	return nil
}

// checkSize measures the encoded output and refuses anything above the
// ceiling. Size equal to the ceiling passes.
func (p *Processor) checkSize(j *Job) (int64, error) {
	info, err := os.Stat(j.OutputPath)
	if err != nil {
		return 0, unexpected("failed to stat encoded output: %w", err)
	}
	size := info.Size()
	if p.sizeCeiling > 0 && size > p.sizeCeiling {
		return size, outputTooLarge(size, p.sizeCeiling)
	}
	j.setState(StateSizeChecked)
	return size, nil
}

func (p *Processor) publish(ctx context.Context, j *Job, size int64) (string, string, error) {
	j.setState(StateUploading)
	start := time.Now()
	defer func() { metrics.ObserveStage("upload", time.Since(start)) }()

	w, err := p.writers.Writer(ctx, j.Bucket)
	if err != nil {
		return "", "", uploadFailed(err)
	}

	key, err := UploadKey(j.Folder, j.OriginalName, p.profile.Extension, p.now())
	if err != nil {
		return "", "", unexpected("%w", err)
	}

	f, err := os.Open(j.OutputPath)
	if err != nil {
		return "", "", unexpected("failed to open encoded output: %w", err)
	}
	defer f.Close()

	err = w.Upload(ctx, writerbackends.Object{
		Bucket:      j.Bucket,
		Key:         key,
		ContentType: p.profile.ContentType,
		Body:        f,
		Size:        size,
	})
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, writerbackends.ErrObjectExists) {
			return "", "", unexpected("job cancelled: %w", ctx.Err())
		}
		return "", "", uploadFailed(err)
	}

	url, err := w.PublicURL(j.Bucket, key)
	if err != nil {
		return "", "", uploadFailed(fmt.Errorf("failed to resolve public URL: %w", err))
	}
	return key, url, nil
}
