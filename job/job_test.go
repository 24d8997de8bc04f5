package job

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vidpress/encoder"
	"vidpress/logger"
	writerbackends "vidpress/writerBackends"
)

func init() {
	logger.SetOutput(io.Discard)
}

type memWriter struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
	panics  bool
}

func newMemWriter() *memWriter {
	return &memWriter{objects: make(map[string][]byte)}
}

func (w *memWriter) Upload(ctx context.Context, obj writerbackends.Object) error {
	if w.panics {
		panic("writer exploded")
	}
	if w.err != nil {
		return w.err
	}
	data := new(bytes.Buffer)
	if _, err := data.ReadFrom(obj.Body); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	k := obj.Bucket + "/" + obj.Key
	if _, ok := w.objects[k]; ok {
		return writerbackends.ErrObjectExists
	}
	w.objects[k] = data.Bytes()
	return nil
}

func (w *memWriter) PublicURL(bucket, key string) (string, error) {
	return "https://cdn.test/" + bucket + "/" + key, nil
}

type staticResolver struct{ w writerbackends.Writer }

func (r staticResolver) Writer(context.Context, string) (writerbackends.Writer, error) {
	return r.w, nil
}

// writeEncoder produces an output of exactly size bytes.
func writeEncoder(size int) encoder.EncodeFunc {
	return func(ctx context.Context, input, output string, opts encoder.EncodeOptions) error {
		return os.WriteFile(output, bytes.Repeat([]byte{'v'}, size), 0o644)
	}
}

type fixture struct {
	dir string
	w   *memWriter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{dir: t.TempDir(), w: newMemWriter()}
}

func (f *fixture) processor(enc encoder.EncodeFunc, ceiling int64) *Processor {
	return NewProcessor(Options{
		Encode:        enc,
		Writers:       staticResolver{f.w},
		SizeCeiling:   ceiling,
		MaxConcurrent: 2,
	})
}

func (f *fixture) newJob(t *testing.T, name string, size int) *Job {
	t.Helper()
	in, err := NewTempPath(f.dir, "in", "")
	if err != nil {
		t.Fatalf("NewTempPath failed: %v", err)
	}
	if err := os.WriteFile(in, bytes.Repeat([]byte{'i'}, size), 0o644); err != nil {
		t.Fatalf("Failed to write input: %v", err)
	}
	j, err := New(Input{Path: in, OriginalName: name, Size: int64(size), Bucket: "videos", Folder: "interviews"}, f.dir, ".mp4", time.Now())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return j
}

func assertCleaned(t *testing.T, j *Job) {
	t.Helper()
	for _, p := range []string{j.InputPath, j.OutputPath} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("Temp file %s still exists (stat err: %v)", p, err)
		}
	}
}

func TestRunPublishes(t *testing.T) {
	f := newFixture(t)
	p := f.processor(writeEncoder(300), 1000)
	j := f.newJob(t, "My Interview.mov", 1000)

	resp, err := p.Run(context.Background(), j)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	assertCleaned(t, j)

	if !resp.Success {
		t.Error("Expected success")
	}
	if resp.CompressionRatio != "70.0%" {
		t.Errorf("Expected ratio 70.0%%, got %s", resp.CompressionRatio)
	}
	if !regexp.MustCompile(`^interviews/\d{13}-my-interview-[A-Za-z0-9]{6}\.mp4$`).MatchString(resp.Path) {
		t.Errorf("Unexpected path %s", resp.Path)
	}
	if resp.URL != "https://cdn.test/videos/"+resp.Path {
		t.Errorf("Unexpected URL %s", resp.URL)
	}
	if got := f.w.objects["videos/"+resp.Path]; len(got) != 300 {
		t.Errorf("Expected 300 uploaded bytes, got %d", len(got))
	}
	if j.State() != StatePublished {
		t.Errorf("Expected published state, got %s", j.State())
	}
	if len(p.Tracker().List()) != 0 {
		t.Error("Finished job should leave the tracker")
	}
}

func TestRunCleansUpOnEveryFailure(t *testing.T) {
	tests := []struct {
		name     string
		encode   encoder.EncodeFunc
		setup    func(w *memWriter)
		wantKind Kind
	}{
		{
			name: "encoder fails after partial output",
			encode: func(ctx context.Context, in, out string, _ encoder.EncodeOptions) error {
				os.WriteFile(out, []byte("partial"), 0o644)
				return &encoder.RunError{Reason: "ffmpeg exited with code 1: Invalid data found when processing input", ExitCode: 1}
			},
			wantKind: KindEncodeFailed,
		},
		{
			name:     "output too large",
			encode:   writeEncoder(101),
			wantKind: KindOutputTooLarge,
		},
		{
			name:     "upload rejected",
			encode:   writeEncoder(10),
			setup:    func(w *memWriter) { w.err = errors.New("bucket not found") },
			wantKind: KindUploadFailed,
		},
		{
			name: "encoder panics",
			encode: func(ctx context.Context, in, out string, _ encoder.EncodeOptions) error {
				os.WriteFile(out, []byte("partial"), 0o644)
				panic("boom")
			},
			wantKind: KindUnexpected,
		},
		{
			name:     "writer panics",
			encode:   writeEncoder(10),
			setup:    func(w *memWriter) { w.panics = true },
			wantKind: KindUnexpected,
		},
		{
			name: "encoder produces nothing",
			encode: func(ctx context.Context, in, out string, _ encoder.EncodeOptions) error {
				return nil
			},
			wantKind: KindUnexpected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f.w)
			}
			p := f.processor(tt.encode, 100)
			j := f.newJob(t, "clip.mp4", 500)

			resp, err := p.Run(context.Background(), j)
			if err == nil {
				t.Fatalf("Expected failure, got %+v", resp)
			}
			if resp != nil {
				t.Errorf("Expected no response on failure, got %+v", resp)
			}
			if got := KindOf(err); got != tt.wantKind {
				t.Errorf("Expected kind %s, got %s (%v)", tt.wantKind, got, err)
			}
			if j.State() != StateFailed {
				t.Errorf("Expected failed state, got %s", j.State())
			}
			assertCleaned(t, j)

			entries, _ := os.ReadDir(f.dir)
			if len(entries) != 0 {
				t.Errorf("Temp dir not empty: %v", entries)
			}
		})
	}
}

func TestSizeGateBoundary(t *testing.T) {
	f := newFixture(t)

	j := f.newJob(t, "exact.mp4", 200)
	if _, err := f.processor(writeEncoder(100), 100).Run(context.Background(), j); err != nil {
		t.Fatalf("Output equal to the ceiling should pass: %v", err)
	}

	j = f.newJob(t, "over.mp4", 200)
	_, err := f.processor(writeEncoder(101), 100).Run(context.Background(), j)
	var jobErr *Error
	if !errors.As(err, &jobErr) || jobErr.Kind != KindOutputTooLarge {
		t.Fatalf("Expected OutputTooLarge, got %v", err)
	}
	if jobErr.Size != 101 || jobErr.Ceiling != 100 {
		t.Errorf("Expected size 101 and ceiling 100, got %d and %d", jobErr.Size, jobErr.Ceiling)
	}
	if len(f.w.objects) != 1 {
		t.Errorf("Oversized output must never be uploaded, have %d objects", len(f.w.objects))
	}
}

func TestOutputTooLargeMessage(t *testing.T) {
	err := outputTooLarge(47*1024*1024, 45*1024*1024)
	want := "compressed video is still too large: 47.00MB exceeds the 45.00MB limit"
	if !strings.HasPrefix(err.Error(), want) {
		t.Errorf("Expected message starting %q, got %q", want, err.Error())
	}
}

func TestRunUploadConflictIsUploadFailed(t *testing.T) {
	f := newFixture(t)
	f.w.err = writerbackends.ErrObjectExists
	j := f.newJob(t, "clip.mp4", 100)

	_, err := f.processor(writeEncoder(10), 100).Run(context.Background(), j)
	if KindOf(err) != KindUploadFailed || !errors.Is(err, writerbackends.ErrObjectExists) {
		t.Errorf("Expected UploadFailed wrapping ErrObjectExists, got %v", err)
	}
	assertCleaned(t, j)
}

func TestCancelStopsRunningJob(t *testing.T) {
	f := newFixture(t)
	started := make(chan struct{})
	blocking := func(ctx context.Context, in, out string, _ encoder.EncodeOptions) error {
		os.WriteFile(out, []byte("partial"), 0o644)
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}
	p := f.processor(blocking, 100)
	j := f.newJob(t, "clip.mp4", 100)

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background(), j)
		done <- err
	}()

	<-started
	snap, ok := p.Tracker().Get(j.ID)
	if !ok || snap.State != "encoding" {
		t.Fatalf("Expected encoding job in tracker, got %+v (ok=%v)", snap, ok)
	}
	if err := p.Tracker().Cancel(j.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	select {
	case err := <-done:
		if KindOf(err) != KindUnexpected || !errors.Is(err, context.Canceled) {
			t.Errorf("Expected cancellation error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Job did not stop after cancel")
	}
	assertCleaned(t, j)

	if err := p.Tracker().Cancel(j.ID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Expected ErrJobNotFound for finished job, got %v", err)
	}
}

func TestEncodeConcurrencyIsBounded(t *testing.T) {
	f := newFixture(t)
	var running, peak int32
	enc := func(ctx context.Context, in, out string, _ encoder.EncodeOptions) error {
		n := atomic.AddInt32(&running, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return os.WriteFile(out, []byte("ok"), 0o644)
	}
	p := NewProcessor(Options{Encode: enc, Writers: staticResolver{f.w}, SizeCeiling: 100, MaxConcurrent: 2})

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		j := f.newJob(t, "clip.mp4", 10)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Run(context.Background(), j); err != nil {
				t.Errorf("Run failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if peak > 2 {
		t.Errorf("Expected at most 2 concurrent encodes, saw %d", peak)
	}
	if len(f.w.objects) != 6 {
		t.Errorf("Expected 6 distinct published objects, got %d", len(f.w.objects))
	}
}

func TestUploadKey(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	tests := []struct {
		folder, name string
		want         string
	}{
		{"interviews", "My Interview (final).mov", `^interviews/1700000000123-my-interview-final-[A-Za-z0-9]{6}\.mp4$`},
		{"", "clip.mp4", `^1700000000123-clip-[A-Za-z0-9]{6}\.mp4$`},
		{"../../etc", "passwd", `^etc/1700000000123-passwd-[A-Za-z0-9]{6}\.mp4$`},
		{"/Team A/2024/", `C:\videos\take.1.mov`, `^team-a/2024/1700000000123-take-1-[A-Za-z0-9]{6}\.mp4$`},
		{"interviews", "???.mov", `^interviews/1700000000123-video-[A-Za-z0-9]{6}\.mp4$`},
		{"interviews", ".mov", `^interviews/1700000000123-mov-[A-Za-z0-9]{6}\.mp4$`},
	}
	for _, tt := range tests {
		key, err := UploadKey(tt.folder, tt.name, ".mp4", now)
		if err != nil {
			t.Fatalf("UploadKey failed: %v", err)
		}
		if !regexp.MustCompile(tt.want).MatchString(key) {
			t.Errorf("UploadKey(%q, %q) = %q, want match %s", tt.folder, tt.name, key, tt.want)
		}
	}

	a, _ := UploadKey("interviews", "clip.mp4", ".mp4", now)
	b, _ := UploadKey("interviews", "clip.mp4", ".mp4", now)
	if a == b {
		t.Errorf("Keys generated in the same millisecond collided: %s", a)
	}
}

func TestBuildReport(t *testing.T) {
	resp := buildReport(50*1024*1024, 18*1024*1024, "https://x/y.mp4", "interviews/y.mp4", 12340*time.Millisecond)
	if resp.OriginalSize != "50.00MB" || resp.CompressedSize != "18.00MB" {
		t.Errorf("Unexpected sizes: %s, %s", resp.OriginalSize, resp.CompressedSize)
	}
	if resp.CompressionRatio != "64.0%" {
		t.Errorf("Expected 64.0%%, got %s", resp.CompressionRatio)
	}
	if resp.ProcessingTime != "12.3s" {
		t.Errorf("Expected 12.3s, got %s", resp.ProcessingTime)
	}
	if !resp.Success || resp.URL != "https://x/y.mp4" || resp.Path != "interviews/y.mp4" {
		t.Errorf("Unexpected report: %+v", resp)
	}
}

func TestCompressionRatio(t *testing.T) {
	tests := []struct {
		orig, comp int64
		want       float64
	}{
		{100, 36, 64},
		{0, 10, 0},
		{1000, 1000, 0},
		{100000, 100001, 0},
		{100, 150, -50},
		{3, 1, 66.7},
	}
	for _, tt := range tests {
		if got := compressionRatio(tt.orig, tt.comp); got != tt.want {
			t.Errorf("compressionRatio(%d, %d) = %v, want %v", tt.orig, tt.comp, got, tt.want)
		}
	}
}

func TestSweepTempDir(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	write := func(name string, age time.Duration) string {
		p := filepath.Join(dir, name)
		os.WriteFile(p, []byte("x"), 0o644)
		os.Chtimes(p, now.Add(-age), now.Add(-age))
		return p
	}
	stale := write(TempPrefix+"in-stale", 3*time.Hour)
	fresh := write(TempPrefix+"out-fresh.mp4", time.Minute)
	foreign := write("someone-else.tmp", 3*time.Hour)

	n, err := SweepTempDir(dir, time.Hour, now)
	if err != nil || n != 1 {
		t.Fatalf("Expected 1 removal, got %d (err %v)", n, err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("Stale temp file should be removed")
	}
	for _, p := range []string{fresh, foreign} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s should be kept: %v", p, err)
		}
	}

	if n, err := SweepTempDir(filepath.Join(dir, "missing"), time.Hour, now); err != nil || n != 0 {
		t.Errorf("Missing dir should be a no-op, got %d, %v", n, err)
	}
}
