package routes

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"vidpress/job"
	"vidpress/logger"
	writerbackends "vidpress/writerBackends"
)

const (
	videoField     = "video"
	maxFieldLength = 256
	// room for multipart boundaries and the small text fields
	multipartOverhead = 1 << 20
)

// upload is what a /compress request carried.
type upload struct {
	path         string
	originalName string
	size         int64
	bucket       string
	folder       string
}

// CompressHandler accepts a multipart upload with the file in field "video",
// runs it through the pipeline and answers with the published URL.
func (s *Server) CompressHandler(w http.ResponseWriter, r *http.Request) {
	logger.Debugf("Compress request: remoteAddr=%s, contentLength=%d", r.RemoteAddr, r.ContentLength)

	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes+multipartOverhead)
	up, status, err := s.receive(r)
	if err != nil {
		logger.Warnf("Rejected upload from %s: %v", r.RemoteAddr, err)
		writeError(w, status, err.Error())
		return
	}

	j, err := job.New(job.Input{
		Path:         up.path,
		OriginalName: up.originalName,
		Size:         up.size,
		Bucket:       up.bucket,
		Folder:       up.folder,
	}, s.TempDir, s.Processor.Profile().Extension, s.now())
	if err != nil {
		os.Remove(up.path)
		logger.Errorf("Failed to create job: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("X-Job-ID", j.ID)

	resp, err := s.Processor.Run(r.Context(), j)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// statusFor maps a job failure to an HTTP status.
func statusFor(err error) int {
	switch job.KindOf(err) {
	case job.KindMissingInput:
		return http.StatusBadRequest
	case job.KindOutputTooLarge:
		return http.StatusUnprocessableEntity
	case job.KindUploadFailed:
		if errors.Is(err, writerbackends.ErrObjectExists) {
			return http.StatusConflict
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// receive streams the multipart body: the video goes straight to a temp file,
// the text fields are read into memory. On error nothing is left on disk.
func (s *Server) receive(r *http.Request) (*upload, int, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, http.StatusBadRequest, job.ErrMissingInput
	}

	up := &upload{
		bucket: r.URL.Query().Get("bucket"),
		folder: r.URL.Query().Get("folder"),
	}
	fail := func(status int, err error) (*upload, int, error) {
		if up.path != "" {
			os.Remove(up.path)
		}
		return nil, status, err
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fail(s.readFailureStatus(err))
		}

		switch {
		case part.FormName() == videoField && part.FileName() != "" && up.path == "":
			if err := s.saveVideo(up, part); err != nil {
				part.Close()
				return fail(s.readFailureStatus(err))
			}
		case part.FormName() == "bucket" || part.FormName() == "folder":
			value, err := io.ReadAll(io.LimitReader(part, maxFieldLength+1))
			if err != nil {
				part.Close()
				return fail(s.readFailureStatus(err))
			}
			if len(value) > maxFieldLength {
				part.Close()
				return fail(http.StatusBadRequest, fmt.Errorf("field %s is too long", part.FormName()))
			}
			if part.FormName() == "bucket" {
				up.bucket = strings.TrimSpace(string(value))
			} else {
				up.folder = strings.TrimSpace(string(value))
			}
		default:
			io.Copy(io.Discard, part)
		}
		part.Close()
	}

	if up.path == "" || up.size == 0 {
		return fail(http.StatusBadRequest, job.ErrMissingInput)
	}
	if up.bucket == "" {
		up.bucket = s.DefaultBucket
	}
	if up.folder == "" {
		up.folder = s.DefaultFolder
	}
	if err := writerbackends.ValidateBucketName(up.bucket); err != nil {
		return fail(http.StatusBadRequest, err)
	}
	return up, http.StatusOK, nil
}

func (s *Server) saveVideo(up *upload, part *multipart.Part) error {
	if err := os.MkdirAll(s.TempDir, 0o755); err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	path, err := job.NewTempPath(s.TempDir, "in", "")
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	up.path = path
	up.originalName = part.FileName()

	n, err := io.Copy(f, io.LimitReader(part, s.MaxUploadBytes+1))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	if n > s.MaxUploadBytes {
		return &http.MaxBytesError{Limit: s.MaxUploadBytes}
	}
	up.size = n
	return nil
}

func (s *Server) readFailureStatus(err error) (int, error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge,
			fmt.Errorf("Video file exceeds the %dMB upload limit", s.MaxUploadBytes/(1024*1024))
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return http.StatusBadRequest, fmt.Errorf("upload interrupted: %w", err)
	}
	return http.StatusInternalServerError, err
}
