package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"vidpress/credentials"
	"vidpress/logger"
	"vidpress/models"
	writerbackends "vidpress/writerBackends"
)

// BucketRequest registers a bucket with its backend.
type BucketRequest struct {
	Bucket string `json:"bucket"`
	models.WriterJob
}

// BucketSummary never exposes credentials.
type BucketSummary struct {
	Bucket string `json:"bucket"`
	Type   string `json:"type"`
}

func (s *Server) BucketListHandler(w http.ResponseWriter, r *http.Request) {
	names, err := s.Registry.List()
	if err != nil {
		logger.Errorf("Failed to list buckets: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list buckets")
		return
	}

	buckets := make([]BucketSummary, 0, len(names))
	for _, name := range names {
		wj, ok, err := s.Registry.Get(name)
		if err != nil || !ok {
			continue
		}
		buckets = append(buckets, BucketSummary{Bucket: name, Type: wj.Type})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"buckets": buckets})
}

func (s *Server) BucketRegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req BucketRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := writerbackends.ValidateBucketName(req.Bucket); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Type == writerbackends.BackendDirectServe {
		creds, err := s.directServeCredentials(req.Credentials)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Credentials = creds
	}
	// Building the writer validates type and credentials before anything is stored.
	writer, err := writerbackends.New(req.WriterJob)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writerbackends.Close(writer)

	if err := s.Registry.Put(req.Bucket, req.WriterJob); err != nil {
		logger.Errorf("Failed to store bucket %s: %v", req.Bucket, err)
		writeError(w, http.StatusInternalServerError, "Failed to store bucket")
		return
	}
	if s.Writers != nil {
		s.Writers.Invalidate(req.Bucket)
	}

	logger.Infof("Bucket %s registered with %s backend", req.Bucket, req.Type)
	writeJSON(w, http.StatusCreated, BucketSummary{Bucket: req.Bucket, Type: req.Type})
}

func (s *Server) BucketDeleteHandler(w http.ResponseWriter, r *http.Request) {
	bucket := r.URL.Query().Get("bucket")
	if bucket == "" {
		writeError(w, http.StatusBadRequest, "Missing bucket parameter")
		return
	}

	if err := s.Registry.Delete(bucket); err != nil {
		if errors.Is(err, credentials.ErrBucketNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		logger.Errorf("Failed to delete bucket %s: %v", bucket, err)
		writeError(w, http.StatusInternalServerError, "Failed to delete bucket")
		return
	}
	if s.Writers != nil {
		s.Writers.Invalidate(bucket)
	}

	logger.Infof("Bucket %s removed from registry", bucket)
	w.WriteHeader(http.StatusNoContent)
}

// directServeCredentials pins a directServe bucket to the folder served under
// /files. Missing baseDir and publicBaseURL default to the server's own.
func (s *Server) directServeCredentials(in map[string]string) (map[string]string, error) {
	if s.ServeDir == "" {
		return nil, errors.New("directServe buckets are not served by this instance")
	}
	creds := make(map[string]string, len(in)+2)
	for k, v := range in {
		creds[k] = v
	}

	if creds["baseDir"] == "" {
		creds["baseDir"] = s.ServeDir
	} else if !sameDir(creds["baseDir"], s.ServeDir) {
		return nil, fmt.Errorf("directServe buckets must use baseDir %s", s.ServeDir)
	}
	if creds["publicBaseURL"] == "" {
		if s.PublicBaseURL == "" {
			return nil, errors.New("missing required credential: publicBaseURL")
		}
		creds["publicBaseURL"] = s.PublicBaseURL
	}
	return creds, nil
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
