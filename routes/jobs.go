package routes

import (
	"errors"
	"fmt"
	"net/http"

	"vidpress/job"
	"vidpress/logger"
)

// JobListResponse lists in-flight jobs
type JobListResponse struct {
	Jobs  []job.Snapshot `json:"jobs"`
	Count int            `json:"count"`
}

// JobListHandler returns every running job
func (s *Server) JobListHandler(w http.ResponseWriter, r *http.Request) {
	jobs := s.Processor.Tracker().List()
	writeJSON(w, http.StatusOK, JobListResponse{Jobs: jobs, Count: len(jobs)})
}

// JobStatusHandler returns the state of a running job by id
func (s *Server) JobStatusHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		logger.Warn("Missing id parameter in status request")
		writeError(w, http.StatusBadRequest, "Missing id parameter")
		return
	}

	snap, ok := s.Processor.Tracker().Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Job %s is not running", id))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// CancelJobResponse represents the cancel job response
type CancelJobResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// CancelJobHandler cancels a running job. Its request fails and its temp
// files are removed.
func (s *Server) CancelJobHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		logger.Warn("Missing id parameter in cancel request")
		writeError(w, http.StatusBadRequest, "Missing id parameter")
		return
	}

	if err := s.Processor.Tracker().Cancel(id); err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Job %s is not running", id))
			return
		}
		logger.Errorf("Failed to cancel job %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Infof("Job %s cancelled by %s", id, r.RemoteAddr)
	writeJSON(w, http.StatusOK, CancelJobResponse{ID: id, Message: "Job cancelled"})
}
