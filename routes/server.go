package routes

import (
	"net/http"
	"strings"
	"time"

	"vidpress/job"
	"vidpress/models"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BucketRegistry stores per-bucket writer configuration.
type BucketRegistry interface {
	Get(bucket string) (models.WriterJob, bool, error)
	Put(bucket string, job models.WriterJob) error
	Delete(bucket string) error
	List() ([]string, error)
}

// WriterCache is told when a bucket's configuration changes.
type WriterCache interface {
	Invalidate(bucket string)
}

// Server holds everything the HTTP handlers need.
type Server struct {
	Processor      *job.Processor
	Registry       BucketRegistry // nil disables /buckets
	Writers        WriterCache
	TempDir        string
	MaxUploadBytes int64
	DefaultBucket  string
	DefaultFolder  string
	AdminSecret    []byte // empty disables /buckets
	ServeDir       string // empty disables /files and directServe buckets
	PublicBaseURL  string // default publicBaseURL of registered directServe buckets
	CORSOrigins    []string
	RateLimit      int // per IP and minute on /compress, 0 disables
	Now            func() time.Time
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(CORS(s.CORSOrigins))

	r.Get("/", RootHandler)
	r.Get("/health", HealthHandler)
	r.Get("/version", VersionHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if s.RateLimit > 0 {
			r.Use(RateLimit(s.RateLimit, time.Minute))
		}
		r.Post("/compress", s.CompressHandler)
	})

	r.Get("/jobs", s.JobListHandler)
	r.Get("/status", s.JobStatusHandler)
	r.Delete("/cancel", s.CancelJobHandler)

	r.Route("/buckets", func(r chi.Router) {
		r.Use(AdminAuth(s.AdminSecret, s.Registry != nil))
		r.Get("/", s.BucketListHandler)
		r.Post("/", s.BucketRegisterHandler)
		r.Delete("/", s.BucketDeleteHandler)
	})

	if s.ServeDir != "" {
		r.Handle("/files/*", http.StripPrefix("/files", noListing(http.FileServer(http.Dir(s.ServeDir)))))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}

// noListing hides directory indexes of the serving folder.
func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			writeError(w, http.StatusNotFound, "Not found")
			return
		}
		next.ServeHTTP(w, r)
	})
}
