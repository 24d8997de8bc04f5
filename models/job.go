package models

// WriterJob describes where a compressed video is written.
type WriterJob struct {
	Type        string            `json:"type"`        // "supabase", "s3", "minio", "gcs", "sftp" or "directServe"
	Credentials map[string]string `json:"credentials"` // backend specific, see writerBackends
}

// CompressResponse is returned for a published video. Sizes, ratio and time are
// preformatted strings ("18.00MB", "64.0%", "12.3s").
type CompressResponse struct {
	Success          bool   `json:"success"`
	OriginalSize     string `json:"originalSize"`
	CompressedSize   string `json:"compressedSize"`
	CompressionRatio string `json:"compressionRatio"`
	URL              string `json:"url"`
	Path             string `json:"path"`
	ProcessingTime   string `json:"processingTime"`
}

// ErrorResponse is the only body a failed request carries.
type ErrorResponse struct {
	Error string `json:"error"`
}
