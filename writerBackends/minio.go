package writerbackends

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"vidpress/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioWriter uploads to a MinIO server.
type MinioWriter struct {
	client        *minio.Client
	endpoint      string
	secure        bool
	publicBaseURL string
}

// NewMinioWriter reads endpoint, accessKey and secretKey from creds. secure,
// region and publicBaseURL are optional.
func NewMinioWriter(creds map[string]string) (*MinioWriter, error) {
	if err := requireKeys(creds, "endpoint", "accessKey", "secretKey"); err != nil {
		return nil, err
	}
	secure, _ := strconv.ParseBool(creds["secure"])

	client, err := minio.New(creds["endpoint"], &minio.Options{
		Creds:  credentials.NewStaticV4(creds["accessKey"], creds["secretKey"], ""),
		Secure: secure,
		Region: creds["region"],
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioWriter{
		client:        client,
		endpoint:      creds["endpoint"],
		secure:        secure,
		publicBaseURL: creds["publicBaseURL"],
	}, nil
}

func (w *MinioWriter) Upload(ctx context.Context, obj Object) error {
	// Multipart completion is sent without If-None-Match, so outputs always go
	// in a single PUT.
	opts := minio.PutObjectOptions{
		ContentType:      obj.ContentType,
		CacheControl:     cacheControl,
		DisableMultipart: true,
	}
	opts.SetMatchETagExcept("*")

	if _, err := w.client.PutObject(ctx, obj.Bucket, obj.Key, obj.Body, obj.Size, opts); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "PreconditionFailed" || resp.StatusCode == http.StatusPreconditionFailed {
			return fmt.Errorf("%w: %s/%s", ErrObjectExists, obj.Bucket, obj.Key)
		}
		return fmt.Errorf("failed to upload object %s to bucket %s: %w", obj.Key, obj.Bucket, err)
	}

	logger.Infof("Successfully uploaded object '%s' to bucket '%s'", obj.Key, obj.Bucket)
	return nil
}

func (w *MinioWriter) PublicURL(bucket, key string) (string, error) {
	if w.publicBaseURL != "" {
		return joinURL(w.publicBaseURL, bucket, key), nil
	}
	scheme := "http"
	if w.secure {
		scheme = "https"
	}
	return joinURL(scheme+"://"+w.endpoint, bucket, key), nil
}
