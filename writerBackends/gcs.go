package writerbackends

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"vidpress/logger"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCSWriter uploads to Google Cloud Storage. The client is built once and
// shared by every upload of the bucket.
type GCSWriter struct {
	client        *storage.Client
	publicBaseURL string
}

// NewGCSWriter reads an optional service account key from credentialsJSON,
// either raw JSON or base64. Without it, application default credentials are
// used, unless endpoint points at an emulator, which is then used without
// authentication.
func NewGCSWriter(creds map[string]string) (*GCSWriter, error) {
	credentialsJSON, err := decodeGCSCredentials(creds["credentialsJSON"])
	if err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	switch {
	case len(credentialsJSON) > 0:
		opts = append(opts, option.WithCredentialsJSON(credentialsJSON))
	case creds["endpoint"] != "":
		opts = append(opts, option.WithoutAuthentication())
	}
	if ep := creds["endpoint"]; ep != "" {
		opts = append(opts, option.WithEndpoint(ep))
	}

	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &GCSWriter{client: client, publicBaseURL: creds["publicBaseURL"]}, nil
}

func decodeGCSCredentials(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return nil, nil
	case strings.HasPrefix(raw, "{"):
		return []byte(raw), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("credentialsJSON is neither JSON nor base64: %w", err)
	}
	return decoded, nil
}

func (w *GCSWriter) Upload(ctx context.Context, obj Object) error {
	// Cancelling the writer's context is the only way to abandon a partial upload.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wc := w.client.Bucket(obj.Bucket).Object(obj.Key).
		If(storage.Conditions{DoesNotExist: true}).
		NewWriter(wctx)
	wc.ContentType = obj.ContentType
	wc.CacheControl = cacheControl

	_, err := io.Copy(wc, obj.Body)
	if err != nil {
		cancel()
	}
	if closeErr := wc.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			return fmt.Errorf("%w: gs://%s/%s", ErrObjectExists, obj.Bucket, obj.Key)
		}
		return fmt.Errorf("failed to upload object %s to bucket %s: %w", obj.Key, obj.Bucket, err)
	}

	logger.Infof("Successfully uploaded object '%s' to bucket '%s'", obj.Key, obj.Bucket)
	return nil
}

func (w *GCSWriter) PublicURL(bucket, key string) (string, error) {
	if w.publicBaseURL != "" {
		return joinURL(w.publicBaseURL, bucket, key), nil
	}
	return joinURL("https://storage.googleapis.com", bucket, key), nil
}

// Close releases the storage client.
func (w *GCSWriter) Close() error {
	return w.client.Close()
}
