package writerbackends

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vidpress/logger"
)

// SupabaseWriter uploads through the Supabase Storage REST API with upsert
// disabled.
type SupabaseWriter struct {
	baseURL    string
	serviceKey string
	client     *http.Client
}

// NewSupabaseWriter reads url and serviceKey from creds.
func NewSupabaseWriter(creds map[string]string) (*SupabaseWriter, error) {
	if err := requireKeys(creds, "url", "serviceKey"); err != nil {
		return nil, err
	}
	return &SupabaseWriter{
		baseURL:    strings.TrimRight(creds["url"], "/"),
		serviceKey: creds["serviceKey"],
		client:     &http.Client{Timeout: 10 * time.Minute},
	}, nil
}

type supabaseError struct {
	StatusCode string `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

func (w *SupabaseWriter) Upload(ctx context.Context, obj Object) error {
	endpoint := joinURL(w.baseURL, "storage/v1/object", obj.Bucket, obj.Key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, obj.Body)
	if err != nil {
		return err
	}
	req.ContentLength = obj.Size
	req.Header.Set("Authorization", "Bearer "+w.serviceKey)
	req.Header.Set("apikey", w.serviceKey)
	req.Header.Set("Content-Type", obj.ContentType)
	req.Header.Set("Cache-Control", cacheControl)
	req.Header.Set("x-upsert", "false")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload object %s to bucket %s: %w", obj.Key, obj.Bucket, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		logger.Infof("Successfully uploaded object '%s' to bucket '%s'", obj.Key, obj.Bucket)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr supabaseError
	_ = json.Unmarshal(body, &apiErr)
	// Storage reports duplicates either as HTTP 409 or as a 400 carrying statusCode "409".
	if resp.StatusCode == http.StatusConflict || apiErr.StatusCode == "409" || apiErr.Error == "Duplicate" {
		return fmt.Errorf("%w: %s/%s", ErrObjectExists, obj.Bucket, obj.Key)
	}

	msg := apiErr.Message
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = resp.Status
	}
	return fmt.Errorf("storage returned %d: %s", resp.StatusCode, msg)
}

func (w *SupabaseWriter) PublicURL(bucket, key string) (string, error) {
	return joinURL(w.baseURL, "storage/v1/object/public", bucket, key), nil
}
