package writerbackends

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"vidpress/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Writer uploads to Amazon S3 or an S3-compatible endpoint.
type S3Writer struct {
	client        *s3.Client
	region        string
	endpoint      string
	publicBaseURL string
}

// NewS3Writer reads accessKey, secretKey and region from creds. endpoint,
// pathStyle and publicBaseURL are optional.
func NewS3Writer(creds map[string]string) (*S3Writer, error) {
	if err := requireKeys(creds, "accessKey", "secretKey", "region"); err != nil {
		return nil, err
	}
	pathStyle, _ := strconv.ParseBool(creds["pathStyle"])

	opts := s3.Options{
		Region:       creds["region"],
		Credentials:  credentials.NewStaticCredentialsProvider(creds["accessKey"], creds["secretKey"], ""),
		UsePathStyle: pathStyle,
	}
	if ep := creds["endpoint"]; ep != "" {
		opts.BaseEndpoint = aws.String(ep)
	}

	return &S3Writer{
		client:        s3.New(opts),
		region:        creds["region"],
		endpoint:      creds["endpoint"],
		publicBaseURL: creds["publicBaseURL"],
	}, nil
}

func (w *S3Writer) Upload(ctx context.Context, obj Object) error {
	// A single PUT keeps the If-None-Match precondition; multipart uploads drop it.
	partSize := obj.Size + 1
	if partSize < manager.MinUploadPartSize {
		partSize = manager.MinUploadPartSize
	}
	uploader := manager.NewUploader(w.client, func(u *manager.Uploader) {
		u.PartSize = partSize
	})

	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(obj.Bucket),
		Key:          aws.String(obj.Key),
		Body:         obj.Body,
		ContentType:  aws.String(obj.ContentType),
		CacheControl: aws.String(cacheControl),
		IfNoneMatch:  aws.String("*"),
	})
	if err != nil {
		if isS3PreconditionFailed(err) {
			return fmt.Errorf("%w: s3://%s/%s", ErrObjectExists, obj.Bucket, obj.Key)
		}
		return fmt.Errorf("failed to upload object %s to bucket %s: %w", obj.Key, obj.Bucket, err)
	}

	logger.Infof("Successfully uploaded object '%s' to bucket '%s'", obj.Key, obj.Bucket)
	return nil
}

func isS3PreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}
	return false
}

// PublicURL prefers publicBaseURL (a CDN or website endpoint), then a custom
// endpoint in path style, then the virtual-hosted AWS address.
func (w *S3Writer) PublicURL(bucket, key string) (string, error) {
	switch {
	case w.publicBaseURL != "":
		return joinURL(w.publicBaseURL, bucket, key), nil
	case w.endpoint != "":
		return joinURL(w.endpoint, bucket, key), nil
	default:
		return joinURL(fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, w.region), key), nil
	}
}
