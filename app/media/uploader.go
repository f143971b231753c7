package media

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
)

// Uploader stores bytes in object storage and returns their public URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte, suggestedPath, contentType string) (string, error)
}

var _ Uploader = (*S3Uploader)(nil)

type S3Config struct {
	Bucket        string
	Region        string
	Endpoint      string
	KeyPrefix     string
	PublicBaseURL string
	Timeout       time.Duration
}

type S3Uploader struct {
	client        s3manageriface.UploaderAPI
	bucket        string
	keyPrefix     string
	publicBaseURL string
	timeout       time.Duration
}

func NewS3Uploader(cfg S3Config) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	awsConfig := &aws.Config{
		Region: aws.String(cfg.Region),
	}

	// S3-compatible stores (MinIO, R2) need path-style addressing
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewS3UploaderWithClient(s3manager.NewUploader(sess), cfg), nil
}

func NewS3UploaderWithClient(client s3manageriface.UploaderAPI, cfg S3Config) *S3Uploader {
	return &S3Uploader{
		client:        client,
		bucket:        cfg.Bucket,
		keyPrefix:     strings.Trim(cfg.KeyPrefix, "/"),
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		timeout:       cfg.Timeout,
	}
}

func (u *S3Uploader) Upload(ctx context.Context, data []byte, suggestedPath, contentType string) (string, error) {
	objectPath := strings.TrimLeft(path.Clean("/"+suggestedPath), "/")
	if objectPath == "" {
		return "", fmt.Errorf("empty object path")
	}

	key := objectPath
	if u.keyPrefix != "" {
		key = u.keyPrefix + "/" + objectPath
	}

	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	_, err := u.client.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return u.publicBaseURL + "/" + objectPath, nil
}
