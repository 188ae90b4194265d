package upload

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3Config struct {
	Region    string
	Bucket    string
	Directory string

	// BaseURL overrides the default public object URL, for buckets fronted
	// by a CDN.
	BaseURL string
}

var ErrEmptyS3BucketName = errors.New("empty S3 bucket name")

type s3Uploader struct {
	config  S3Config
	service *manager.Uploader
}

func NewS3Uploader(config S3Config) (Uploader, error) {
	if config.Bucket == "" {
		return nil, ErrEmptyS3BucketName
	}

	ctx := context.TODO()
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(config.Region))
	if err != nil {
		return nil, err
	}

	service := s3.NewFromConfig(cfg)
	uploader := manager.NewUploader(service)

	return &s3Uploader{config, uploader}, nil
}

func (s *s3Uploader) Upload(ctx context.Context, key string, mimeType string, body io.Reader, size int64, progress func(pct int)) (string, error) {
	if err := CheckPolicy(mimeType, size); err != nil {
		return "", err
	}

	// Append directory if it's not empty
	uploadKey := key
	if s.config.Directory != "" {
		uploadKey = fmt.Sprintf("%s/%s", s.config.Directory, key)
	}

	if progress != nil {
		progress(0)
	}
	reader := newProgressReader(body, size, progress)

	_, err := s.service.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(uploadKey),
		Body:        reader,
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	if progress != nil {
		progress(100)
	}
	return s.contentAddress(uploadKey), nil
}

// contentAddress is the stable, publicly dereferenceable URL of the stored
// object.
func (s *s3Uploader) contentAddress(uploadKey string) string {
	if s.config.BaseURL != "" {
		return fmt.Sprintf("%s/%s", s.config.BaseURL, uploadKey)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.config.Bucket, s.config.Region, uploadKey)
}
