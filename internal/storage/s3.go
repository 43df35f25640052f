package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/walktrack/backend/internal/config"
)

// ErrDisabled is returned when no bucket is configured.
var ErrDisabled = errors.New("thumbnail storage is not configured")

// Accepted thumbnail content types and their object key extensions.
var thumbnailExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
}

// ThumbnailStore stores walk thumbnail images and returns their public URL.
type ThumbnailStore interface {
	PutThumbnail(ctx context.Context, walkID uuid.UUID, contentType string, body io.Reader) (string, error)
}

// uploader is the subset of *manager.Uploader used here.
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Storage implements ThumbnailStore backed by an S3-compatible service.
type S3Storage struct {
	uploader uploader
	bucket   string
	baseURL  string
}

// NewS3Storage configures an uploader targeting the provided object store.
func NewS3Storage(ctx context.Context, cfg config.ObjectStoreConfig) (*S3Storage, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, ErrDisabled
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = true
	})

	up := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = manager.MinUploadPartSize
		u.LeavePartsOnError = false
	})

	return newS3Storage(up, cfg.Bucket, cfg.PublicBaseURL), nil
}

func newS3Storage(up uploader, bucket, publicBaseURL string) *S3Storage {
	return &S3Storage{
		uploader: up,
		bucket:   bucket,
		baseURL:  strings.TrimSuffix(publicBaseURL, "/"),
	}
}

// ThumbnailKey returns the object key of a walk's thumbnail.
func ThumbnailKey(walkID uuid.UUID, contentType string) (string, error) {
	ext, ok := thumbnailExtensions[contentType]
	if !ok {
		return "", fmt.Errorf("unsupported thumbnail content type %q", contentType)
	}
	return fmt.Sprintf("thumbnails/%s.%s", walkID, ext), nil
}

// PutThumbnail uploads the image and returns its public location.
func (s *S3Storage) PutThumbnail(ctx context.Context, walkID uuid.UUID, contentType string, body io.Reader) (string, error) {
	key, err := ThumbnailKey(walkID, contentType)
	if err != nil {
		return "", err
	}

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
		ACL:         s3types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("s3 storage upload %s: %w", key, err)
	}

	if s.baseURL == "" {
		return key, nil
	}
	return fmt.Sprintf("%s/%s", s.baseURL, key), nil
}

// Disabled rejects every upload with ErrDisabled.
type Disabled struct{}

// PutThumbnail implements ThumbnailStore.
func (Disabled) PutThumbnail(context.Context, uuid.UUID, string, io.Reader) (string, error) {
	return "", ErrDisabled
}

var (
	_ ThumbnailStore = (*S3Storage)(nil)
	_ ThumbnailStore = Disabled{}
)
