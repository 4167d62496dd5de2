// Package storage issues presigned upload URLs for user avatars.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/bgrizzle97/socialMedia/internal/config"
	apperrors "github.com/bgrizzle97/socialMedia/internal/errors"
)

// UploadTTL bounds how long a presigned URL stays usable.
const UploadTTL = 15 * time.Minute

var contentTypeExt = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
)

// AvatarUpload tells the client where to PUT the image and which URL to
// store as its profile picture afterwards.
type AvatarUpload struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"upload_url"`
	PublicURL string    `json:"public_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AvatarStore presigns avatar uploads.
type AvatarStore interface {
	PresignUpload(ctx context.Context, userID uuid.UUID, contentType string) (*AvatarUpload, error)
}

// S3AvatarStore presigns PUTs against an S3 compatible bucket.
type S3AvatarStore struct {
	presign       *s3.PresignClient
	bucket        string
	publicBaseURL string
	now           func() time.Time
}

// NewS3AvatarStore builds a store from cfg. It returns nil when no bucket
// is configured.
func NewS3AvatarStore(ctx context.Context, cfg *config.Config) (*S3AvatarStore, error) {
	if cfg.S3Bucket == "" {
		return nil, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	base := cfg.S3PublicBaseURL
	if base == "" {
		if cfg.S3Endpoint != "" {
			base = strings.TrimRight(cfg.S3Endpoint, "/") + "/" + cfg.S3Bucket
		} else {
			base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3Bucket, cfg.S3Region)
		}
	}

	return &S3AvatarStore{
		presign:       s3.NewPresignClient(client),
		bucket:        cfg.S3Bucket,
		publicBaseURL: strings.TrimRight(base, "/"),
		now:           time.Now,
	}, nil
}

// PresignUpload returns a presigned PUT for a new object under the user's prefix.
func (s *S3AvatarStore) PresignUpload(ctx context.Context, userID uuid.UUID, contentType string) (*AvatarUpload, error) {
	ext, ok := contentTypeExt[contentType]
	if !ok {
		return nil, apperrors.ErrUnsupportedImageType
	}

	key := fmt.Sprintf("avatars/%s/%s.%s", userID, uuid.New(), ext)
	req, err := presignPutObject(s.presign, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(UploadTTL))
	if err != nil {
		return nil, fmt.Errorf("presign avatar upload: %w", err)
	}

	return &AvatarUpload{
		Key:       key,
		UploadURL: req.URL,
		PublicURL: s.publicBaseURL + "/" + key,
		ExpiresAt: s.now().Add(UploadTTL),
	}, nil
}
