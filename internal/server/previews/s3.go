package previews

import (
	"bytes"
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

	"github.com/aurorasketchpad/aurora/internal/logging"
	"github.com/aurorasketchpad/aurora/internal/server/config"
)

var (
	loadDefaultAWSConfig  = awsconfig.LoadDefaultConfig
	newS3ClientFromConfig = s3.NewFromConfig
	newS3PresignClient    = func(c *s3.Client) presignAPI { return s3.NewPresignClient(c) }
	now                   = time.Now
)

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Store uploads previews to an S3 compatible bucket. The project row keeps
// the object key; reads get a short-lived presigned GET URL.
type S3Store struct {
	objects    objectAPI
	presign    presignAPI
	bucket     string
	presignTTL time.Duration
	logger     logging.Logger
}

func NewS3Store(ctx context.Context, cfg config.PreviewConfig, logger logging.Logger) (*S3Store, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is not configured")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			// MinIO and most self-hosted stores need path-style URLs.
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		objects:    client,
		presign:    newS3PresignClient(client),
		bucket:     cfg.S3Bucket,
		presignTTL: cfg.PresignTTL,
		logger:     logger.With("module", "previews"),
	}, nil
}

func objectKey(userID int64, t time.Time) string {
	return fmt.Sprintf("projects/%d/%04d/%02d/%s.png", userID, t.Year(), int(t.Month()), uuid.New())
}

func (s *S3Store) Save(ctx context.Context, userID int64, preview string) (string, error) {
	img, err := decodePNGDataURL(preview)
	if err != nil {
		return "", err
	}

	key := objectKey(userID, now().UTC())
	_, err = s.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(img),
		ContentLength: aws.Int64(int64(len(img))),
		ContentType:   aws.String("image/png"),
	})
	if err != nil {
		return "", fmt.Errorf("put preview %s: %w", key, err)
	}

	s.logger.Debug(ctx, "preview uploaded", "user_id", userID, "key", key, "bytes", len(img))
	return key, nil
}

func (s *S3Store) URL(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	// rows written before S3 was enabled still hold inline data URLs
	if strings.HasPrefix(ref, "data:") {
		return ref, nil
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", fmt.Errorf("presign preview %s: %w", ref, err)
	}
	return req.URL, nil
}

func (s *S3Store) Delete(ctx context.Context, ref string) error {
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return nil
	}
	_, err := s.objects.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		return fmt.Errorf("delete preview %s: %w", ref, err)
	}
	return nil
}
