package sink

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioSink stores artifacts in an S3-compatible bucket.
type MinioSink struct {
	client *minio.Client
	bucket string
}

func NewMinioSink(ctx context.Context, config MinioConfig) (*MinioSink, error) {
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, config.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", config.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, config.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", config.Bucket, err)
		}
	}
	return &MinioSink{client: client, bucket: config.Bucket}, nil
}

func (s *MinioSink) Store(ctx context.Context, name string, content io.Reader) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, name, content, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return "", fmt.Errorf("upload %s to bucket %s: %w", name, s.bucket, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, name), nil
}
