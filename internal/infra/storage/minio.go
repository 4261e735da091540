package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/avast/retry-go"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

const (
	uploadTries    = 3
	uploadMinDelay = 200 * time.Millisecond
)

type objectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Store archives scan reports in a MinIO (or S3 compatible) bucket.
type Store struct {
	client     objectPutter
	host       string
	bucketName string
	region     string
}

// New buat koneksi MinIO dan pastikan bucket ada
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", bucket, err)
		}
	}

	return &Store{client: cli, host: cli.EndpointURL().Host, bucketName: bucket, region: region}, nil
}

// PutJSON uploads body under key and returns the object URL. Transient
// failures are retried with backoff.
func (s *Store) PutJSON(ctx context.Context, key string, body []byte) (string, error) {
	err := retry.Do(
		func() error {
			_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
				ContentType: "application/json",
			})
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uploadTries),
		retry.Delay(uploadMinDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			zerolog.Ctx(ctx).Warn().Err(err).Uint("attempt", n+1).Str("key", key).Msg("retrying report upload")
		}),
	)
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}

	// URL publik (jika bucket public), kalau private harus generate presigned URL
	return fmt.Sprintf("http://%s/%s/%s", s.host, s.bucketName, key), nil
}
