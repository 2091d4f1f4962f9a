package storage

import (
	"context"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"learnhub/pkg/logger"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	URLExpiry time.Duration
}

// MinIOStorage hands out time-limited URLs for course media.
type MinIOStorage struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

func NewMinIOStorage(cfg Config) (*MinIOStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create MinIO client")
	}

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &MinIOStorage{
		client: client,
		bucket: cfg.Bucket,
		expiry: expiry,
	}, nil
}

// EnsureBucket creates the media bucket if it does not exist yet.
func (s *MinIOStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return errors.Wrap(err, "check bucket")
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return errors.Wrap(err, "create bucket")
	}
	logger.Log.Info("created media bucket", zap.String("bucket", s.bucket))
	return nil
}

// PresignedURL returns a GET URL for object valid for the configured expiry.
func (s *MinIOStorage) PresignedURL(ctx context.Context, object string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, object, s.expiry, url.Values{})
	if err != nil {
		return "", errors.Wrapf(err, "presign %s", object)
	}
	return u.String(), nil
}
