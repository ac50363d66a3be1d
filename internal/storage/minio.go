package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/estensen/streamflow-pipeline/internal/config"
)

type MinIOStorage struct {
	Client     *minio.Client
	BucketName string
	logger     *zap.Logger
}

// NewMinIOStorage connects to MinIO and creates the bucket if it is missing.
func NewMinIOStorage(ctx context.Context, cfg config.MinIO, logger *zap.Logger) (*MinIOStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("error checking bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Info("created bucket", zap.String("bucket", cfg.Bucket))
	}

	return &MinIOStorage{
		Client:     client,
		BucketName: cfg.Bucket,
		logger:     logger,
	}, nil
}

func (m *MinIOStorage) Put(ctx context.Context, name string, data []byte, contentType string) error {
	_, err := m.Client.PutObject(ctx, m.BucketName, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload '%s' to MinIO: %w", name, err)
	}
	m.logger.Debug("uploaded object", zap.String("bucket", m.BucketName), zap.String("object", name), zap.Int("bytes", len(data)))
	return nil
}

func (m *MinIOStorage) Get(ctx context.Context, name string) ([]byte, error) {
	obj, err := m.Client.GetObject(ctx, m.BucketName, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, m.wrap(name, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, m.wrap(name, err)
	}
	return data, nil
}

func (m *MinIOStorage) wrap(name string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, m.BucketName, name)
	}
	return fmt.Errorf("failed to download '%s' from MinIO: %w", name, err)
}
