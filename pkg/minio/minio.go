package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"ugc-marketplace/pkg/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Client = fx.Module("minio.client", fx.Provide(registerClient, NewObjectStore))

// registerClient returns nil when MINIO.ENDPOINT is empty; the object store then
// becomes a noop.
func registerClient(c *config.Config) *minio.Client {
	if c.Minio.Endpoint == "" {
		zap.L().Info("[MinIO] endpoint not configured, report archive disabled")
		return nil
	}

	client, err := minio.New(c.Minio.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.Minio.AccessKey, c.Minio.SecretKey, ""),
		Secure: c.Minio.Secure,
	})
	if err != nil {
		zap.L().Fatal("[MinIO] failed to create client", zap.Error(err))
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, c.Minio.BucketName)
	if err != nil {
		zap.L().Error("[MinIO] failed to check bucket", zap.String("bucket", c.Minio.BucketName), zap.Error(err))
		return client
	}
	if !exists {
		if err := client.MakeBucket(ctx, c.Minio.BucketName, minio.MakeBucketOptions{}); err != nil {
			zap.L().Error("[MinIO] failed to create bucket", zap.String("bucket", c.Minio.BucketName), zap.Error(err))
		}
	}

	zap.L().Info("[MinIO] client initialized", zap.String("endpoint", c.Minio.Endpoint), zap.Bool("bucketExists", exists))
	return client
}

// ObjectStore archives JSON documents such as run reports.
type ObjectStore interface {
	PutJSON(ctx context.Context, key string, v any) (string, error)
}

type objectStore struct {
	client *minio.Client
	bucket string
}

type noopStore struct{}

func (noopStore) PutJSON(context.Context, string, any) (string, error) { return "", nil }

type StoreParams struct {
	fx.In
	Config *config.Config
	Client *minio.Client `optional:"true"`
}

func NewObjectStore(p StoreParams) ObjectStore {
	if p.Client == nil {
		return noopStore{}
	}
	return &objectStore{client: p.Client, bucket: p.Config.Minio.BucketName}
}

func (s *objectStore) PutJSON(ctx context.Context, key string, v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(b), int64(len(b)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	return info.Key, nil
}
