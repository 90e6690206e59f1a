package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"WaveDeck/config"
	"WaveDeck/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const minioAudioPrefix = "audio/"

// MinioStore keeps objects in a MinIO/S3 bucket under the audio/ prefix.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to MinIO and creates the bucket when it is missing.
func NewMinioStore(cfg *config.Config) (*MinioStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.MinioBucket, err)
		}
		logger.Info("created MinIO bucket", logger.String("bucket", cfg.MinioBucket))
	}

	logger.Info("MinIO store ready",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket))
	return &MinioStore{client: client, bucket: cfg.MinioBucket}, nil
}

func objectName(key string) string {
	return minioAudioPrefix + key
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchObject"
}

func (s *MinioStore) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error) {
	if _, err := cleanKey(key); err != nil {
		return 0, err
	}
	info, err := s.client.PutObject(ctx, s.bucket, objectName(key), r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		// PutObject may leave a partial multipart upload; try to clear it.
		_ = s.client.RemoveIncompleteUpload(context.Background(), s.bucket, objectName(key))
		return 0, fmt.Errorf("failed to upload %s to MinIO: %w", key, err)
	}
	return info.Size, nil
}

func (s *MinioStore) Open(ctx context.Context, key string) (Object, error) {
	if _, err := cleanKey(key); err != nil {
		return nil, ErrNotExist
	}
	obj, err := s.client.GetObject(ctx, s.bucket, objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s in MinIO: %w", key, err)
	}
	// GetObject is lazy; Stat performs the request and surfaces NoSuchKey.
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if isNoSuchKey(err) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("failed to stat %s in MinIO: %w", key, err)
	}
	return &minioObject{Object: obj, size: info.Size}, nil
}

func (s *MinioStore) Remove(ctx context.Context, key string) error {
	if _, err := cleanKey(key); err != nil {
		return ErrNotExist
	}
	// RemoveObject succeeds for missing keys, so stat first.
	if _, err := s.client.StatObject(ctx, s.bucket, objectName(key), minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return ErrNotExist
		}
		return fmt.Errorf("failed to stat %s in MinIO: %w", key, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, objectName(key), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove %s from MinIO: %w", key, err)
	}
	return nil
}

// StoredObject describes one object for the minio CLI listing.
type StoredObject struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// List returns every stored audio object.
func (s *MinioStore) List(ctx context.Context) ([]StoredObject, error) {
	var objects []StoredObject
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: minioAudioPrefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list bucket %s: %w", s.bucket, obj.Err)
		}
		objects = append(objects, StoredObject{
			Key:          obj.Key[len(minioAudioPrefix):],
			Size:         obj.Size,
			LastModified: obj.LastModified,
			ContentType:  obj.ContentType,
		})
	}
	return objects, nil
}

func (s *MinioStore) Location(key string) string {
	return s.bucket + "/" + objectName(key)
}

// Bucket returns the configured bucket name.
func (s *MinioStore) Bucket() string {
	return s.bucket
}

type minioObject struct {
	*minio.Object
	size int64
}

func (o *minioObject) Size() int64 {
	return o.size
}
