package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig configures the MinIO/S3 store.
type MinioConfig struct {
	Endpoint         string
	AccessKey        string
	SecretKey        string
	UseSSL           bool
	Region           string
	Bucket           string
	QuarantineBucket string
}

// MinioStore implements Store on MinIO or any S3 compatible endpoint.
// Quarantined objects live in QuarantineBucket under their blob name; scanned
// objects are moved to Bucket under imports/<blob name>.
type MinioStore struct {
	client *minio.Client
	cfg    MinioConfig
}

// NewMinioStore creates a client. Buckets are not touched until EnsureBuckets.
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("blob endpoint is required")
	}
	if cfg.Bucket == "" || cfg.QuarantineBucket == "" {
		return nil, errors.New("blob bucket and quarantine bucket are required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinioStore{client: client, cfg: cfg}, nil
}

// EnsureBuckets creates missing buckets.
func (s *MinioStore) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.cfg.Bucket, s.cfg.QuarantineBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if exists {
			continue
		}
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return nil
}

func (s *MinioStore) Save(ctx context.Context, projectID uuid.UUID, fileName, contentType string, data []byte) (string, error) {
	if contentType == "" {
		contentType = defaultContentType
	}
	name := NewName(projectID)
	_, err := s.client.PutObject(ctx, s.cfg.QuarantineBucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{fileNameMetadata: SanitizeFileName(fileName)},
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", name, classify(err))
	}
	return name, nil
}

func (s *MinioStore) Find(ctx context.Context, name string) (Info, error) {
	info, err := s.client.StatObject(ctx, s.cfg.Bucket, importsPrefix+name, minio.StatObjectOptions{})
	if err != nil {
		return Info{}, fmt.Errorf("stat %s: %w", name, classify(err))
	}
	return Info{
		Name:        name,
		FileName:    info.UserMetadata[fileNameMetadata],
		ContentType: info.ContentType,
		Size:        info.Size,
	}, nil
}

func (s *MinioStore) Read(ctx context.Context, name string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.cfg.Bucket, importsPrefix+name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, classify(err))
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, classify(err))
	}
	return data, nil
}

func (s *MinioStore) Delete(ctx context.Context, name string) error {
	for bucket, key := range map[string]string{
		s.cfg.QuarantineBucket: name,
		s.cfg.Bucket:           importsPrefix + name,
	} {
		err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
		if err != nil && !errors.Is(classify(err), ErrNotFound) {
			return fmt.Errorf("remove %s/%s: %w", bucket, key, err)
		}
	}
	return nil
}

func (s *MinioStore) MoveFromQuarantine(ctx context.Context, name string) error {
	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.cfg.Bucket, Object: importsPrefix + name},
		minio.CopySrcOptions{Bucket: s.cfg.QuarantineBucket, Object: name},
	)
	if err != nil {
		return fmt.Errorf("copy %s out of quarantine: %w", name, classify(err))
	}
	if err := s.client.RemoveObject(ctx, s.cfg.QuarantineBucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove quarantined %s: %w", name, classify(err))
	}
	return nil
}

func (s *MinioStore) ScanResult(ctx context.Context, name string) (ScanResult, error) {
	t, err := s.client.GetObjectTagging(ctx, s.cfg.QuarantineBucket, name, minio.GetObjectTaggingOptions{})
	if err != nil {
		return ScanNotScanned, fmt.Errorf("tags of %s: %w", name, classify(err))
	}
	value, ok := t.ToMap()[ScanResultTag]
	return resultFromTag(value, ok), nil
}

// classify maps missing objects to ErrNotFound and leaves other errors as they are.
func classify(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NoSuchObject":
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

var _ Store = (*MinioStore)(nil)
