package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const archivePrefix = "backups/"

// Archive keeps backup bundles in an S3-compatible bucket, so backups
// survive the machine the service runs on.
type Archive struct {
	client *minio.Client
	bucket string
	log    *zap.Logger
}

// ArchiveEntry describes one stored bundle.
type ArchiveEntry struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// NewArchive connects to the object store and ensures the bucket exists.
func NewArchive(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool, log *zap.Logger) (*Archive, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to object store: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	if log == nil {
		log = zap.NewNop()
	}
	return &Archive{client: client, bucket: bucket, log: log}, nil
}

// Upload stores one bundle under the backups prefix.
func (a *Archive) Upload(ctx context.Context, name string, data []byte) error {
	_, err := a.client.PutObject(ctx, a.bucket, archivePrefix+name,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("upload backup %s: %w", name, err)
	}
	a.log.Info("backup archived", zap.String("name", name), zap.Int("bytes", len(data)))
	return nil
}

// List returns the archived bundles, newest first not guaranteed; callers
// sort as needed.
func (a *Archive) List(ctx context.Context) ([]ArchiveEntry, error) {
	entries := []ArchiveEntry{}
	for obj := range a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{Prefix: archivePrefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list backups: %w", obj.Err)
		}
		entries = append(entries, ArchiveEntry{
			Name:         obj.Key[len(archivePrefix):],
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	return entries, nil
}

// Fetch reads one archived bundle back.
func (a *Archive) Fetch(ctx context.Context, name string) ([]byte, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, archivePrefix+name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetch backup %s: %w", name, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read backup %s: %w", name, err)
	}
	return data, nil
}
