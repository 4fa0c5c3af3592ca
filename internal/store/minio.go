package store

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore talks to a MinIO (or other S3-compatible) endpoint via
// minio-go. Unlike plain S3, MinIO listings can carry user metadata, so
// index entries built from this backend include the content fingerprint.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore builds a MinIO backend. The endpoint is host[:port]; an
// https:// scheme prefix enables TLS and is stripped.
func NewMinioStore(cfg Config) (*MinioStore, error) {
	endpoint := cfg.Endpoint
	secure := true
	if strings.HasPrefix(endpoint, "http://") {
		endpoint = strings.TrimPrefix(endpoint, "http://")
		secure = false
	} else {
		endpoint = strings.TrimPrefix(endpoint, "https://")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

func (m *MinioStore) Stat(ctx context.Context, key string) (*Object, error) {
	info, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.StatusCode == http.StatusNotFound {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}

	return &Object{
		Key:  key,
		Hash: metadataFingerprint(info.UserMetadata),
		Size: info.Size,
	}, nil
}

func (m *MinioStore) List(ctx context.Context, prefix, marker string, limit int32) (*Page, error) {
	// The channel API pages internally; cancel it once we have a full page
	// so the marker contract of Store holds.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	objects := m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:       prefix,
		Recursive:    true,
		WithMetadata: true,
		StartAfter:   marker,
		MaxKeys:      int(limit),
	})

	page := &Page{}
	for obj := range objects {
		if obj.Err != nil {
			return nil, obj.Err
		}
		page.Items = append(page.Items, Object{
			Key:  obj.Key,
			Hash: metadataFingerprint(obj.UserMetadata),
			Size: obj.Size,
		})
		if int32(len(page.Items)) >= limit {
			page.Marker = obj.Key
			break
		}
	}

	return page, nil
}

func (m *MinioStore) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType, fingerprint string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, body, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{FingerprintKey: fingerprint},
	})
	return err
}

// metadataFingerprint digs the fingerprint out of user metadata. minio-go
// reports keys canonicalized, with the x-amz-meta- prefix retained on
// listings but stripped on stats.
func metadataFingerprint(meta map[string]string) string {
	for k, v := range meta {
		name := strings.ToLower(k)
		name = strings.TrimPrefix(name, "x-amz-meta-")
		if name == FingerprintKey {
			return v
		}
	}
	return ""
}

var _ Store = (*MinioStore)(nil)
