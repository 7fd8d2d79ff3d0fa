// Package storage uploads exported health reports to S3-compatible object
// storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIO stores reports in a single bucket and hands out presigned links.
type MinIO struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

// NewMinIO connects to endpoint (host:port) and creates the bucket when it
// does not exist yet.
func NewMinIO(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool, expiry time.Duration) (*MinIO, error) {
	c, err := minio.New(endpoint, &minio.Options{Creds: credentials.NewStaticV4(accessKey, secretKey, ""), Secure: useSSL})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := c.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := c.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &MinIO{client: c, bucket: bucket, expiry: expiry}, nil
}

var nonSafe = regexp.MustCompile(`[^a-z0-9\-_./]+`)

// SanitizeKey lowercases key and replaces characters outside [a-z0-9-_./].
func SanitizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.ReplaceAll(key, " ", "-")
	key = nonSafe.ReplaceAllString(key, "-")
	key = strings.Trim(key, "-_/")
	if key == "" {
		key = "report"
	}
	return key
}

// UploadReport stores data under key and returns a presigned download URL.
func (m *MinIO) UploadReport(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	key = SanitizeKey(key)
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, m.expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}
