package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"

	"sipnread/api/internal/apperr"
)

// Store persists uploaded reading images and returns a public URL.
type Store interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

type GCS struct {
	svc    *storage.Service
	bucket string
}

func NewGCS(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCS, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("objectstore: bucket is required")
	}
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("objectstore: new service: %w", err)
	}
	return &GCS{svc: svc, bucket: bucket}, nil
}

func (g *GCS) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	obj := &storage.Object{
		Name:         name,
		ContentType:  contentType,
		CacheControl: "public, max-age=86400",
	}
	_, err := g.svc.Objects.Insert(g.bucket, obj).
		Media(bytes.NewReader(data), googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
	if err != nil {
		return "", apperr.Remote("storage", err)
	}
	return PublicURL(g.bucket, name), nil
}

// BucketURL is the public prefix every object of bucket is served under.
func BucketURL(bucket string) string {
	if strings.TrimSpace(bucket) == "" {
		return ""
	}
	return "https://storage.googleapis.com/" + bucket + "/"
}

func PublicURL(bucket, name string) string {
	segs := strings.Split(name, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return BucketURL(bucket) + strings.Join(segs, "/")
}

// ReadingImagePath returns readings/<uid>/<unixMillis>_<index>.jpg
func ReadingImagePath(uid string, at time.Time, index int) string {
	return fmt.Sprintf("readings/%s/%d_%d.jpg", uid, at.UnixMilli(), index)
}
