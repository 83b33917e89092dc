package kv

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Object keeps each key as one JSON object in a MinIO/S3 bucket. Watch rides
// on bucket notifications, which cannot attribute writes, so a watcher may
// see its own changes; listeners only re-read, which makes that harmless.
type Object struct {
	client *minio.Client
	bucket string
}

// NewObject connects to MinIO and ensures the bucket exists.
func NewObject(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Object, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &Object{client: client, bucket: bucket}, nil
}

func (o *Object) Get(ctx context.Context, key string) (string, bool, error) {
	obj, err := o.client.GetObject(ctx, o.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return "", false, fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read object %s: %w", key, err)
	}
	return string(data), true, nil
}

func (o *Object) Set(ctx context.Context, key, value string) error {
	reader := bytes.NewReader([]byte(value))
	_, err := o.client.PutObject(ctx, o.bucket, key, reader, int64(reader.Len()), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// Watch streams bucket notifications and forwards object writes on the given
// keys. Notification object keys arrive URL-encoded.
func (o *Object) Watch(ctx context.Context, keys ...string) (<-chan Change, error) {
	watched := make(map[string]bool, len(keys))
	for _, k := range keys {
		watched[k] = true
	}
	events := o.client.ListenBucketNotification(ctx, o.bucket, "", "", []string{
		"s3:ObjectCreated:*",
	})
	out := make(chan Change, 16)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case info, ok := <-events:
				if !ok {
					return
				}
				if info.Err != nil {
					slog.Warn("bucket notification error", "bucket", o.bucket, "error", info.Err)
					continue
				}
				for _, record := range info.Records {
					key := record.S3.Object.Key
					if decoded, err := url.QueryUnescape(key); err == nil {
						key = decoded
					}
					if !watched[key] {
						continue
					}
					select {
					case out <- Change{Key: key}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out, nil
}
