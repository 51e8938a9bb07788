// Package minio implements core.ObjectStore on a MinIO (or any S3
// compatible) server.
package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/hupe1980/docmesh/core"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var _ core.ObjectStore = (*Store)(nil)

// Options configures the MinIO connection.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
	Region    string
}

// Store is a core.ObjectStore backed by minio-go.
type Store struct {
	client *minio.Client
	region string
}

// New connects to the MinIO endpoint. No request is made until first use.
func New(optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Endpoint: "minio:9000"}
	for _, fn := range optFns {
		fn(&opts)
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	return &Store{client: client, region: opts.Region}, nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *minio.Client) *Store {
	return &Store{client: client}
}

// EnsureBucket creates bucket when it does not exist.
func (s *Store) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", bucket, err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", bucket, err)
	}

	return nil
}

// Put uploads data as key.
func (s *Store) Put(ctx context.Context, bucket, key string, data []byte, contentType string) (core.ObjectInfo, error) {
	info, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return core.ObjectInfo{}, mapError(fmt.Sprintf("put %s/%s", bucket, key), err)
	}

	return core.ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ETag:         info.ETag,
		ContentType:  contentType,
		LastModified: info.LastModified,
	}, nil
}

// Get downloads key.
func (s *Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapError(fmt.Sprintf("get %s/%s", bucket, key), err)
	}
	defer obj.Close()

	// GetObject is lazy; errors such as NoSuchKey surface on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapError(fmt.Sprintf("get %s/%s", bucket, key), err)
	}

	return data, nil
}

// List lists every object of bucket recursively, sorted by key.
func (s *Store) List(ctx context.Context, bucket string) ([]core.ObjectInfo, error) {
	var infos []core.ObjectInfo

	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, mapError("list "+bucket, obj.Err)
		}
		infos = append(infos, core.ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			ETag:         obj.ETag,
			ContentType:  obj.ContentType,
			LastModified: obj.LastModified,
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })

	return infos, nil
}

// Remove deletes key. S3 deletes are idempotent, so the object is stat'ed
// first to report core.ErrNotFound.
func (s *Store) Remove(ctx context.Context, bucket, key string) error {
	if _, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{}); err != nil {
		return mapError(fmt.Sprintf("stat %s/%s", bucket, key), err)
	}

	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return mapError(fmt.Sprintf("remove %s/%s", bucket, key), err)
	}

	return nil
}

func mapError(op string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isNotFound(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return notFoundCode(resp.Code)
	}
	return notFoundCode(minio.ToErrorResponse(err).Code)
}

func notFoundCode(code string) bool {
	switch code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return true
	}
	return false
}
