package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mwantia/flashfs/data"
	"github.com/mwantia/flashfs/engine/store"
)

// S3Store persists the object graph and file chunks in an S3 bucket.
//
// Layout under the configured prefix:
//   - <prefix>/obj/<id>          JSON-encoded record
//   - <prefix>/chunk/<id>/<idx>  raw chunk bytes
type S3Store struct {
	mu sync.RWMutex

	client     *minio.Client
	bucketName string
	prefix     string
}

// NewS3Store creates a new S3-backed store. The prefix namespaces
// this device's keys inside the bucket; pass the device ID.
func NewS3Store(endpoint, bucketName, accessKey, secretKey, prefix string, useSsl bool) (*S3Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSsl,
	})
	if err != nil {
		return nil, err
	}

	if prefix == "" {
		prefix = "flashfs"
	}

	return &S3Store{
		client:     client,
		bucketName: bucketName,
		prefix:     prefix,
	}, nil
}

// Name returns the identifier name defined for this store.
func (*S3Store) Name() string {
	return "s3"
}

// Open is part of the lifecycle behaviour and gets called when the
// engine initialises the device.
func (ss *S3Store) Open(ctx context.Context) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	exists, err := ss.client.BucketExists(ctx, ss.bucketName)
	if err != nil {
		return err
	}

	if !exists {
		return data.ErrMountFailed
	}

	return nil
}

// Close is part of the lifecycle behaviour and gets called when the
// engine tears the device down.
func (ss *S3Store) Close(ctx context.Context) error {
	return nil
}

// Capabilities returns the limits advertised by this store.
func (ss *S3Store) Capabilities() *store.Capabilities {
	return &store.Capabilities{}
}

func (ss *S3Store) PutRecord(ctx context.Context, rec *store.Record) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	buf, err := rec.Marshal()
	if err != nil {
		return err
	}

	return ss.putObject(ctx, ss.recordKey(rec.ID), buf)
}

func (ss *S3Store) DeleteRecord(ctx context.Context, id uint64) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	return ss.client.RemoveObject(ctx, ss.bucketName, ss.recordKey(id), minio.RemoveObjectOptions{})
}

func (ss *S3Store) ListRecords(ctx context.Context) ([]*store.Record, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	prefix := ss.prefix + "/obj/"
	objects := ss.client.ListObjects(ctx, ss.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	var records []*store.Record
	for info := range objects {
		if info.Err != nil {
			return nil, info.Err
		}

		buf, err := ss.getObject(ctx, info.Key)
		if err != nil {
			return nil, err
		}
		if buf == nil {
			continue
		}

		rec := &store.Record{}
		if err := rec.Unmarshal(buf); err != nil {
			return nil, fmt.Errorf("corrupt record at %s: %w", info.Key, err)
		}
		records = append(records, rec)
	}

	// Listing order is lexicographic; the zero-padded key format
	// makes that identical to identifier order.
	return records, nil
}

func (ss *S3Store) ReadChunk(ctx context.Context, id uint64, index int64) ([]byte, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	return ss.getObject(ctx, ss.chunkKey(id, index))
}

func (ss *S3Store) WriteChunk(ctx context.Context, id uint64, index int64, buf []byte) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	return ss.putObject(ctx, ss.chunkKey(id, index), buf)
}

func (ss *S3Store) TrimChunks(ctx context.Context, id uint64, from int64) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	prefix := fmt.Sprintf("%s/chunk/%016x/", ss.prefix, id)
	objects := ss.client.ListObjects(ctx, ss.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	for info := range objects {
		if info.Err != nil {
			return info.Err
		}

		index, err := strconv.ParseInt(strings.TrimPrefix(info.Key, prefix), 16, 64)
		if err != nil {
			continue
		}
		if index < from {
			continue
		}

		if err := ss.client.RemoveObject(ctx, ss.bucketName, info.Key, minio.RemoveObjectOptions{}); err != nil {
			return err
		}
	}

	return nil
}

// Flush persists any buffered state. S3 writes are synchronous.
func (ss *S3Store) Flush(ctx context.Context) error {
	return nil
}

func (ss *S3Store) putObject(ctx context.Context, key string, buf []byte) error {
	reader := bytes.NewReader(buf)
	_, err := ss.client.PutObject(ctx, ss.bucketName, key, reader, int64(len(buf)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return err
}

// getObject fetches a full object, returning nil for missing keys.
func (ss *S3Store) getObject(ctx context.Context, key string) ([]byte, error) {
	obj, err := ss.client.GetObject(ctx, ss.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	buf, err := io.ReadAll(obj)
	if err != nil {
		response := minio.ToErrorResponse(err)
		if response.Code == "NoSuchKey" {
			return nil, nil
		}
		return nil, err
	}

	return buf, nil
}

func (ss *S3Store) recordKey(id uint64) string {
	return fmt.Sprintf("%s/obj/%016x", ss.prefix, id)
}

func (ss *S3Store) chunkKey(id uint64, index int64) string {
	return fmt.Sprintf("%s/chunk/%016x/%016x", ss.prefix, id, index)
}

var _ store.Store = (*S3Store)(nil)
