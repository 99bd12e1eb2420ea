package dataset

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ObjectStore is the subset of S3 operations the object writer needs.
type ObjectStore interface {
	Ping(ctx context.Context) error
	EnsureBucket(ctx context.Context, bucket string) error
	PutObject(ctx context.Context, bucket, key string, data []byte) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	ListPrefix(ctx context.Context, bucket, prefix string) ([]string, error)
}

// Objects writes datasets as objects of a bucket.
type Objects struct {
	store  ObjectStore
	bucket string
	prefix string
	now    func() time.Time
}

// NewObjects returns a writer storing datasets in bucket under prefix.
func NewObjects(store ObjectStore, bucket, prefix string) *Objects {
	return &Objects{store: store, bucket: bucket, prefix: prefix, now: time.Now}
}

func (o *Objects) WriteDataset(ctx context.Context, datasetID string, data []byte) error {
	if err := ValidateID(datasetID); err != nil {
		return err
	}
	if err := o.store.EnsureBucket(ctx, o.bucket); err != nil {
		return err
	}
	return o.store.PutObject(ctx, o.bucket, objectKey(o.prefix, datasetID, o.now(), data), data)
}

// Keys lists the objects written for datasetID, oldest first.
func (o *Objects) Keys(ctx context.Context, datasetID string) ([]string, error) {
	return o.store.ListPrefix(ctx, o.bucket, joinPath(o.prefix, datasetID)+"/")
}

// Read returns the object stored under key.
func (o *Objects) Read(ctx context.Context, key string) ([]byte, error) {
	return o.store.GetObject(ctx, o.bucket, key)
}

// LocalStore persists objects on disk, one directory per bucket.
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at dir.
func NewLocalStore(root string) *LocalStore {
	if root == "" {
		root = filepath.Join(os.TempDir(), "ucl-salesforce-datasets")
	}
	return &LocalStore{root: root}
}

func (s *LocalStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.MkdirAll(s.root, 0o755)
}

func (s *LocalStore) EnsureBucket(ctx context.Context, bucket string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if bucket == "" {
		return wrapError(CodeBucketNotFound, false, os.ErrNotExist)
	}
	return os.MkdirAll(s.bucketPath(bucket), 0o755)
}

func (s *LocalStore) PutObject(ctx context.Context, bucket, key string, data []byte) error {
	if err := s.EnsureBucket(ctx, bucket); err != nil {
		return err
	}
	fullPath := filepath.Join(s.bucketPath(bucket), filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return wrapError(CodePermissionDenied, false, err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return wrapError(CodeWriteFailed, true, err)
	}
	return nil
}

func (s *LocalStore) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.bucketPath(bucket), filepath.FromSlash(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, wrapError(CodeObjectNotFound, false, err)
		}
		return nil, wrapError(CodeWriteFailed, true, err)
	}
	return data, nil
}

func (s *LocalStore) ListPrefix(ctx context.Context, bucket, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := s.bucketPath(bucket)
	var keys []string
	err := filepath.WalkDir(base, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		if key := filepath.ToSlash(rel); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, wrapError(CodeWriteFailed, true, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *LocalStore) bucketPath(bucket string) string {
	return filepath.Join(s.root, sanitizePath(bucket))
}

func sanitizePath(p string) string {
	p = strings.ReplaceAll(p, "..", "")
	return strings.Trim(p, "/\\")
}

func joinPath(parts ...string) string {
	joined := filepath.ToSlash(filepath.Join(parts...))
	return strings.TrimPrefix(joined, "/")
}
