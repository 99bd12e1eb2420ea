package dataset

import (
	"context"
	"fmt"
	"strings"
)

// Backend names.
const (
	BackendMemory   = "memory"
	BackendLocal    = "local"
	BackendS3       = "s3"
	BackendPostgres = "postgres"
)

// Config selects and configures a dataset backend.
type Config struct {
	Backend     string   `yaml:"backend"`
	Root        string   `yaml:"root"`
	Bucket      string   `yaml:"bucket"`
	Prefix      string   `yaml:"prefix"`
	S3          S3Config `yaml:"s3"`
	DatabaseURL string   `yaml:"databaseUrl"`
}

// Open returns the writer for cfg.Backend. The second return value
// releases backend resources and is never nil.
func Open(ctx context.Context, cfg Config) (Writer, func(), error) {
	noop := func() {}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "salesforce"
	}

	switch strings.ToLower(cfg.Backend) {
	case "", BackendMemory:
		return NewMemory(), noop, nil
	case BackendLocal:
		store := NewLocalStore(cfg.Root)
		if err := store.Ping(ctx); err != nil {
			return nil, noop, err
		}
		return NewObjects(store, bucket, cfg.Prefix), noop, nil
	case BackendS3, "minio":
		client, err := NewS3Client(cfg.S3)
		if err != nil {
			return nil, noop, err
		}
		if err := client.Ping(ctx); err != nil {
			return nil, noop, err
		}
		return NewObjects(client, bucket, cfg.Prefix), noop, nil
	case BackendPostgres:
		pg, err := NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		return pg, pg.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown dataset backend %q", cfg.Backend)
	}
}
