package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rshade/fetchcache/internal/awsutil"
)

// Backing location forms accepted by Open.
const (
	BackingMemory = "memory"
	sqlitePrefix  = "sqlite://"
	s3Prefix      = awsutil.S3Scheme + "://"
)

// Open returns the store described by backing:
//
//	""  or "memory"       MemoryStore
//	"sqlite://<path>"     SQLStore on a SQLite file (or ":memory:")
//	"s3://bucket/prefix"  S3Store using the ambient AWS configuration
//	anything else         FileStore at that path
func Open(ctx context.Context, backing string, opts ...Option) (Store, error) {
	backing = strings.TrimSpace(backing)

	switch {
	case backing == "" || strings.EqualFold(backing, BackingMemory):
		return NewMemoryStore(opts...), nil

	case strings.HasPrefix(backing, sqlitePrefix):
		return OpenSQLite(strings.TrimPrefix(backing, sqlitePrefix), opts...)

	case strings.HasPrefix(backing, s3Prefix):
		loc, err := awsutil.ParseS3Location(backing)
		if err != nil {
			return nil, err
		}
		cfg, err := awsutil.LoadConfig(ctx)
		if err != nil {
			return nil, err
		}
		return NewS3Store(awsutil.NewS3Client(cfg), loc, opts...)

	default:
		s, err := NewFileStore(backing, opts...)
		if err != nil {
			return nil, fmt.Errorf("opening file store: %w", err)
		}
		return s, nil
	}
}
