package store

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/rshade/fetchcache/internal/awsutil"
)

// s3ObjectSuffix is appended to every object name written by S3Store.
const s3ObjectSuffix = ".json"

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// S3Store keeps one JSON object per entry at <prefix><hex(key)>.json.
// Each object holds {"value": ..., "storedAt": ...}. Puts are single
// PutObject calls, so readers see either the old or the new object.
type S3Store struct {
	client S3API
	loc    awsutil.S3Location
	opts   options
}

// NewS3Store returns a store writing beneath loc.
func NewS3Store(client S3API, loc awsutil.S3Location, opts ...Option) (*S3Store, error) {
	if client == nil {
		return nil, errors.New("s3 client cannot be nil")
	}
	if loc.Bucket == "" {
		return nil, errors.New("s3 bucket cannot be empty")
	}
	return &S3Store{client: client, loc: loc, opts: newOptions(opts)}, nil
}

func (s *S3Store) objectKey(key string) string {
	return s.loc.Prefix + hex.EncodeToString([]byte(key)) + s3ObjectSuffix
}

func (s *S3Store) cacheKey(objectKey string) (string, bool) {
	name := strings.TrimPrefix(objectKey, s.loc.Prefix)
	if name == objectKey && s.loc.Prefix != "" {
		return "", false
	}
	name, ok := strings.CutSuffix(name, s3ObjectSuffix)
	if !ok || strings.Contains(name, "/") {
		return "", false
	}
	decoded, err := hex.DecodeString(name)
	if err != nil || len(decoded) == 0 {
		return "", false
	}
	return string(decoded), true
}

// Get implements Store.
func (s *S3Store) Get(ctx context.Context, key string) (*Entry, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.loc.Bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading s3 cache object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading s3 cache object body: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw rawRecord
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: object %s: %w", ErrCorrupt, s.objectKey(key), err)
	}
	return raw.toEntry(key)
}

// Put implements Store.
func (s *S3Store) Put(ctx context.Context, key string, value any) error {
	if key == "" {
		return ErrInvalidKey
	}

	e := &Entry{Key: key, Value: value, StoredAt: s.opts.now()}
	data, err := json.Marshal(newRecord(e))
	if err != nil {
		return fmt.Errorf("encoding cache value: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.loc.Bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("writing s3 cache object: %w", err)
	}
	return nil
}

// Remove implements Store. S3 deletes are idempotent.
func (s *S3Store) Remove(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.loc.Bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("deleting s3 cache object: %w", err)
	}
	return nil
}

// Keys implements Store. Objects under the prefix that were not written by
// S3Store are skipped.
func (s *S3Store) Keys(ctx context.Context) ([]string, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.loc.Bucket)}
	if s.loc.Prefix != "" {
		input.Prefix = aws.String(s.loc.Prefix)
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing s3 cache objects: %w", err)
		}
		for _, obj := range page.Contents {
			if key, ok := s.cacheKey(aws.ToString(obj.Key)); ok {
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// NormalizesValues implements ValueNormalizer.
func (s *S3Store) NormalizesValues() bool {
	return true
}

// Close implements Store.
func (s *S3Store) Close() error {
	return nil
}

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
