// Package awsutil provides shared AWS helpers for the S3-backed cache store.
package awsutil

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Scheme is the backing-location scheme for S3 stores.
const S3Scheme = "s3"

// S3Location is a bucket and key prefix parsed from "s3://bucket/prefix".
type S3Location struct {
	Bucket string
	// Prefix never starts with "/" and, when non-empty, ends with "/".
	Prefix string
}

// ParseS3Location parses "s3://bucket[/prefix]".
func ParseS3Location(raw string) (S3Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return S3Location{}, fmt.Errorf("parsing s3 location %q: %w", raw, err)
	}
	if u.Scheme != S3Scheme {
		return S3Location{}, fmt.Errorf("s3 location %q must use the s3:// scheme", raw)
	}
	if u.Host == "" {
		return S3Location{}, fmt.Errorf("s3 location %q has no bucket", raw)
	}

	prefix := strings.TrimPrefix(u.Path, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return S3Location{Bucket: u.Host, Prefix: prefix}, nil
}

// String renders the location back to its s3:// form.
func (l S3Location) String() string {
	return S3Scheme + "://" + l.Bucket + "/" + l.Prefix
}

// options holds optional overrides for AWS config loading.
type options struct {
	profile string
	region  string
}

// Option customizes how AWS config is loaded. Without options the shell's
// AWS setup is inherited (AWS_PROFILE, shared config, env, IMDS).
type Option func(*options)

// WithProfile sets the shared config profile.
func WithProfile(profile string) Option {
	return func(o *options) { o.profile = profile }
}

// WithRegion sets the region override.
func WithRegion(region string) Option {
	return func(o *options) { o.region = region }
}

// LoadConfig loads AWS SDK v2 config with the given overrides.
func LoadConfig(ctx context.Context, opts ...Option) (aws.Config, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var loadOpts []func(*config.LoadOptions) error
	if o.profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(o.profile))
	}
	if o.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(o.region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading aws config: %w", err)
	}
	return cfg, nil
}

// NewS3Client constructs an S3 client from cfg.
func NewS3Client(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
	return s3.NewFromConfig(cfg, optFns...)
}
