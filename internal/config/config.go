// Package config holds the run configuration handed from the CLI layer to
// the sync engine. Validation happens here, before any filesystem or
// network work starts.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalid marks fatal configuration errors; the process exits non-zero
// before enumeration begins.
var ErrInvalid = errors.New("invalid config")

const (
	ProviderS3    = "s3"
	ProviderMinio = "minio"
)

const (
	DefaultConcurrency = 8
	DefaultRetries     = 2
	DefaultRetryDelay  = 500 * time.Millisecond
)

type Config struct {
	// SourceDir is the local root to synchronize.
	SourceDir string

	// Provider selects the store backend: ProviderS3 or ProviderMinio.
	Provider string

	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string

	// Prefix is prepended to every relative path to form the remote key.
	Prefix string

	// Concurrency caps simultaneously in-flight sync tasks.
	Concurrency int

	// Retries and RetryDelay feed the retry policy wrapping every remote
	// call.
	Retries    int
	RetryDelay time.Duration

	// Force disables diffing; every file uploads.
	Force bool

	// DryRun plans and logs uploads without any network write.
	DryRun bool

	// Excludes are doublestar globs matched against relative paths.
	Excludes []string

	// CachePath points at the fingerprint journal database; empty disables
	// the cache.
	CachePath string
}

func (c *Config) Validate() error {
	if c.SourceDir == "" {
		return fmt.Errorf("%w: source directory is required", ErrInvalid)
	}
	if c.Bucket == "" {
		return fmt.Errorf("%w: bucket is required", ErrInvalid)
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return fmt.Errorf("%w: access key and secret key are required", ErrInvalid)
	}

	switch c.Provider {
	case ProviderS3:
		if c.Region == "" && c.Endpoint == "" {
			return fmt.Errorf("%w: s3 provider requires a region or endpoint", ErrInvalid)
		}
	case ProviderMinio:
		if c.Endpoint == "" {
			return fmt.Errorf("%w: minio provider requires an endpoint", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalid, c.Provider)
	}

	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be >= 1", ErrInvalid)
	}
	if c.Retries < 0 {
		return fmt.Errorf("%w: retries must be >= 0", ErrInvalid)
	}

	return nil
}
