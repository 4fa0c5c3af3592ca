package store

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Config carries the connection parameters shared by all backends.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// S3Store talks to an S3 (or S3-compatible) bucket via aws-sdk-go-v2.
//
// S3 listings cannot return user metadata, so objects coming out of List
// carry an empty Hash; Stat reads the fingerprint back from the object's
// metadata.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store builds an S3 backend with static credentials. A non-empty
// endpoint switches to path-style addressing for S3-compatible services.
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          200,
			MaxIdleConnsPerHost:   100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

func (s *S3Store) Stat(ctx context.Context, key string) (*Object, error) {
	resp, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}

	return &Object{
		Key:  key,
		Hash: resp.Metadata[FingerprintKey],
		Size: aws.ToInt64(resp.ContentLength),
	}, nil
}

func (s *S3Store) List(ctx context.Context, prefix, marker string, limit int32) (*Page, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  &s.bucket,
		MaxKeys: aws.Int32(limit),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	if marker != "" {
		input.ContinuationToken = aws.String(marker)
	}

	resp, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, err
	}

	page := &Page{Items: make([]Object, 0, len(resp.Contents))}
	for _, obj := range resp.Contents {
		page.Items = append(page.Items, Object{
			Key:  aws.ToString(obj.Key),
			Size: aws.ToInt64(obj.Size),
		})
	}
	if aws.ToBool(resp.IsTruncated) {
		page.Marker = aws.ToString(resp.NextContinuationToken)
	}

	return page, nil
}

func (s *S3Store) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType, fingerprint string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		Metadata:      map[string]string{FingerprintKey: fingerprint},
	})
	return err
}

var _ Store = (*S3Store)(nil)
