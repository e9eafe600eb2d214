// Package s3 moves frames between Amazon S3 (or an S3-compatible store) and
// memory, and exposes the object inventory operations the dataset writer
// is built on.
//
// All operations hang off a Client, which wraps an explicitly constructed
// SDK client. There is no package-level session.
//
// # Consistency
//
// Every operation is a sequence of independent requests. Deletes are not
// transactional and a failed dataset write may leave a prefix partially
// cleared. AWS S3 provides strong read-after-write consistency; other
// S3-compatible stores may not, which is what Describe's wait budget is for.
package s3

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// listPageSize is the page size requested from ListObjectsV2.
const listPageSize = 1000

// deleteBatchSize is the DeleteObjects per-request key limit.
const deleteBatchSize = 1000

// API defines the subset of the S3 client interface used by the Client.
// This enables testing with mock implementations.
//
// The multipart methods are required by the upload manager.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	GetBucketLocation(ctx context.Context, params *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger for debug events. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithRetryInterval sets the delay between Describe not-found retries.
// Defaults to one second.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) {
		c.retryInterval = d
	}
}

// WithPartSize sets the multipart upload part size. Defaults to the upload
// manager's default of 5MB.
func WithPartSize(n int64) Option {
	return func(c *Client) {
		c.partSize = n
	}
}

// Client runs object store operations against one S3 API client. It is safe
// for concurrent use; batch workers share it.
type Client struct {
	api           API
	uploader      *manager.Uploader
	logger        *slog.Logger
	retryInterval time.Duration
	partSize      int64
	newFileName   func() string // random object base name, without extension
}

// New creates a Client over an already configured S3 API client.
//
// Example:
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	client, err := wrangles3.New(s3.NewFromConfig(cfg))
func New(api API, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("s3: client is required")
	}
	c := &Client{
		api:           api,
		logger:        slog.Default(),
		retryInterval: time.Second,
		partSize:      manager.DefaultUploadPartSize,
		newFileName:   newHexName,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.uploader = manager.NewUploader(api, func(u *manager.Uploader) {
		u.PartSize = c.partSize
	})
	return c, nil
}

// isNotFound checks if an error indicates the object was not found.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey" || code == "404"
	}
	return false
}
