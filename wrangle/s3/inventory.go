package s3

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cenkalti/backoff/v4"

	"github.com/justapithecus/wrangle/internal/metrics"
	"github.com/justapithecus/wrangle/wrangle"
)

// -----------------------------------------------------------------------------
// Region and existence
// -----------------------------------------------------------------------------

// BucketRegion returns the region a bucket lives in.
func (c *Client) BucketRegion(ctx context.Context, bucket string) (string, error) {
	if bucket == "" {
		return "", fmt.Errorf("%w: bucket is required", wrangle.ErrInvalidArgument)
	}
	c.logger.DebugContext(ctx, "resolving bucket region", "bucket", bucket)

	start := time.Now()
	out, err := c.api.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: aws.String(bucket)})
	metrics.ObserveRequest("GetBucketLocation", start, err)
	if err != nil {
		return "", fmt.Errorf("s3: get bucket location: %w", err)
	}

	region := string(out.LocationConstraint)
	switch region {
	case "":
		// Buckets in us-east-1 report no constraint.
		region = "us-east-1"
	case string(types.BucketLocationConstraintEu):
		region = "eu-west-1"
	}
	c.logger.DebugContext(ctx, "resolved bucket region", "bucket", bucket, "region", region)
	return region, nil
}

// Exists reports whether the object at locator exists.
func (c *Client) Exists(ctx context.Context, loc string) (bool, error) {
	bucket, key, err := ParseLocator(loc)
	if err != nil {
		return false, err
	}
	if _, err := c.headObject(ctx, bucket, key); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("s3: head object: %w", err)
	}
	return true, nil
}

func (c *Client) headObject(ctx context.Context, bucket, key string) (*s3.HeadObjectOutput, error) {
	start := time.Now()
	out, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	metrics.ObserveRequest("HeadObject", start, err)
	return out, err
}

// -----------------------------------------------------------------------------
// Listing
// -----------------------------------------------------------------------------

// ListObjects returns the locators of every object under prefix, in the
// order the store returns them. Pagination is handled automatically.
func (c *Client) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	bucket, keyPrefix, err := parsePrefix(prefix)
	if err != nil {
		return nil, err
	}

	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(keyPrefix),
	}, func(o *s3.ListObjectsV2PaginatorOptions) {
		o.Limit = listPageSize
	})

	var locators []string
	for paginator.HasMorePages() {
		start := time.Now()
		page, err := paginator.NextPage(ctx)
		metrics.ObserveRequest("ListObjectsV2", start, err)
		if err != nil {
			return nil, fmt.Errorf("s3: list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				locators = append(locators, locator(bucket, *obj.Key))
			}
		}
	}
	if locators == nil {
		locators = []string{}
	}
	return locators, nil
}

// -----------------------------------------------------------------------------
// Deletion
// -----------------------------------------------------------------------------

// KeyError is one key the store refused to delete.
type KeyError struct {
	Key     string
	Code    string
	Message string
}

// DeleteError reports keys a DeleteObjects request accepted but did not
// delete. The remaining keys of that request were deleted.
type DeleteError struct {
	Bucket string
	Keys   []KeyError
}

func (e *DeleteError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "s3: delete objects: %d keys failed in bucket %s", len(e.Keys), e.Bucket)
	for i, k := range e.Keys {
		if i == 3 {
			fmt.Fprintf(&b, " (and %d more)", len(e.Keys)-i)
			break
		}
		fmt.Fprintf(&b, "; %s: %s %s", k.Key, k.Code, k.Message)
	}
	return b.String()
}

type deleteBatch struct {
	bucket string
	keys   []string
}

// Delete removes every object selected by src. Keys are sent in batches of
// up to 1000 per bucket, one DeleteObjects request per batch. Deletion is
// not transactional: on error some batches may already be gone.
func (c *Client) Delete(ctx context.Context, src Source, useConcurrency bool) error {
	locators, err := c.expand(ctx, src)
	if err != nil {
		return err
	}
	if len(locators) == 0 {
		return nil
	}
	groups, err := groupByBucket(locators)
	if err != nil {
		return err
	}

	var batches []deleteBatch
	for _, g := range groups {
		for _, keys := range chunk(g.keys, deleteBatchSize) {
			batches = append(batches, deleteBatch{bucket: g.bucket, keys: keys})
		}
	}
	return wrangle.ForEach(ctx, batches, useConcurrency, c.deleteBatch)
}

func (c *Client) deleteBatch(ctx context.Context, b deleteBatch) error {
	c.logger.DebugContext(ctx, "deleting objects", "bucket", b.bucket, "keys", len(b.keys))

	ids := make([]types.ObjectIdentifier, len(b.keys))
	for i, k := range b.keys {
		ids[i] = types.ObjectIdentifier{Key: aws.String(k)}
	}

	start := time.Now()
	out, err := c.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(b.bucket),
		Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
	})
	metrics.ObserveRequest("DeleteObjects", start, err)
	if err != nil {
		return fmt.Errorf("s3: delete objects: %w", err)
	}

	metrics.ObjectsDeletedTotal.Add(float64(len(b.keys) - len(out.Errors)))
	if len(out.Errors) == 0 {
		return nil
	}
	derr := &DeleteError{Bucket: b.bucket}
	for _, e := range out.Errors {
		derr.Keys = append(derr.Keys, KeyError{
			Key:     aws.ToString(e.Key),
			Code:    aws.ToString(e.Code),
			Message: aws.ToString(e.Message),
		})
	}
	return derr
}

// -----------------------------------------------------------------------------
// Description
// -----------------------------------------------------------------------------

// Attributes holds HeadObject response fields keyed by their S3 names, such
// as "ContentLength" (int64) and "LastModified" (time.Time). Absent fields
// are omitted. An empty Attributes means the object was not found.
type Attributes map[string]any

type described struct {
	locator string
	attrs   Attributes
}

// Describe fetches the attributes of every object selected by src.
//
// An object that is not found is retried once per second for as many tries
// as wait has whole seconds (at least one try), then reported with empty
// Attributes. Other errors fail the call immediately.
func (c *Client) Describe(ctx context.Context, src Source, wait time.Duration, useConcurrency bool) (map[string]Attributes, error) {
	locators, err := c.expand(ctx, src)
	if err != nil {
		return nil, err
	}
	tries := int(wait / time.Second)
	if tries < 1 {
		tries = 1
	}

	results, err := wrangle.Map(ctx, locators, useConcurrency, func(ctx context.Context, loc string) (described, error) {
		attrs, err := c.describeObject(ctx, loc, tries)
		return described{locator: loc, attrs: attrs}, err
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]Attributes, len(results))
	for _, r := range results {
		out[r.locator] = r.attrs
	}
	return out, nil
}

func (c *Client) describeObject(ctx context.Context, loc string, tries int) (Attributes, error) {
	bucket, key, err := ParseLocator(loc)
	if err != nil {
		return nil, err
	}

	var head *s3.HeadObjectOutput
	remaining := tries
	op := func() error {
		out, err := c.headObject(ctx, bucket, key)
		if err == nil {
			head = out
			return nil
		}
		if !isNotFound(err) {
			return backoff.Permanent(fmt.Errorf("s3: head object: %w", err))
		}
		remaining--
		c.logger.DebugContext(ctx, "object not found", "locator", loc, "tries_remaining", remaining)
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryInterval), uint64(tries-1)),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		if isNotFound(err) {
			return Attributes{}, nil
		}
		return nil, err
	}
	return headAttributes(head), nil
}

func headAttributes(h *s3.HeadObjectOutput) Attributes {
	attrs := Attributes{}
	if h.ContentLength != nil {
		attrs["ContentLength"] = *h.ContentLength
	}
	if h.LastModified != nil {
		attrs["LastModified"] = *h.LastModified
	}
	str := func(name string, v *string) {
		if v != nil {
			attrs[name] = *v
		}
	}
	str("ContentType", h.ContentType)
	str("ETag", h.ETag)
	str("VersionId", h.VersionId)
	str("CacheControl", h.CacheControl)
	str("ContentEncoding", h.ContentEncoding)
	if h.StorageClass != "" {
		attrs["StorageClass"] = string(h.StorageClass)
	}
	if h.ServerSideEncryption != "" {
		attrs["ServerSideEncryption"] = string(h.ServerSideEncryption)
	}
	if len(h.Metadata) > 0 {
		attrs["Metadata"] = h.Metadata
	}
	return attrs
}

// Size returns the ContentLength of every object selected by src, with the
// same wait semantics as Describe. Objects not found map to nil.
func (c *Client) Size(ctx context.Context, src Source, wait time.Duration, useConcurrency bool) (map[string]*int64, error) {
	descs, err := c.Describe(ctx, src, wait, useConcurrency)
	if err != nil {
		return nil, err
	}
	sizes := make(map[string]*int64, len(descs))
	for loc, attrs := range descs {
		if n, ok := attrs["ContentLength"].(int64); ok {
			sizes[loc] = &n
			continue
		}
		sizes[loc] = nil
	}
	return sizes, nil
}
