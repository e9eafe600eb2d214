package s3

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // ETag emulation, not security
	"encoding/hex"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// -----------------------------------------------------------------------------
// Mock S3 Client for Testing
// -----------------------------------------------------------------------------

// mockObject is one stored object.
type mockObject struct {
	data         []byte
	contentType  string
	lastModified time.Time
}

// multipartUpload tracks an in-progress multipart upload.
type multipartUpload struct {
	bucket string
	key    string
	parts  map[int32][]byte
}

// MockS3Client is an in-memory test double for API. Objects are addressed
// by bucket and key; listing is lexicographic and paginated like S3.
type MockS3Client struct {
	mu       sync.RWMutex
	objects  map[string]map[string]*mockObject // bucket -> key -> object
	uploads  map[string]*multipartUpload       // uploadID -> upload
	uploadID int
	notFound map[string]int // locator -> remaining HeadObject misses

	// Regions maps bucket names to their GetBucketLocation constraint.
	// Missing buckets report an empty constraint.
	Regions map[string]string

	// DeleteKeyErrors maps keys to an error code DeleteObjects reports for
	// them instead of deleting.
	DeleteKeyErrors map[string]string

	// Err, when set for an operation name (e.g. "DeleteObjects"), is
	// returned by every call of that operation.
	Err map[string]error

	// Call counters for test assertions
	PutObjectCalls         int
	GetObjectCalls         int
	HeadObjectCalls        int
	ListObjectsV2Calls     int
	DeleteObjectsCalls     int
	GetBucketLocationCalls int
	MultipartUploadCalls   int

	// DeleteBatches records the key count of every DeleteObjects call.
	DeleteBatches []int
}

// NewMockS3Client creates a new mock S3 client for testing.
func NewMockS3Client() *MockS3Client {
	return &MockS3Client{
		objects:         make(map[string]map[string]*mockObject),
		uploads:         make(map[string]*multipartUpload),
		notFound:        make(map[string]int),
		Regions:         make(map[string]string),
		DeleteKeyErrors: make(map[string]string),
		Err:             make(map[string]error),
	}
}

// ResetCounts resets call counters for test isolation.
func (m *MockS3Client) ResetCounts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutObjectCalls = 0
	m.GetObjectCalls = 0
	m.HeadObjectCalls = 0
	m.ListObjectsV2Calls = 0
	m.DeleteObjectsCalls = 0
	m.GetBucketLocationCalls = 0
	m.MultipartUploadCalls = 0
	m.DeleteBatches = nil
}

// TotalCalls returns the number of requests made since the last reset.
func (m *MockS3Client) TotalCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PutObjectCalls + m.GetObjectCalls + m.HeadObjectCalls + m.ListObjectsV2Calls +
		m.DeleteObjectsCalls + m.GetBucketLocationCalls + m.MultipartUploadCalls
}

// Seed stores data at an "s3://bucket/key" locator.
func (m *MockS3Client) Seed(loc string, data []byte) {
	bucket, key, err := ParseLocator(loc)
	if err != nil {
		panic(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(bucket, key, data, "")
}

// Object returns the data stored at loc.
func (m *MockS3Client) Object(loc string) ([]byte, bool) {
	bucket, key, err := ParseLocator(loc)
	if err != nil {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[bucket][key]
	if !ok {
		return nil, false
	}
	return obj.data, true
}

// Locators returns every stored locator, sorted.
func (m *MockS3Client) Locators() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var locs []string
	for bucket, keys := range m.objects {
		for key := range keys {
			locs = append(locs, locator(bucket, key))
		}
	}
	slices.Sort(locs)
	return locs
}

// NotFoundFor makes the next n HeadObject calls for loc report not found,
// even if the object exists.
func (m *MockS3Client) NotFoundFor(loc string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notFound[loc] = n
}

// store must be called with mu held.
func (m *MockS3Client) store(bucket, key string, data []byte, contentType string) {
	if m.objects[bucket] == nil {
		m.objects[bucket] = make(map[string]*mockObject)
	}
	if contentType == "" {
		contentType = "binary/octet-stream"
	}
	m.objects[bucket][key] = &mockObject{
		data:         data,
		contentType:  contentType,
		lastModified: time.Now().UTC().Truncate(time.Second),
	}
}

// PutObject implements API.PutObject for testing.
func (m *MockS3Client) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.PutObjectCalls++
	if err := m.Err["PutObject"]; err != nil {
		return nil, err
	}
	m.store(aws.ToString(params.Bucket), aws.ToString(params.Key), data, aws.ToString(params.ContentType))
	return &s3.PutObjectOutput{ETag: aws.String(etag(data))}, nil
}

// GetObject implements API.GetObject for testing.
func (m *MockS3Client) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	m.GetObjectCalls++
	injected := m.Err["GetObject"]
	obj, exists := m.objects[aws.ToString(params.Bucket)][aws.ToString(params.Key)]
	m.mu.Unlock()

	if injected != nil {
		return nil, injected
	}
	if !exists {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.data)),
		ContentLength: aws.Int64(int64(len(obj.data))),
	}, nil
}

// HeadObject implements API.HeadObject for testing.
func (m *MockS3Client) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	bucket, key := aws.ToString(params.Bucket), aws.ToString(params.Key)
	loc := locator(bucket, key)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.HeadObjectCalls++
	if err := m.Err["HeadObject"]; err != nil {
		return nil, err
	}
	if m.notFound[loc] > 0 {
		m.notFound[loc]--
		return nil, &types.NotFound{}
	}
	obj, exists := m.objects[bucket][key]
	if !exists {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.data))),
		ContentType:   aws.String(obj.contentType),
		ETag:          aws.String(etag(obj.data)),
		LastModified:  aws.Time(obj.lastModified),
		StorageClass:  types.StorageClassStandard,
	}, nil
}

// ListObjectsV2 implements API.ListObjectsV2 for testing. Keys are returned
// in lexicographic order, MaxKeys at a time.
func (m *MockS3Client) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	bucket, prefix := aws.ToString(params.Bucket), aws.ToString(params.Prefix)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.ListObjectsV2Calls++
	if err := m.Err["ListObjectsV2"]; err != nil {
		return nil, err
	}

	var keys []string
	for key := range m.objects[bucket] {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)

	start := 0
	if tok := aws.ToString(params.ContinuationToken); tok != "" {
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, &smithyAPIError{code: "InvalidArgument", message: "bad continuation token"}
		}
		start = n
	}
	limit := int(aws.ToInt32(params.MaxKeys))
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	end := min(start+limit, len(keys))

	out := &s3.ListObjectsV2Output{
		IsTruncated: aws.Bool(end < len(keys)),
		KeyCount:    aws.Int32(int32(end - start)),
	}
	for _, key := range keys[start:end] {
		obj := m.objects[bucket][key]
		out.Contents = append(out.Contents, types.Object{
			Key:  aws.String(key),
			Size: aws.Int64(int64(len(obj.data))),
		})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

// DeleteObjects implements API.DeleteObjects for testing.
func (m *MockS3Client) DeleteObjects(_ context.Context, params *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	bucket := aws.ToString(params.Bucket)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteObjectsCalls++
	m.DeleteBatches = append(m.DeleteBatches, len(params.Delete.Objects))
	if err := m.Err["DeleteObjects"]; err != nil {
		return nil, err
	}
	if len(params.Delete.Objects) > 1000 {
		return nil, &smithyAPIError{code: "MalformedXML", message: "more than 1000 keys"}
	}

	out := &s3.DeleteObjectsOutput{}
	for _, id := range params.Delete.Objects {
		key := aws.ToString(id.Key)
		if code, fail := m.DeleteKeyErrors[key]; fail {
			out.Errors = append(out.Errors, types.Error{
				Key:     aws.String(key),
				Code:    aws.String(code),
				Message: aws.String("simulated delete failure"),
			})
			continue
		}
		delete(m.objects[bucket], key)
		if !aws.ToBool(params.Delete.Quiet) {
			out.Deleted = append(out.Deleted, types.DeletedObject{Key: aws.String(key)})
		}
	}
	return out, nil
}

// GetBucketLocation implements API.GetBucketLocation for testing.
func (m *MockS3Client) GetBucketLocation(_ context.Context, params *s3.GetBucketLocationInput, _ ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetBucketLocationCalls++
	if err := m.Err["GetBucketLocation"]; err != nil {
		return nil, err
	}
	return &s3.GetBucketLocationOutput{
		LocationConstraint: types.BucketLocationConstraint(m.Regions[aws.ToString(params.Bucket)]),
	}, nil
}

// CreateMultipartUpload implements API.CreateMultipartUpload for testing.
func (m *MockS3Client) CreateMultipartUpload(_ context.Context, params *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.MultipartUploadCalls++
	m.uploadID++
	uploadID := fmt.Sprintf("upload-%d", m.uploadID)

	m.uploads[uploadID] = &multipartUpload{
		bucket: aws.ToString(params.Bucket),
		key:    aws.ToString(params.Key),
		parts:  make(map[int32][]byte),
	}

	return &s3.CreateMultipartUploadOutput{
		Bucket:   params.Bucket,
		Key:      params.Key,
		UploadId: aws.String(uploadID),
	}, nil
}

// UploadPart implements API.UploadPart for testing.
func (m *MockS3Client) UploadPart(_ context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	uploadID := aws.ToString(params.UploadId)
	partNum := aws.ToInt32(params.PartNumber)

	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.MultipartUploadCalls++
	if err := m.Err["UploadPart"]; err != nil {
		return nil, err
	}
	upload, exists := m.uploads[uploadID]
	if !exists {
		return nil, &smithyAPIError{code: "NoSuchUpload", message: "upload not found"}
	}
	upload.parts[partNum] = data

	return &s3.UploadPartOutput{ETag: aws.String(etag(data))}, nil
}

// CompleteMultipartUpload implements API.CompleteMultipartUpload for testing.
func (m *MockS3Client) CompleteMultipartUpload(_ context.Context, params *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	uploadID := aws.ToString(params.UploadId)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.MultipartUploadCalls++
	upload, exists := m.uploads[uploadID]
	if !exists {
		return nil, &smithyAPIError{code: "NoSuchUpload", message: "upload not found"}
	}

	// Assemble parts in order
	var assembled []byte
	for i := int32(1); i <= int32(len(upload.parts)); i++ {
		assembled = append(assembled, upload.parts[i]...)
	}

	m.store(upload.bucket, upload.key, assembled, "")
	delete(m.uploads, uploadID)

	return &s3.CompleteMultipartUploadOutput{
		Bucket: params.Bucket,
		Key:    params.Key,
	}, nil
}

// AbortMultipartUpload implements API.AbortMultipartUpload for testing.
func (m *MockS3Client) AbortMultipartUpload(_ context.Context, params *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	m.mu.Lock()
	m.MultipartUploadCalls++
	delete(m.uploads, aws.ToString(params.UploadId))
	m.mu.Unlock()

	return &s3.AbortMultipartUploadOutput{}, nil
}

func etag(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec // ETag emulation
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// smithyAPIError implements smithy.APIError for testing.
type smithyAPIError struct {
	code    string
	message string
}

func (e *smithyAPIError) Error() string {
	return e.message
}

func (e *smithyAPIError) ErrorCode() string {
	return e.code
}

func (e *smithyAPIError) ErrorMessage() string {
	return e.message
}

func (e *smithyAPIError) ErrorFault() smithy.ErrorFault {
	return smithy.FaultUnknown
}
