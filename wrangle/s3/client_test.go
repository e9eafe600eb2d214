package s3

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justapithecus/wrangle/wrangle"
)

// newTestClient returns a Client over a fresh mock with deterministic file
// names ("f000", "f001", ...) and a 1ms Describe retry interval.
func newTestClient(t *testing.T) (*Client, *MockS3Client) {
	t.Helper()
	mock := NewMockS3Client()
	c, err := New(mock, WithRetryInterval(time.Millisecond))
	require.NoError(t, err)

	var n atomic.Int64
	c.newFileName = func() string {
		return fmt.Sprintf("f%03d", n.Add(1)-1)
	}
	return c, mock
}

func columnValues(f *wrangle.Frame, name string) []any {
	s, ok := f.Column(name)
	if !ok {
		return nil
	}
	return s.Values
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestNew_Options(t *testing.T) {
	c, err := New(NewMockS3Client(), WithRetryInterval(time.Minute), WithPartSize(8<<20))
	require.NoError(t, err)
	assert.Equal(t, time.Minute, c.retryInterval)
	assert.Equal(t, int64(8<<20), c.partSize)
	assert.Equal(t, int64(8<<20), c.uploader.PartSize)
	assert.Len(t, c.newFileName(), 32)
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"no such key", &types.NoSuchKey{}, true},
		{"not found", &types.NotFound{}, true},
		{"no such bucket", &types.NoSuchBucket{}, true},
		{"wrapped", fmt.Errorf("head: %w", &types.NotFound{}), true},
		{"api 404", &smithyAPIError{code: "404"}, true},
		{"access denied", &smithyAPIError{code: "AccessDenied"}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNotFound(tt.err))
		})
	}
}

func TestClient_Upload_Multipart(t *testing.T) {
	ctx := context.Background()
	c, mock := newTestClient(t)

	data := make([]byte, 6<<20)
	for i := range data {
		data[i] = byte(i % 251)
	}
	require.NoError(t, c.upload(ctx, "s3://bucket/big.bin", bytesBuffer(data)))

	got, ok := mock.Object("s3://bucket/big.bin")
	require.True(t, ok)
	assert.Equal(t, data, got)
	assert.Positive(t, mock.MultipartUploadCalls)
	assert.Zero(t, mock.PutObjectCalls)
}

func TestClient_Upload_Failure(t *testing.T) {
	ctx := context.Background()
	c, mock := newTestClient(t)
	mock.Err["PutObject"] = &smithyAPIError{code: "AccessDenied", message: "denied"}

	err := c.upload(ctx, "s3://bucket/small.bin", bytesBuffer([]byte("x")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://bucket/small.bin")
}
