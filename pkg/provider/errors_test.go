package provider

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ProviderError
		expected string
	}{
		{
			name:     "bucket and key",
			err:      &ProviderError{Op: "Head", Provider: ProviderS3, Bucket: "my-bucket", Key: "path/to/file.txt", Err: ErrNotFound},
			expected: "s3 Head: my-bucket/path/to/file.txt: object not found",
		},
		{
			name:     "bucket only",
			err:      &ProviderError{Op: "List", Provider: ProviderS3, Bucket: "my-bucket", Err: ErrAccessDenied},
			expected: "s3 List: my-bucket: access denied",
		},
		{
			name:     "key only",
			err:      &ProviderError{Op: "ListWithDelimiter", Provider: ProviderMemory, Key: "foo/", Err: ErrProviderUnavailable},
			expected: "memory ListWithDelimiter: foo/: provider unavailable",
		},
		{
			name:     "neither",
			err:      &ProviderError{Op: "New", Provider: ProviderS3, Err: errors.New("failed to load config")},
			expected: "s3 New: failed to load config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestProviderError_Unwrap(t *testing.T) {
	err := &ProviderError{Op: "Head", Provider: ProviderS3, Bucket: "b", Key: "k", Err: ErrNotFound}

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrAccessDenied))
	assert.Equal(t, ErrNotFound, err.Unwrap())
}

func TestPredicates(t *testing.T) {
	wrap := func(e error) error { return fmt.Errorf("outer: %w", &ProviderError{Err: e}) }

	assert.True(t, IsNotFound(wrap(ErrNotFound)))
	assert.True(t, IsAccessDenied(wrap(ErrAccessDenied)))
	assert.True(t, IsBucketNotFound(wrap(ErrBucketNotFound)))
	assert.True(t, IsInvalidCredentials(wrap(ErrInvalidCredentials)))
	assert.True(t, IsProviderUnavailable(wrap(ErrProviderUnavailable)))
	assert.True(t, IsThrottled(wrap(ErrThrottled)))

	assert.False(t, IsNotFound(wrap(ErrAccessDenied)))
	assert.False(t, IsThrottled(errors.New("some error")))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrNotFound, "NOT_FOUND"},
		{ErrBucketNotFound, "NOT_FOUND"},
		{ErrAccessDenied, "ACCESS_DENIED"},
		{ErrInvalidCredentials, "ACCESS_DENIED"},
		{ErrThrottled, "THROTTLED"},
		{ErrProviderUnavailable, "UNAVAILABLE"},
		{ErrInvalidKey, "INVALID_ARGUMENT"},
		{errors.New("boom"), "INTERNAL"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), "err=%v", tt.err)
	}
}

func TestProviderType_String(t *testing.T) {
	assert.Equal(t, "s3", ProviderS3.String())
	assert.Equal(t, "minio", ProviderMinIO.String())
	assert.Equal(t, "snapshot", ProviderSnapshot.String())
}
