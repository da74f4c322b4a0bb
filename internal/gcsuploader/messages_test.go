package gcsuploader

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockObjectOpener is a mock implementation of ObjectOpener for testing
type MockObjectOpener struct {
	OpenObjectFunc func(ctx context.Context, gcsURI string) (io.ReadCloser, error)
}

func (m *MockObjectOpener) OpenObject(ctx context.Context, gcsURI string) (io.ReadCloser, error) {
	return m.OpenObjectFunc(ctx, gcsURI)
}

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		object  string
		wantErr bool
	}{
		{uri: "gs://bank-sms/2024/march.txt", bucket: "bank-sms", object: "2024/march.txt"},
		{uri: "gs://bucket/file", bucket: "bucket", object: "file"},
		{uri: "gs://bucket", wantErr: true},
		{uri: "gs://bucket/", wantErr: true},
		{uri: "gs:///object", wantErr: true},
		{uri: "s3://bucket/object", wantErr: true},
		{uri: "/local/path.txt", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.object, object)
		})
	}
}

func TestExtractFilenameFromGCSURI(t *testing.T) {
	assert.Equal(t, "sms.txt", ExtractFilenameFromGCSURI("gs://bucket/folder/sms.txt"))
	assert.Equal(t, "sms.txt", ExtractFilenameFromGCSURI("gs://bucket/sms.txt"))
	assert.Equal(t, "bucket", ExtractFilenameFromGCSURI("gs://bucket"))
}

func TestReadMessages(t *testing.T) {
	input := "Rs.450 debited at SWIGGY\n\n   \r\n  INR 1,000 credited by ACME  \r\nlast line without newline"

	messages, err := ReadMessages(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Rs.450 debited at SWIGGY",
		"INR 1,000 credited by ACME",
		"last line without newline",
	}, messages)
}

func TestReadMessages_LineTooLong(t *testing.T) {
	_, err := ReadMessages(strings.NewReader(strings.Repeat("x", maxLineBytes+1)))
	assert.Error(t, err)
}

func TestLoadMessages_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.txt")
	require.NoError(t, os.WriteFile(path, []byte("first message\nsecond message\n"), 0o600))

	messages, err := LoadMessages(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"first message", "second message"}, messages)

	_, err = LoadMessages(context.Background(), filepath.Join(t.TempDir(), "missing.txt"), nil)
	assert.Error(t, err)
}

func TestLoadMessages_GCS(t *testing.T) {
	var gotURI string
	opener := &MockObjectOpener{
		OpenObjectFunc: func(ctx context.Context, gcsURI string) (io.ReadCloser, error) {
			gotURI = gcsURI
			return io.NopCloser(strings.NewReader("from the bucket\n")), nil
		},
	}

	messages, err := LoadMessages(context.Background(), "gs://bank-sms/today.txt", opener)
	require.NoError(t, err)
	assert.Equal(t, "gs://bank-sms/today.txt", gotURI)
	assert.Equal(t, []string{"from the bucket"}, messages)

	_, err = LoadMessages(context.Background(), "gs://bank-sms/today.txt", nil)
	assert.Error(t, err)

	failing := &MockObjectOpener{
		OpenObjectFunc: func(ctx context.Context, gcsURI string) (io.ReadCloser, error) {
			return nil, errors.New("permission denied")
		},
	}
	_, err = LoadMessages(context.Background(), "gs://bank-sms/today.txt", failing)
	assert.ErrorContains(t, err, "permission denied")
}
