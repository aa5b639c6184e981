package publish

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	inputs []*s3.PutObjectInput
	bodies []string
	err    error
}

func (f *fakeUploader) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, input)
	f.bodies = append(f.bodies, string(body))
	return &manager.UploadOutput{Key: input.Key}, nil
}

type fakeLister struct {
	pages []*s3.ListObjectsV2Output
	calls []*s3.ListObjectsV2Input
}

func (f *fakeLister) ListObjectsV2(_ context.Context, input *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	copied := *input
	f.calls = append(f.calls, &copied)
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func TestNewS3Publisher_DisabledWithoutBucket(t *testing.T) {
	p, err := NewS3Publisher(context.Background(), Config{}, testLogger())
	require.NoError(t, err)
	assert.False(t, p.Enabled())

	assert.ErrorIs(t, p.Upload(context.Background(), "x.csv", strings.NewReader("a")), ErrDisabled)
	assert.ErrorIs(t, p.UploadFile(context.Background(), "x.csv"), ErrDisabled)
	_, err = p.List(context.Background(), "")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestKey(t *testing.T) {
	tests := []struct {
		prefix   string
		name     string
		expected string
	}{
		{"", "out.csv", "out.csv"},
		{"navreturns", "out.csv", "navreturns/out.csv"},
		{"/navreturns/", "/out.csv", "navreturns/out.csv"},
		{"a/b", "daily/out.csv", "a/b/daily/out.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix+"|"+tt.name, func(t *testing.T) {
			p := newPublisher(nil, nil, "bucket", tt.prefix, testLogger())
			assert.Equal(t, tt.expected, p.Key(tt.name))
		})
	}
}

func TestUploadFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "precomputed_clean.csv")
	require.NoError(t, os.WriteFile(file, []byte("scheme_code\n120503\n"), 0644))

	up := &fakeUploader{}
	p := newPublisher(up, nil, "funds", "exports", testLogger())

	require.NoError(t, p.UploadFile(context.Background(), file))
	require.Len(t, up.inputs, 1)
	assert.Equal(t, "funds", aws.ToString(up.inputs[0].Bucket))
	assert.Equal(t, "exports/precomputed_clean.csv", aws.ToString(up.inputs[0].Key))
	assert.Equal(t, "text/csv", aws.ToString(up.inputs[0].ContentType))
	assert.Equal(t, "scheme_code\n120503\n", up.bodies[0])
}

func TestUpload_MissingFileAndError(t *testing.T) {
	p := newPublisher(&fakeUploader{err: errors.New("denied")}, nil, "funds", "", testLogger())

	err := p.Upload(context.Background(), "results.json", strings.NewReader("[]"))
	assert.ErrorContains(t, err, "denied")

	err = p.UploadFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorContains(t, err, "failed to open")
}

func TestList_FollowsContinuation(t *testing.T) {
	modified := time.Date(2024, 5, 3, 2, 31, 0, 0, time.UTC)
	lister := &fakeLister{pages: []*s3.ListObjectsV2Output{
		{
			Contents:              []types.Object{{Key: aws.String("exports/a.csv"), Size: aws.Int64(10), LastModified: &modified}},
			IsTruncated:           aws.Bool(true),
			NextContinuationToken: aws.String("next"),
		},
		{
			Contents:    []types.Object{{Key: aws.String("exports/b.csv"), Size: aws.Int64(20)}},
			IsTruncated: aws.Bool(false),
		},
	}}
	p := newPublisher(nil, lister, "funds", "exports", testLogger())

	objects, err := p.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "exports/a.csv", objects[0].Key)
	assert.Equal(t, int64(10), objects[0].Size)
	assert.Equal(t, modified, objects[0].LastModified)
	assert.Equal(t, "exports/b.csv", objects[1].Key)

	require.Len(t, lister.calls, 2)
	assert.Equal(t, "exports", aws.ToString(lister.calls[0].Prefix))
	assert.Nil(t, lister.calls[0].ContinuationToken)
	assert.Equal(t, "next", aws.ToString(lister.calls[1].ContinuationToken))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/csv", contentType("a/B.CSV"))
	assert.Equal(t, "application/json", contentType("x.json"))
	assert.Equal(t, "application/octet-stream", contentType("x"))
}
