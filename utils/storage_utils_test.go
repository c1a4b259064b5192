package utils

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	s3iface.S3API
	put     *s3.PutObjectInput
	body    []byte
	deleted []string
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	f.put = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjectWithContext(_ aws.Context, in *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	f.deleted = append(f.deleted, aws.StringValue(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestUploadImage(t *testing.T) {
	fake := &fakeS3{}
	u := NewUploaderWithClient(fake, "media", "https://cdn.example.gr/")

	key, url, err := u.UploadImage(context.Background(), pngHeader, "services/7")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "services/7/"))
	assert.True(t, strings.HasSuffix(key, ".png"))
	assert.Equal(t, "https://cdn.example.gr/"+key, url)
	assert.Equal(t, "image/png", aws.StringValue(fake.put.ContentType))
	assert.Equal(t, "media", aws.StringValue(fake.put.Bucket))
	assert.Equal(t, pngHeader, fake.body)

	require.NoError(t, u.Delete(context.Background(), key))
	require.NoError(t, u.Delete(context.Background(), ""))
	assert.Equal(t, []string{key}, fake.deleted)
}

func TestDetectImage(t *testing.T) {
	_, err := DetectImage([]byte("%PDF-1.4 not an image"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, MaxImageSize)...)
	_, err = DetectImage(big)
	assert.ErrorIs(t, err, ErrImageTooLarge)

	ct, err := DetectImage([]byte("\xff\xd8\xff\xe0\x00\x10JFIF"))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", ct)
}
