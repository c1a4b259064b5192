package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"
)

const MaxImageSize = 5 << 20

var (
	ErrImageTooLarge   = errors.New("image exceeds size limit")
	ErrUnsupportedType = errors.New("unsupported image type")
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// PublicURL is the base that object keys are appended to. Defaults to
	// https://<bucket>.s3.<region>.amazonaws.com.
	PublicURL string
}

// Uploader stores media on an S3-compatible object store.
type Uploader struct {
	client    s3iface.S3API
	bucket    string
	publicURL string
}

func NewUploader(cfg S3Config) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "eu-central-1"
	}

	awsCfg := &aws.Config{
		Region:      aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("s3 session: %w", err)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	return NewUploaderWithClient(s3.New(sess), cfg.Bucket, publicURL), nil
}

func NewUploaderWithClient(client s3iface.S3API, bucket, publicURL string) *Uploader {
	return &Uploader{client: client, bucket: bucket, publicURL: strings.TrimRight(publicURL, "/")}
}

// DetectImage sniffs the content type and rejects anything that is not a
// jpeg, png or webp image, or is larger than MaxImageSize.
func DetectImage(data []byte) (string, error) {
	if len(data) > MaxImageSize {
		return "", ErrImageTooLarge
	}
	ct := http.DetectContentType(data)
	if _, ok := imageExtensions[ct]; !ok {
		return "", ErrUnsupportedType
	}
	return ct, nil
}

// UploadImage validates data and stores it under folder with a random name.
// It returns the object key and its public URL.
func (u *Uploader) UploadImage(ctx context.Context, data []byte, folder string) (string, string, error) {
	ct, err := DetectImage(data)
	if err != nil {
		return "", "", err
	}

	key := path.Join(folder, uuid.NewString()+imageExtensions[ct])
	_, err = u.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(ct),
		ACL:           aws.String("public-read"),
	})
	if err != nil {
		return "", "", fmt.Errorf("unable to upload file to S3: %w", err)
	}

	return key, u.URL(key), nil
}

// Delete removes an object. Missing objects are not an error.
func (u *Uploader) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := u.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	return err
}

func (u *Uploader) URL(key string) string {
	return u.publicURL + "/" + strings.TrimLeft(key, "/")
}
