package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	MaxVideoSize = 100 << 20 // 100MB
	MaxImageSize = 5 << 20

	SignedURLTTL = time.Hour
)

var (
	ErrFileTooLarge    = errors.New("file too large")
	ErrEmptyFile       = errors.New("file is empty")
	ErrInvalidFileType = errors.New("invalid file type")
)

var allowedVideoTypes = map[string]bool{
	"video/mp4":        true,
	"video/quicktime":  true,
	"video/x-msvideo":  true,
	"video/webm":       true,
	"video/x-matroska": true,
}

var allowedVideoExts = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".webm": true, ".mkv": true,
}

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

type Client struct {
	s3      *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// New builds an S3 client from the environment. S3_ENDPOINT, when set,
// points at a minio instance in development.
func New(ctx context.Context) (*Client, error) {
	bucket := os.Getenv("S3_BUCKET")
	region := os.Getenv("S3_REGION")
	if region == "" {
		region = "us-east-1"
	}
	access := os.Getenv("S3_ACCESS_KEY")
	secret := os.Getenv("S3_SECRET_KEY")
	endpoint := os.Getenv("S3_ENDPOINT")

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(access, secret, "")),
	}
	if endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{URL: fmt.Sprintf("http://%s", endpoint), HostnameImmutable: true}, nil
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	c := s3.NewFromConfig(cfg, func(o *s3.Options) { o.UsePathStyle = endpoint != "" })
	return &Client{s3: c, presign: s3.NewPresignClient(c), bucket: bucket}, nil
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9\-_ .]`)
var collapse = regexp.MustCompile(`[_\s]+`)

// SanitizeFilename strips non-ASCII characters so the name is safe for S3
// object metadata, preserving the extension.
func SanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	name := strings.TrimSuffix(filename, ext)
	name = unsafeChars.ReplaceAllString(name, "_")
	name = collapse.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_ ")
	return name + ext
}

// ValidateVideo checks extension, content type and size before upload.
func ValidateVideo(filename, contentType string, size int64) error {
	if size == 0 {
		return ErrEmptyFile
	}
	if size > MaxVideoSize {
		return fmt.Errorf("%w: %d bytes, max %d", ErrFileTooLarge, size, MaxVideoSize)
	}
	if !allowedVideoExts[strings.ToLower(filepath.Ext(filename))] {
		return fmt.Errorf("%w: extension %q", ErrInvalidFileType, filepath.Ext(filename))
	}
	if !allowedVideoTypes[contentType] {
		return fmt.Errorf("%w: content type %q", ErrInvalidFileType, contentType)
	}
	return nil
}

func ValidateImage(contentType string, size int64) error {
	if size == 0 {
		return ErrEmptyFile
	}
	if size > MaxImageSize {
		return fmt.Errorf("%w: %d bytes, max %d", ErrFileTooLarge, size, MaxImageSize)
	}
	if !allowedImageTypes[contentType] {
		return fmt.Errorf("%w: content type %q", ErrInvalidFileType, contentType)
	}
	return nil
}

// VideoKey returns the canonical object key for a submission video.
func VideoKey(userID, submissionID int64, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".mp4"
	}
	return fmt.Sprintf("submissions/%d/%d/video%s", userID, submissionID, ext)
}

func AvatarKey(userID int64, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("avatars/%d/avatar%s", userID, ext)
}

func CompetitionImageKey(competitionID int64, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("competitions/%d/image%s", competitionID, ext)
}

// Put uploads an object under the given key.
func (c *Client) Put(ctx context.Context, key, contentType string, body io.Reader, metadata map[string]string) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	_, err = c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &c.bucket,
		Key:         &key,
		Body:        bytes.NewReader(b),
		ContentType: aws.String(contentType),
		Metadata:    metadata,
	})
	return err
}

// Delete removes an object; a missing key is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &c.bucket,
		Key:    &key,
	})
	return err
}

// SignedGetURL returns a time-limited download URL for the key.
func (c *Client) SignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = SignedURLTTL
	}
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &c.bucket,
		Key:    &key,
	}, func(o *s3.PresignOptions) { o.Expires = ttl })
	if err != nil {
		return "", time.Time{}, err
	}
	return req.URL, time.Now().UTC().Add(ttl), nil
}
