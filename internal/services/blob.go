package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// BlobStore stores shared images in S3. Uploads return a URL that is handed
// to the partner's widget; Download resolves such a URL back to bytes.
type BlobStore struct {
	client *s3.Client
	bucket string
	region string
}

// NewBlobStore creates an S3-backed blob store. An empty endpoint uses AWS
// proper; a non-empty one targets an S3-compatible service.
func NewBlobStore(ctx context.Context, region, bucket, accessKey, secretKey, endpoint string) (*BlobStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if accessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &BlobStore{
		client: client,
		bucket: bucket,
		region: region,
	}, nil
}

// Upload writes data under key and returns the public URL for it.
func (b *BlobStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload blob: %w", err)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", b.bucket, b.region, key), nil
}

// Download fetches the bytes behind a URL previously returned by Upload.
func (b *BlobStore) Download(ctx context.Context, rawURL string) ([]byte, error) {
	key, err := b.keyFromURL(rawURL)
	if err != nil {
		return nil, err
	}

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download blob: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob body: %w", err)
	}
	return data, nil
}

// keyFromURL extracts the object key from a blob URL.
func (b *BlobStore) keyFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid blob URL %q: %w", rawURL, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	// path-style URLs carry the bucket as the first segment
	key = strings.TrimPrefix(key, b.bucket+"/")
	if key == "" {
		return "", fmt.Errorf("blob URL %q has no key", rawURL)
	}
	return key, nil
}
