// Package storage holds the S3 client used for snapshot archival.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/signalnest/magpie/internal/util"
)

// Configured reports whether a snapshot bucket is set. Snapshot uploads
// are skipped, not failed, when it is not.
func Configured() bool {
	return util.GetEnv("S3_BUCKET") != ""
}

// NewClient builds an S3 client from the environment. A custom endpoint
// (MinIO and friends) switches to path-style addressing.
func NewClient(ctx context.Context) (*s3.Client, error) {
	region := util.GetEnvString("S3_REGION", "us-east-1")
	endpoint := util.GetEnv("S3_ENDPOINT")
	accessKey := util.GetEnv("S3_ACCESS_KEY")
	secretKey := util.GetEnv("S3_SECRET_KEY")

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(endpoint))
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.UsePathStyle = true
		}
	})
	return client, nil
}

// UploadSnapshot puts a JSONL snapshot under key in the configured
// bucket and returns its s3:// location.
func UploadSnapshot(ctx context.Context, client *s3.Client, key string, body io.Reader) (string, error) {
	bucket := util.GetEnv("S3_BUCKET")
	if bucket == "" {
		return "", fmt.Errorf("S3_BUCKET is not set")
	}

	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", bucket, key), nil
}
