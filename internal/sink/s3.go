package sink

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"zarrstream/internal/zarr"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3 writes objects into a bucket on an S3-compatible endpoint. Keys
// are prefixed with the store path so multiple stores can share a
// bucket. Uploads are whole-object puts.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3 builds an S3 sink from connection settings. Credentials are
// static (access key id + secret); the endpoint is addressed
// path-style, which S3-compatible stores such as MinIO require.
func NewS3(ctx context.Context, settings zarr.S3Settings, prefix string) (*S3, error) {
	region := settings.Region
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(settings.AccessKeyID, settings.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(settings.Endpoint)
		o.UsePathStyle = true
	})

	return &S3{client: client, bucket: settings.Bucket, prefix: prefix}, nil
}

func (s *S3) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path.Join(s.prefix, key)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (s *S3) Close() error { return nil }

var _ Sink = (*S3)(nil)
