package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const contentTypeCSV = "text/csv"

// Archiver keeps a durable copy of an export and returns where it went.
type Archiver interface {
	Archive(ctx context.Context, filename string, body []byte) (string, error)
}

type NoopArchiver struct{}

func (NoopArchiver) Archive(_ context.Context, _ string, _ []byte) (string, error) {
	return "", nil
}

type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
}

type S3Archiver struct {
	client *s3.Client
	bucket string
	now    func() time.Time
}

func NewS3Archiver(ctx context.Context, cfg S3Config) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "ap-southeast-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newS3Archiver(client, cfg.Bucket), nil
}

func newS3Archiver(client *s3.Client, bucket string) *S3Archiver {
	return &S3Archiver{
		client: client,
		bucket: bucket,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ObjectKey places an export under exports/YYYY/MM with a timestamp prefix so
// repeated exports never overwrite each other.
func ObjectKey(filename string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("exports/%s/%s-%s", at.Format("2006/01"), at.Format("20060102T150405Z"), filename)
}

func (a *S3Archiver) Archive(ctx context.Context, filename string, body []byte) (string, error) {
	key := ObjectKey(filename, a.now())
	contentType := contentTypeCSV
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &a.bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}
