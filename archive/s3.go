// Package archive writes completed analysis records to S3 for offline
// review. Archival is best-effort: a failed upload is logged and never
// fails the originating request.
package archive

import (
	"bytes"
	"context"
	"log"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store wraps the AWS SDK v2 S3 client with the narrow surface the
// pipeline needs.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewFromEnv returns a Store if S3_BUCKET is set, nil otherwise.
// Optional: S3_REGION, S3_PROFILE, S3_PREFIX, S3_USE_PATH_STYLE=true.
func NewFromEnv(ctx context.Context) *Store {
	bucket := strings.TrimSpace(os.Getenv("S3_BUCKET"))
	if bucket == "" {
		return nil
	}

	var loadOpts []func(*config.LoadOptions) error
	if region := strings.TrimSpace(os.Getenv("S3_REGION")); region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}
	if profile := strings.TrimSpace(os.Getenv("S3_PROFILE")); profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		log.Printf("Warning: failed to init S3 client: %v (archival disabled)", err)
		return nil
	}

	pathStyle := strings.EqualFold(strings.TrimSpace(os.Getenv("S3_USE_PATH_STYLE")), "true")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = pathStyle
	})

	prefix := strings.Trim(strings.TrimSpace(os.Getenv("S3_PREFIX")), "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Store{client: client, bucket: bucket, prefix: prefix}
}

// SaveAnalysis uploads one analysis record as JSON under analyses/<id>.json.
func (s *Store) SaveAnalysis(ctx context.Context, id string, record []byte) error {
	key := s.prefix + "analyses/" + id + ".json"
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(record),
		ContentType: aws.String("application/json"),
	})
	return err
}
