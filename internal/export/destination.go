package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Destination receives a finished export artifact.
type Destination interface {
	Write(ctx context.Context, data []byte) error
	String() string
}

// S3Options configures s3:// destinations. Endpoint enables path-style addressing.
type S3Options struct {
	Region   string
	Endpoint string
}

// Open picks a destination for dest: s3://bucket/key goes to S3, anything else is a file path.
func Open(ctx context.Context, dest string, opts S3Options) (Destination, error) {
	if strings.HasPrefix(dest, "s3://") {
		bucket, key, err := ParseS3URL(dest)
		if err != nil {
			return nil, err
		}
		return NewS3Destination(ctx, bucket, key, opts.Region, opts.Endpoint)
	}
	if strings.TrimSpace(dest) == "" {
		return nil, fmt.Errorf("export destination is empty")
	}
	return &FileDestination{Path: dest}, nil
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(u string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(u, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 url: %s", u)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 url needs bucket and key: %s", u)
	}
	return bucket, key, nil
}

// FileDestination writes the artifact atomically: a temp file in the target
// directory is renamed over Path.
type FileDestination struct {
	Path string
}

func (d *FileDestination) Write(_ context.Context, data []byte) error {
	dir := filepath.Dir(d.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(d.Path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing export: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing export: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("setting export permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.Path); err != nil {
		return fmt.Errorf("renaming export into place: %w", err)
	}
	return nil
}

func (d *FileDestination) String() string { return d.Path }

// S3Destination writes the artifact to an S3-compatible bucket.
type S3Destination struct {
	client *s3.Client
	bucket string
	key    string
}

// NewS3Destination creates an S3 destination. If endpoint is non-empty,
// path-style addressing is enabled (for MinIO and similar).
func NewS3Destination(ctx context.Context, bucket, key, region, endpoint string) (*S3Destination, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}
	return &S3Destination{client: s3.NewFromConfig(cfg, s3opts...), bucket: bucket, key: key}, nil
}

func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(d.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(d.key)),
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

func (d *S3Destination) String() string { return "s3://" + d.bucket + "/" + d.key }

func contentType(key string) string {
	if strings.HasSuffix(key, ".dot") || strings.HasSuffix(key, ".gv") {
		return "text/vnd.graphviz"
	}
	return "application/x-ndjson"
}
