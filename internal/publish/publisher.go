// Package publish uploads exported result files to S3-compatible object
// storage such as Cloudflare R2.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// ErrDisabled is returned by uploads when no bucket is configured
var ErrDisabled = errors.New("publishing is disabled")

// Config holds the object storage settings
type Config struct {
	Bucket          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	KeyPrefix       string
}

// Object describes one stored object
type Object struct {
	LastModified time.Time `json:"last_modified"`
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
}

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type lister interface {
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Publisher uploads files to a bucket. The zero-bucket publisher is
// disabled and rejects every upload with ErrDisabled.
type S3Publisher struct {
	uploader uploader
	lister   lister
	bucket   string
	prefix   string
	log      zerolog.Logger
}

// NewS3Publisher creates a publisher with static credentials and an optional
// custom endpoint. Path-style addressing is used, as R2 requires.
func NewS3Publisher(ctx context.Context, cfg Config, log zerolog.Logger) (*S3Publisher, error) {
	log = log.With().Str("component", "publisher").Logger()
	if cfg.Bucket == "" {
		log.Debug().Msg("No bucket configured, publishing disabled")
		return &S3Publisher{log: log}, nil
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	return newPublisher(manager.NewUploader(client), client, cfg.Bucket, cfg.KeyPrefix, log), nil
}

func newPublisher(u uploader, l lister, bucket, prefix string, log zerolog.Logger) *S3Publisher {
	return &S3Publisher{
		uploader: u,
		lister:   l,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		log:      log,
	}
}

// Enabled reports whether a bucket is configured
func (p *S3Publisher) Enabled() bool {
	return p != nil && p.bucket != ""
}

// Key returns the full object key for name, including the configured prefix
func (p *S3Publisher) Key(name string) string {
	name = strings.TrimLeft(name, "/")
	if p.prefix == "" {
		return name
	}
	return path.Join(p.prefix, name)
}

// Upload streams body to key (relative to the prefix)
func (p *S3Publisher) Upload(ctx context.Context, key string, body io.Reader) error {
	if !p.Enabled() {
		return ErrDisabled
	}

	fullKey := p.Key(key)
	_, err := p.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(fullKey),
		Body:        body,
		ContentType: aws.String(contentType(fullKey)),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", fullKey, err)
	}

	p.log.Info().Str("bucket", p.bucket).Str("key", fullKey).Msg("Uploaded object")
	return nil
}

// UploadFile uploads a local file under its base name
func (p *S3Publisher) UploadFile(ctx context.Context, filePath string) error {
	if !p.Enabled() {
		return ErrDisabled
	}

	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer f.Close()

	return p.Upload(ctx, filepath.Base(filePath), f)
}

// List returns the objects whose key (relative to the prefix) starts with prefix
func (p *S3Publisher) List(ctx context.Context, prefix string) ([]Object, error) {
	if !p.Enabled() {
		return nil, ErrDisabled
	}

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(p.Key(prefix)),
	}

	var objects []Object
	for {
		out, err := p.lister.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range out.Contents {
			objects = append(objects, Object{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	return objects, nil
}

func contentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
