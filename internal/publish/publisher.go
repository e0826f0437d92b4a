// Package publish uploads the gallery snapshot to S3-compatible storage.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"candy-gallery/internal/domain"
	"candy-gallery/internal/gallery"
	"candy-gallery/internal/observability"
)

// DefaultKey is the object key of the published document.
const DefaultKey = "gallery.json"

// PutObjectAPI is the part of the S3 client the publisher uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config configures the S3 client.
type Config struct {
	Bucket          string
	Key             string
	Endpoint        string // empty for AWS S3, the account endpoint for R2
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Document is the published JSON.
type Document struct {
	Snapshot domain.Snapshot `json:"snapshot"`
	View     gallery.View    `json:"view"`
}

// Publisher uploads snapshots.
type Publisher struct {
	client  PutObjectAPI
	bucket  string
	key     string
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewClient builds an S3 client. A custom endpoint uses path-style addressing, as R2 expects.
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewPublisher creates a Publisher writing to bucket/key.
func NewPublisher(client PutObjectAPI, bucket, key string, metrics *observability.Metrics, logger *zap.Logger) (*Publisher, error) {
	if bucket == "" {
		return nil, errors.New("publish bucket is required")
	}
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{client: client, bucket: bucket, key: key, metrics: metrics, logger: logger}, nil
}

// Publish uploads s and its rendered view.
func (p *Publisher) Publish(ctx context.Context, s domain.Snapshot) error {
	err := p.publish(ctx, s)
	if p.metrics != nil {
		p.metrics.RecordPublish(err)
	}
	return err
}

func (p *Publisher) publish(ctx context.Context, s domain.Snapshot) error {
	body, err := json.Marshal(Document{Snapshot: s, View: gallery.Render(s.Loading, s.Gallery)})
	if err != nil {
		return fmt.Errorf("marshal gallery: %w", err)
	}

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(p.bucket),
		Key:          aws.String(p.key),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String("application/json"),
		CacheControl: aws.String("no-cache"),
	})
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", p.bucket, p.key, err)
	}
	return nil
}

// Hook returns a snapshot hook that publishes every completed refresh.
// Upload failures are logged.
func (p *Publisher) Hook() gallery.SnapshotHook {
	return func(ctx context.Context, s domain.Snapshot) {
		if err := p.Publish(ctx, s); err != nil {
			p.logger.Warn("publish gallery", zap.Error(err))
			return
		}
		p.logger.Debug("gallery published", zap.String("bucket", p.bucket), zap.String("key", p.key))
	}
}
