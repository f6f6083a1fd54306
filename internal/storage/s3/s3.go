package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"

	"github.com/PratikKhaire/100x-n8n/internal/config"
	"github.com/PratikKhaire/100x-n8n/pkg/errors"
	"github.com/PratikKhaire/100x-n8n/pkg/logger"
)

// Client represents an S3 client scoped to one bucket and key prefix
type Client struct {
	bucket   string
	prefix   string
	api      s3iface.S3API
	uploader s3manageriface.UploaderAPI
	logger   logger.Logger
}

// New creates a new S3 client
func New(cfg *config.S3Config, log logger.Logger) (*Client, error) {
	if cfg == nil || cfg.Bucket == "" {
		return nil, errors.NewValidationError("S3 bucket name is required")
	}

	awsConfig := &aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(cfg.PathStyle),
		DisableSSL:       aws.Bool(!cfg.UseSSL),
		MaxRetries:       aws.Int(3),
	}
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfiguration, errors.CodeStorage, "failed to create AWS session")
	}

	s3Client := s3.New(sess)
	client := newClient(cfg.Bucket, cfg.Prefix, s3Client, s3manager.NewUploaderWithClient(s3Client), log)

	client.logger.Info("S3 client created",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"endpoint", cfg.Endpoint,
	)
	return client, nil
}

func newClient(bucket, prefix string, api s3iface.S3API, uploader s3manageriface.UploaderAPI, log logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{bucket: bucket, prefix: prefix, api: api, uploader: uploader, logger: log}
}

// Upload stores data under key
func (c *Client) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	key = c.buildKey(key)

	_, err := c.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		c.logger.Error("Failed to upload object to S3", "error", err, "key", key)
		return c.handleS3Error(err)
	}

	c.logger.Debug("Object uploaded", "key", key, "size", len(data))
	return nil
}

// Get reads the object stored under key
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	key = c.buildKey(key)

	out, err := c.api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, c.handleS3Error(err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeExternal, errors.CodeStorage, "failed to read S3 object")
	}
	return data, nil
}

// Exists checks if an object exists
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.api.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.buildKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, c.handleS3Error(err)
	}
	return true, nil
}

// Health checks that the bucket is reachable
func (c *Client) Health(ctx context.Context) error {
	_, err := c.api.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err != nil {
		return c.handleS3Error(err)
	}
	return nil
}

// buildKey adds the configured prefix to a key
func (c *Client) buildKey(key string) string {
	if c.prefix == "" {
		return key
	}
	return path.Join(c.prefix, key)
}

func isNotFound(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}

// handleS3Error converts S3 errors to application errors
func (c *Client) handleS3Error(err error) error {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchBucket:
			return errors.NotFoundError("S3 bucket").WithCause(err)
		case s3.ErrCodeNoSuchKey, "NotFound":
			return errors.NotFoundError("S3 object").WithCause(err)
		case "RequestTimeout":
			return errors.Wrap(err, errors.ErrorTypeTimeout, errors.CodeStorage, "S3 request timeout")
		default:
			return errors.Wrap(err, errors.ErrorTypeExternal, errors.CodeStorage,
				fmt.Sprintf("S3 error: %s", aerr.Code()))
		}
	}
	return errors.Wrap(err, errors.ErrorTypeExternal, errors.CodeStorage, "S3 operation failed")
}
