// Package s3 provides an S3-compatible backend for omnifile.
//
// Works with AWS S3 and S3-compatible stores (MinIO, Cloudflare R2, Wasabi).
// Reads stream the object body; writes are buffered and uploaded with a
// single PutObject when the writer is closed, so a stream that is never
// closed leaves no partial object behind.
//
//	backend, err := s3.New(s3.Config{
//	    Bucket: "sequencing-runs",
//	    Region: "us-east-1",
//	})
//	gw, err := stream.New(omnifile.DefaultConfig(), stream.WithBackend(backend))
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/grokify/omnifile"
)

func init() {
	omnifile.Register("s3", NewFromConfig)
}

// Errors specific to the S3 backend.
var (
	ErrBucketRequired      = errors.New("s3: bucket is required")
	ErrInvalidEndpoint     = errors.New("s3: endpoint must be an absolute URL")
	ErrInvalidStorageClass = errors.New("s3: unknown storage class")
)

// Backend implements omnifile.Backend for S3-compatible storage.
type Backend struct {
	client *s3.Client
	config Config
	closed bool
	mu     sync.RWMutex
}

// New creates a new S3 backend with the given configuration.
func New(cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var optFns []func(*config.LoadOptions) error

	if cfg.Region != "" {
		optFns = append(optFns, config.WithRegion(cfg.Region))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			cfg.SessionToken,
		)
		optFns = append(optFns, config.WithCredentialsProvider(creds))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), optFns...)
	if err != nil {
		return nil, fmt.Errorf("s3: loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Backend{
		client: client,
		config: cfg,
	}, nil
}

// NewFromConfig creates a new S3 backend from a config map.
// See ConfigFromMap for the supported keys.
func NewFromConfig(configMap map[string]string) (omnifile.Backend, error) {
	return New(ConfigFromMap(configMap))
}

// NewWriter returns a writer that uploads to p on Close.
func (b *Backend) NewWriter(ctx context.Context, p string, opts ...omnifile.WriterOption) (io.WriteCloser, error) {
	if err := b.check(ctx, p); err != nil {
		return nil, err
	}

	cfg := omnifile.ApplyWriterOptions(opts...)

	return &s3Writer{
		backend:     b,
		ctx:         ctx,
		key:         b.fullKey(p),
		contentType: cfg.ContentType,
		metadata:    b.config.objectMetadata(cfg.Metadata),
	}, nil
}

// NewReader streams the object at p.
func (b *Backend) NewReader(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := b.check(ctx, p); err != nil {
		return nil, err
	}

	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(b.fullKey(p)),
	})
	if err != nil {
		return nil, b.translateError(err, p)
	}

	return result.Body, nil
}

// Exists checks if a path exists.
func (b *Backend) Exists(ctx context.Context, p string) (bool, error) {
	if err := b.check(ctx, p); err != nil {
		return false, err
	}

	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(b.fullKey(p)),
	})
	if err != nil {
		err = b.translateError(err, p)
		if errors.Is(err, omnifile.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// Delete removes a path. S3 deletes are idempotent.
func (b *Backend) Delete(ctx context.Context, p string) error {
	if err := b.check(ctx, p); err != nil {
		return err
	}

	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(b.fullKey(p)),
	})
	if err != nil {
		err = b.translateError(err, p)
		if errors.Is(err, omnifile.ErrNotFound) {
			return nil
		}
		return err
	}

	return nil
}

// List lists keys under prefix, relative to the configured Prefix.
func (b *Backend) List(ctx context.Context, prefix string) ([]string, error) {
	if err := b.checkClosed(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	paths := []string{}
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.config.Bucket),
		Prefix: aws.String(b.fullKey(prefix)),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, b.translateError(err, prefix)
		}

		for _, obj := range page.Contents {
			if rel := b.relativeKey(aws.ToString(obj.Key)); rel != "" {
				paths = append(paths, rel)
			}
		}
	}

	return paths, nil
}

// Close releases any resources held by the backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	return nil
}

// fullKey returns the full S3 key for a path.
func (b *Backend) fullKey(p string) string {
	p = strings.TrimPrefix(p, "/")
	if b.config.Prefix == "" {
		return p
	}
	return path.Join(b.config.Prefix, p)
}

// relativeKey strips the configured Prefix from key.
func (b *Backend) relativeKey(key string) string {
	rel := strings.TrimPrefix(key, b.config.Prefix)
	return strings.TrimPrefix(rel, "/")
}

func (b *Backend) check(ctx context.Context, p string) error {
	if err := b.checkClosed(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimPrefix(p, "/") == "" {
		return omnifile.ErrInvalidPath
	}
	return nil
}

// checkClosed returns an error if the backend is closed.
func (b *Backend) checkClosed() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return omnifile.ErrBackendClosed
	}
	return nil
}

// translateError converts S3 errors to omnifile sentinels.
func (b *Backend) translateError(err error, p string) error {
	if err == nil {
		return nil
	}

	var nf *types.NotFound
	var nsk *types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return fmt.Errorf("%w: s3://%s/%s", omnifile.ErrNotFound, b.config.Bucket, b.fullKey(p))
	}

	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return fmt.Errorf("%w: bucket %s", omnifile.ErrNotFound, b.config.Bucket)
	}

	var apiErr interface{ ErrorCode() string }
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return fmt.Errorf("%w: s3://%s/%s", omnifile.ErrNotFound, b.config.Bucket, b.fullKey(p))
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%w: %v", omnifile.ErrPermissionDenied, err)
		}
	}

	return fmt.Errorf("s3: %w", err)
}

// s3Writer buffers the object and uploads it on Close.
type s3Writer struct {
	backend     *Backend
	ctx         context.Context
	key         string
	buffer      bytes.Buffer
	contentType string
	metadata    map[string]string
	closed      bool
	mu          sync.Mutex
}

func (w *s3Writer) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, omnifile.ErrWriterClosed
	}

	return w.buffer.Write(p)
}

func (w *s3Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	input := &s3.PutObjectInput{
		Bucket:        aws.String(w.backend.config.Bucket),
		Key:           aws.String(w.key),
		Body:          bytes.NewReader(w.buffer.Bytes()),
		ContentLength: aws.Int64(int64(w.buffer.Len())),
	}
	if w.contentType != "" {
		input.ContentType = aws.String(w.contentType)
	}
	if len(w.metadata) > 0 {
		input.Metadata = w.metadata
	}
	if sc := w.backend.config.StorageClass; sc != "" {
		input.StorageClass = types.StorageClass(sc)
	}

	if _, err := w.backend.client.PutObject(w.ctx, input); err != nil {
		return w.backend.translateError(err, w.key)
	}

	return nil
}

var _ omnifile.Backend = (*Backend)(nil)
