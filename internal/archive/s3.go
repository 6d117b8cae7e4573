// Package archive uploads synthesized clips to S3-compatible object storage.
// Uploads run in the background and never affect the stream that produced them.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/semaphore"

	"github.com/nextlevelbuilder/storycast/internal/tts"
)

const (
	defaultConcurrency = 4
	uploadTimeout      = 60 * time.Second
)

// Config configures the S3 archive.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // custom endpoint (MinIO, R2); enables path-style addressing
	Prefix          string
	AccessKeyID     string // optional; default credential chain otherwise
	SecretAccessKey string
	Concurrency     int
}

// Uploader is the part of the S3 upload manager the archive uses.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Archive implements pipeline.Archiver.
type S3Archive struct {
	uploader Uploader
	bucket   string
	prefix   string
	sem      *semaphore.Weighted
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// New builds an S3 client from cfg and the default AWS config chain.
func New(ctx context.Context, cfg Config) (*S3Archive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: bucket is required")
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithUploader(manager.NewUploader(client), cfg), nil
}

// NewWithUploader builds an archive around an existing uploader.
func NewWithUploader(u Uploader, cfg Config) *S3Archive {
	n := cfg.Concurrency
	if n <= 0 {
		n = defaultConcurrency
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &S3Archive{
		uploader: u,
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		sem:      semaphore.NewWeighted(int64(n)),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Key returns the object key for a clip: <prefix>/<runID>/<index>.<ext>.
func (a *S3Archive) Key(runID string, index int, ext string) string {
	return path.Join(a.prefix, runID, fmt.Sprintf("%d.%s", index, ext))
}

// Archive schedules an upload and returns immediately. When all upload slots
// are busy the clip is dropped and logged rather than delaying the stream.
func (a *S3Archive) Archive(runID string, index int, clip *tts.SynthResult) {
	if !a.sem.TryAcquire(1) {
		slog.Warn("archive.dropped", "run_id", runID, "index", index, "reason", "busy")
		return
	}
	key := a.Key(runID, index, clip.Extension)
	body := clip.Audio
	mime := clip.MimeType

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.sem.Release(1)

		ctx, cancel := context.WithTimeout(a.ctx, uploadTimeout)
		defer cancel()
		_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(body),
			ContentType: aws.String(mime),
		})
		if err != nil {
			slog.Warn("archive.upload_failed", "key", key, "error", err)
			return
		}
		slog.Debug("archive.uploaded", "key", key, "bytes", len(body))
	}()
}

// Close waits for in-flight uploads, or abandons them when ctx ends.
func (a *S3Archive) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		a.cancel()
		return nil
	case <-ctx.Done():
		a.cancel()
		return ctx.Err()
	}
}
