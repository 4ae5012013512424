// Package storage wraps the S3 calls the estimator makes: presigned read
// URLs for job photos and durable writes for rendered PDFs.
package storage

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Presigner defines the subset of the S3 presign client we use.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Uploader defines the subset of the S3 client used for direct writes.
type Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Config struct {
	Region      string
	PhotoBucket string
	PDFBucket   string
	PresignTTL  time.Duration
}

type Store struct {
	cfg       Config
	presigner Presigner
	uploader  Uploader
	logger    *slog.Logger
}

// New builds a Store from the ambient AWS config.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 15 * time.Minute
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg)
	return &Store{
		cfg:       cfg,
		presigner: s3.NewPresignClient(client),
		uploader:  client,
		logger:    logger,
	}, nil
}

// NewWithClients builds a Store over caller-supplied clients (tests).
func NewWithClients(cfg Config, presigner Presigner, uploader Uploader, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 15 * time.Minute
	}
	return &Store{cfg: cfg, presigner: presigner, uploader: uploader, logger: logger}
}

// PresignPhotoGet returns a time-limited read URL for one photo key,
// suitable for passing to the LLM as image input.
func (s *Store) PresignPhotoGet(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.PhotoBucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) { o.Expires = s.cfg.PresignTTL })
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// PresignPhotoPut returns an upload URL for the client-side photo queue.
func (s *Store) PresignPhotoPut(ctx context.Context, key, contentType string) (string, time.Duration, error) {
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.PhotoBucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(o *s3.PresignOptions) { o.Expires = s.cfg.PresignTTL })
	if err != nil {
		return "", 0, err
	}
	return req.URL, s.cfg.PresignTTL, nil
}

// PutPDF writes a rendered estimate PDF.
func (s *Store) PutPDF(ctx context.Context, key string, body []byte) error {
	_, err := s.uploader.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.PDFBucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		s.logger.Error("pdf upload failed", "key", key, "error", err)
		return err
	}
	s.logger.Info("pdf uploaded", "key", key, "bytes", len(body))
	return nil
}
