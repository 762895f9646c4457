/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package assetstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/friendsincode/grimnir_panel/internal/models"
	"github.com/rs/zerolog"
)

// S3 user metadata keys. S3 lower-cases these on the wire.
const (
	metaFileName   = "file-name"
	metaFileType   = "file-type"
	metaDateStored = "date-stored"
)

// S3Config configures the S3 backend.
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	Prefix          string
	Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	UsePathStyle    bool
}

// S3API is the subset of *s3.Client the store needs.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store keeps one object per payload at <prefix><id>.
type S3Store struct {
	client S3API
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewS3Store builds an AWS client from cfg.
func NewS3Store(ctx context.Context, cfg S3Config, logger zerolog.Logger) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	} else {
		logger.Warn().Msg("S3 credentials not configured, relying on the default AWS credential chain")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewS3StoreWithClient(client, cfg.Bucket, cfg.Prefix, logger), nil
}

// NewS3StoreWithClient wires an existing client.
func NewS3StoreWithClient(client S3API, bucket, prefix string, logger zerolog.Logger) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger.With().Str("component", "assetstore.s3").Str("bucket", bucket).Logger(),
	}
}

func (s *S3Store) key(id string) string {
	return s.prefix + id
}

func (s *S3Store) Put(ctx context.Context, rec models.AssetPayload) error {
	fileType := rec.FileType
	if fileType == "" {
		fileType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(rec.ID)),
		Body:        bytes.NewReader(rec.Payload),
		ContentType: aws.String(fileType),
		Metadata: map[string]string{
			metaFileName:   url.QueryEscape(rec.FileName),
			metaFileType:   fileType,
			metaDateStored: rec.DateStored.UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	s.logger.Debug().Str("audio_id", rec.ID).Int("size", len(rec.Payload)).Msg("payload uploaded")
	return nil
}

func (s *S3Store) Get(ctx context.Context, id string) (models.AssetPayload, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if isNotFound(err) {
		return models.AssetPayload{}, false, nil
	}
	if err != nil {
		return models.AssetPayload{}, false, fmt.Errorf("get object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return models.AssetPayload{}, false, fmt.Errorf("read object: %w", err)
	}
	rec := recordFromMetadata(id, out.Metadata)
	rec.Payload = data
	rec.FileSize = int64(len(data))
	return rec, true, nil
}

func (s *S3Store) GetAll(ctx context.Context) (map[string]models.AssetPayload, error) {
	ids, err := s.listIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.AssetPayload, len(ids))
	for _, id := range ids {
		rec, ok, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out[id] = rec
		}
	}
	return out, nil
}

func (s *S3Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (s *S3Store) FindByFileName(ctx context.Context, fileName string) ([]models.AssetPayload, error) {
	ids, err := s.listIDs(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.AssetPayload
	for _, id := range ids {
		head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(id)),
		})
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("head object: %w", err)
		}
		if recordFromMetadata(id, head.Metadata).FileName != fileName {
			continue
		}
		rec, ok, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *S3Store) Close() error { return nil }

func (s *S3Store) listIDs(ctx context.Context) ([]string, error) {
	var ids []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			id := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			if id == "" || strings.Contains(id, "/") {
				continue
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func recordFromMetadata(id string, meta map[string]string) models.AssetPayload {
	rec := models.AssetPayload{ID: id, FileType: meta[metaFileType]}
	if name, err := url.QueryUnescape(meta[metaFileName]); err == nil {
		rec.FileName = name
	}
	if ts, err := time.Parse(time.RFC3339Nano, meta[metaDateStored]); err == nil {
		rec.DateStored = ts
	}
	return rec
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noKey) || errors.As(err, &notFound)
}
