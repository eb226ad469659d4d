package provision

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
)

// WebsiteService provisions the public static-site bucket and can push a
// local asset directory into it.
type WebsiteService struct {
	client *s3.Client
	region string
}

// NewWebsiteService returns a WebsiteService for the given region.
func NewWebsiteService(client *s3.Client, region string) *WebsiteService {
	return &WebsiteService{client: client, region: region}
}

// EnsureBucket creates the bucket if it does not already exist.
func (s *WebsiteService) EnsureBucket(ctx context.Context, bucket string) error {
	logger := zerolog.Ctx(ctx)

	input := &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	}
	// us-east-1 rejects an explicit location constraint.
	if s.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}

	_, err := s.client.CreateBucket(ctx, input)
	if err != nil {
		var apiErr smithy.APIError
		if !errors.As(err, &apiErr) ||
			(apiErr.ErrorCode() != "BucketAlreadyOwnedByYou" && apiErr.ErrorCode() != "BucketAlreadyExists") {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	} else {
		logger.Info().Str("bucket", bucket).Msg("Bucket created")
	}
	return nil
}

// EnsureWebsite creates the bucket if needed and configures it for public
// static-site hosting with the given index document.
func (s *WebsiteService) EnsureWebsite(ctx context.Context, bucket, indexDocument string) error {
	logger := zerolog.Ctx(ctx)

	if err := s.EnsureBucket(ctx, bucket); err != nil {
		return err
	}

	_, err := s.client.PutBucketWebsite(ctx, &s3.PutBucketWebsiteInput{
		Bucket: aws.String(bucket),
		WebsiteConfiguration: &types.WebsiteConfiguration{
			IndexDocument: &types.IndexDocument{Suffix: aws.String(indexDocument)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to configure website hosting on bucket %s: %w", bucket, err)
	}

	logger.Info().
		Str("bucket", bucket).
		Str("index_document", indexDocument).
		Msg("Website hosting configured")
	return nil
}

// SyncDir uploads every file under dir to the bucket, keyed by its relative
// path, with a detected content type. Returns the number of uploaded files.
func (s *WebsiteService) SyncDir(ctx context.Context, bucket, dir string) (int, error) {
	logger := zerolog.Ctx(ctx)

	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()

		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(bucket),
			Key:         aws.String(key),
			Body:        f,
			ContentType: aws.String(contentType(path)),
		})
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", key, err)
		}

		logger.Debug().Str("bucket", bucket).Str("key", key).Msg("Uploaded object")
		count++
		return nil
	})
	if err != nil {
		return count, err
	}

	logger.Info().Str("bucket", bucket).Int("files", count).Msg("Asset sync completed")
	return count, nil
}

func contentType(path string) string {
	// mimetype's sniffer misses a few text formats the extension nails.
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".js":
		return "application/javascript"
	case ".json":
		return "application/json"
	case ".svg":
		return "image/svg+xml"
	}
	if mtype, err := mimetype.DetectFile(path); err == nil {
		return mtype.String()
	}
	return "application/octet-stream"
}
