package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// S3Client moves conversion inputs and results between disk and S3.
type S3Client struct {
	client     *s3.Client
	downloader *manager.Downloader
	uploader   *manager.Uploader
	bucketName string
}

// NewS3Client creates an S3 client from the default AWS config chain.
func NewS3Client(ctx context.Context, bucketName string) (*S3Client, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	cli := s3.NewFromConfig(cfg)
	return &S3Client{
		client:     cli,
		downloader: manager.NewDownloader(cli),
		uploader:   manager.NewUploader(cli),
		bucketName: bucketName,
	}, nil
}

// IsS3Path reports whether p names an object rather than a local file.
func IsS3Path(p string) bool {
	return strings.HasPrefix(p, "s3://")
}

// SplitS3Path splits "s3://bucket/key" into bucket and key. Bucket may be
// empty, meaning the configured default bucket.
func SplitS3Path(p string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(p, "s3://")
	if trimmed == p {
		return "", "", fmt.Errorf("not an s3 path: %s", p)
	}
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("s3 path missing key: %s", p)
	}
	return parts[0], parts[1], nil
}

// FetchToDir downloads an object into dir, named after the key's base name,
// and returns the local path.
func (s *S3Client) FetchToDir(ctx context.Context, s3Path, dir string) (string, error) {
	bucket, key, err := SplitS3Path(s3Path)
	if err != nil {
		return "", err
	}
	if bucket == "" {
		bucket = s.bucketName
	}

	local := filepath.Join(dir, path.Base(key))
	f, err := os.Create(local)
	if err != nil {
		return "", fmt.Errorf("create local file: %w", err)
	}
	defer f.Close()

	n, err := s.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		os.Remove(local)
		return "", fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}

	log.Info().Str("bucket", bucket).Str("key", key).Int64("bytes", n).Str("local", local).Msg("fetched input from S3")
	return local, nil
}

// UploadFile uploads a local file under keyPrefix, keeping the base name.
func (s *S3Client) UploadFile(ctx context.Context, localPath, keyPrefix string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	key := path.Join(keyPrefix, filepath.Base(localPath))
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("text/markdown"),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	log.Info().Str("bucket", s.bucketName).Str("key", key).Msg("uploaded result to S3")
	return key, nil
}

// UploadResults uploads every file under keyPrefix and returns the object keys.
func (s *S3Client) UploadResults(ctx context.Context, localPaths []string, keyPrefix string) ([]string, error) {
	keys := make([]string, 0, len(localPaths))
	for _, p := range localPaths {
		key, err := s.UploadFile(ctx, p, keyPrefix)
		if err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
