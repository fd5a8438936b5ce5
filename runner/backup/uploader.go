package backup

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

// Uploader is the remote side of the backup pipeline. Keys are relative
// paths like "2026-08-23/backup_....tar.gz".
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader) error
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// S3Uploader stores backup archives in an S3 bucket under a key prefix.
type S3Uploader struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Uploader builds an S3 uploader from the ambient AWS configuration
// (environment, shared config, instance role).
func NewS3Uploader(ctx context.Context, bucket, prefix string) (*S3Uploader, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load aws config")
	}
	return &S3Uploader{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, key string, body io.Reader) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(u.fullKey(key)),
		Body:   body,
	})
	return errors.Wrapf(err, "failed to upload %s", key)
}

func (u *S3Uploader) List(ctx context.Context) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(u.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(u.bucket),
		Prefix: aws.String(u.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to list backups")
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if u.prefix != "" {
				key = strings.TrimPrefix(strings.TrimPrefix(key, u.prefix), "/")
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (u *S3Uploader) Delete(ctx context.Context, key string) error {
	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(u.fullKey(key)),
	})
	return errors.Wrapf(err, "failed to delete %s", key)
}

func (u *S3Uploader) fullKey(key string) string {
	if u.prefix == "" {
		return key
	}
	return path.Join(u.prefix, key)
}

// LocalUploader stores backup archives under a local directory, used when no
// bucket is configured.
type LocalUploader struct {
	dir string
}

func NewLocalUploader(dir string) *LocalUploader {
	return &LocalUploader{dir: dir}
}

func (u *LocalUploader) Upload(ctx context.Context, key string, body io.Reader) error {
	target := filepath.Join(u.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrap(err, "failed to create backup directory")
	}
	f, err := os.Create(target)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", target)
	}
	defer f.Close()
	if _, err := io.Copy(f, body); err != nil {
		return errors.Wrapf(err, "failed to write %s", target)
	}
	return nil
}

func (u *LocalUploader) List(ctx context.Context) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(u.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(u.dir, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to list backups")
	}
	return keys, nil
}

func (u *LocalUploader) Delete(ctx context.Context, key string) error {
	err := os.Remove(filepath.Join(u.dir, filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to delete %s", key)
	}
	return nil
}
