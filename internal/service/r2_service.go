package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
	config "github.com/mit45/AutoSocial-Ai/configs"
)

// LocalMediaPrefix is the URL path under which MediaDir is served.
const LocalMediaPrefix = "/media/"

var ErrStorageDisabled = errors.New("object storage is not configured")

type StorageService interface {
	Upload(ctx context.Context, data []byte, filename, category string) (string, error)
	Delete(ctx context.Context, publicURL string) (bool, error)
	SaveLocal(data []byte, filename string) (string, error)
	RemoveLocal(path string) error
}

type R2Service struct {
	config   config.Config
	endpoint string

	once   sync.Once
	client *s3.Client
	err    error
}

func NewR2Service(cfg config.Config) *R2Service {
	return &R2Service{
		config:   cfg,
		endpoint: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2.AccountID),
	}
}

func (r *R2Service) R2Client(ctx context.Context) (*s3.Client, error) {
	r.once.Do(func() {
		cfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(r.config.R2.AccessKey, r.config.R2.SecretKey, "")),
			awsconfig.WithRegion("auto"),
		)
		if err != nil {
			slog.Info(err.Error())
			r.err = err
			return
		}

		r.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(r.endpoint)
			o.UsePathStyle = true
		})
	})
	return r.client, r.err
}

// Upload stores data under category/filename and returns its public URL.
func (r *R2Service) Upload(ctx context.Context, data []byte, filename, category string) (string, error) {
	if !r.config.R2.Enabled() {
		return "", ErrStorageDisabled
	}
	if len(data) == 0 {
		return "", errors.New("empty upload")
	}

	kind, err := filetype.Match(data)
	if err != nil || kind == types.Unknown {
		return "", fmt.Errorf("unsupported file type: %w", err)
	}
	if filename == "" {
		if filename, err = NewFileName(kind.Extension); err != nil {
			return "", err
		}
	}

	key := filename
	if category != "" {
		key = strings.Trim(category, "/") + "/" + filename
	}

	client, err := r.R2Client(ctx)
	if err != nil {
		return "", err
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.config.R2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(kind.MIME.Value),
	})
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return strings.TrimRight(r.config.R2.PublicBaseURL, "/") + "/" + key, nil
}

// Delete removes the object behind publicURL. It reports false when the URL
// does not belong to this bucket.
func (r *R2Service) Delete(ctx context.Context, publicURL string) (bool, error) {
	if !r.config.R2.Enabled() {
		return false, nil
	}

	prefix := strings.TrimRight(r.config.R2.PublicBaseURL, "/") + "/"
	if !strings.HasPrefix(publicURL, prefix) {
		return false, nil
	}
	key := strings.TrimPrefix(publicURL, prefix)

	client, err := r.R2Client(ctx)
	if err != nil {
		return false, err
	}

	_, err = client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.config.R2.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return true, nil
}

// SaveLocal writes data into the media directory and returns its served path.
func (r *R2Service) SaveLocal(data []byte, filename string) (string, error) {
	if filename == "" {
		ext := "png"
		if kind, err := filetype.Match(data); err == nil && kind != types.Unknown {
			ext = kind.Extension
		}
		var err error
		if filename, err = NewFileName(ext); err != nil {
			return "", err
		}
	}

	if err := os.MkdirAll(r.config.MediaDir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(r.config.MediaDir, filepath.Base(filename)), data, 0o644); err != nil {
		return "", err
	}
	return LocalMediaPrefix + filepath.Base(filename), nil
}

// RemoveLocal deletes a file previously returned by SaveLocal. Other paths are ignored.
func (r *R2Service) RemoveLocal(path string) error {
	if !strings.HasPrefix(path, LocalMediaPrefix) {
		return nil
	}
	err := os.Remove(filepath.Join(r.config.MediaDir, filepath.Base(path)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func NewFileName(ext string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	return id + "." + strings.TrimPrefix(ext, "."), nil
}
