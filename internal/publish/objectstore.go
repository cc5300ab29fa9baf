// Package publish pushes the assembled site and its packaged artifact to
// the configured deploy targets: an S3-compatible bucket serving the static
// site, and/or a local directory.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"git.home.luguber.info/inful/litebuilder/internal/config"
)

// ObjectStorePublisher uploads site trees and artifacts to a bucket.
type ObjectStorePublisher struct {
	client *minio.Client
	cfg    config.ObjectStoreConfig
}

// NewObjectStorePublisher connects to the configured endpoint.
func NewObjectStorePublisher(cfg config.ObjectStoreConfig) (*ObjectStorePublisher, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}
	return &ObjectStorePublisher{client: client, cfg: cfg}, nil
}

// EnsureBucket creates the target bucket if it does not exist.
func (p *ObjectStorePublisher) EnsureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", p.cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := p.client.MakeBucket(ctx, p.cfg.Bucket, minio.MakeBucketOptions{Region: p.cfg.Region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", p.cfg.Bucket, err)
	}
	slog.Info("Created deploy bucket", "bucket", p.cfg.Bucket)
	return nil
}

// UploadSite walks the site directory and uploads every file under the
// configured prefix with a content type derived from its extension.
// It returns the number of uploaded objects.
func (p *ObjectStorePublisher) UploadSite(ctx context.Context, siteDir string) (int, error) {
	uploaded := 0
	err := filepath.WalkDir(siteDir, func(fp string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(siteDir, fp)
		if err != nil {
			return err
		}
		key := path.Join(p.cfg.Prefix, filepath.ToSlash(rel))
		if _, err := p.client.FPutObject(ctx, p.cfg.Bucket, key, fp, minio.PutObjectOptions{
			ContentType: contentTypeFor(rel),
		}); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		uploaded++
		return nil
	})
	if err != nil {
		return uploaded, err
	}
	slog.Info("Site uploaded", "bucket", p.cfg.Bucket, "prefix", p.cfg.Prefix, "objects", uploaded)
	return uploaded, nil
}

// UploadArtifact uploads the packaged archive under the prefix's
// artifacts/ key space and returns the object key.
func (p *ObjectStorePublisher) UploadArtifact(ctx context.Context, archivePath, runID string) (string, error) {
	key := path.Join(p.cfg.Prefix, "artifacts", runID, filepath.Base(archivePath))
	if _, err := p.client.FPutObject(ctx, p.cfg.Bucket, key, archivePath, minio.PutObjectOptions{
		ContentType: "application/gzip",
	}); err != nil {
		return "", fmt.Errorf("upload artifact %s: %w", key, err)
	}
	return key, nil
}

// URL returns a human-readable location for the published site.
func (p *ObjectStorePublisher) URL() string {
	scheme := "http"
	if p.cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, p.cfg.Endpoint, p.cfg.Bucket, p.cfg.Prefix)
}

func contentTypeFor(rel string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(rel))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
