// Package gcs provides a Google Cloud Storage implementation of the storage adapter.
package gcs

import (
	"context"
	"io"
	"path"
	"strings"

	gcstorage "cloud.google.com/go/storage"
	"github.com/cockroachdb/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	storageAdapter "github.com/tigerroll/congresso/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/congresso/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/congresso/pkg/batch/support/util/logger"
)

// ProviderType is the adapter type identifier in configuration.
const ProviderType = "gcs"

type gcsAdapter struct {
	cfg    storageConfig.StorageConfig
	name   string
	client *gcstorage.Client
}

var _ storageAdapter.StorageConnection = (*gcsAdapter)(nil)

// ClientOptions returns the client options derived from the configuration.
func ClientOptions(cfg storageConfig.StorageConfig) []option.ClientOption {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}
	return opts
}

// NewGCSAdapter opens a storage client for the configured bucket.
func NewGCSAdapter(ctx context.Context, cfg storageConfig.StorageConfig, name string) (storageAdapter.StorageConnection, error) {
	if cfg.BucketName == "" {
		return nil, errors.Newf("gcs storage adapter '%s': bucket_name must be specified", name)
	}
	client, err := gcstorage.NewClient(ctx, ClientOptions(cfg)...)
	if err != nil {
		return nil, errors.Wrapf(err, "gcs storage adapter '%s': failed to create client", name)
	}
	logger.Debugf("GCS storage adapter '%s' connected to bucket '%s'.", name, cfg.BucketName)
	return &gcsAdapter{cfg: cfg, name: name, client: client}, nil
}

func (a *gcsAdapter) Type() string { return ProviderType }

func (a *gcsAdapter) Name() string { return a.name }

func (a *gcsAdapter) Close() error {
	return errors.Wrapf(a.client.Close(), "closing gcs adapter '%s'", a.name)
}

func (a *gcsAdapter) object(bucket, objectName string) *gcstorage.ObjectHandle {
	if bucket == "" {
		bucket = a.cfg.BucketName
	}
	return a.client.Bucket(bucket).Object(a.objectKey(objectName))
}

func (a *gcsAdapter) objectKey(objectName string) string {
	if a.cfg.Prefix == "" {
		return objectName
	}
	return path.Join(strings.Trim(a.cfg.Prefix, "/"), objectName)
}

func (a *gcsAdapter) Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error {
	w := a.object(bucket, objectName).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, data); err != nil {
		w.Close()
		return errors.Wrapf(err, "failed to upload '%s'", objectName)
	}
	// the object only becomes visible once the writer is closed
	if err := w.Close(); err != nil {
		return errors.Wrapf(err, "failed to finalize '%s'", objectName)
	}
	return nil
}

func (a *gcsAdapter) Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	r, err := a.object(bucket, objectName).NewReader(ctx)
	if errors.Is(err, gcstorage.ErrObjectNotExist) {
		return nil, errors.Wrapf(storageAdapter.ErrObjectNotFound, "%s", objectName)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to download '%s'", objectName)
	}
	return r, nil
}

func (a *gcsAdapter) ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error {
	if bucket == "" {
		bucket = a.cfg.BucketName
	}
	keyPrefix := a.objectKey(prefix)
	it := a.client.Bucket(bucket).Objects(ctx, &gcstorage.Query{Prefix: keyPrefix})
	trim := ""
	if a.cfg.Prefix != "" {
		trim = strings.Trim(a.cfg.Prefix, "/") + "/"
	}
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "failed to list objects in '%s' with prefix '%s'", bucket, keyPrefix)
		}
		if err := fn(strings.TrimPrefix(attrs.Name, trim)); err != nil {
			return err
		}
	}
}

func (a *gcsAdapter) DeleteObject(ctx context.Context, bucket, objectName string) error {
	err := a.object(bucket, objectName).Delete(ctx)
	if err == nil || errors.Is(err, gcstorage.ErrObjectNotExist) {
		return nil
	}
	return errors.Wrapf(err, "failed to delete '%s'", objectName)
}
