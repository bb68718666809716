// Package local provides a local file system implementation of the storage adapter.
package local

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	storageAdapter "github.com/tigerroll/congresso/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/congresso/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/congresso/pkg/batch/support/util/logger"
)

// ProviderType is the adapter type identifier in configuration.
const ProviderType = "local"

// localAdapter implements storage.StorageConnection on the local file system.
type localAdapter struct {
	cfg  storageConfig.StorageConfig
	name string
}

var _ storageAdapter.StorageConnection = (*localAdapter)(nil)

// NewLocalAdapter creates a local adapter, creating BaseDir when it does not exist.
func NewLocalAdapter(cfg storageConfig.StorageConfig, name string) (storageAdapter.StorageConnection, error) {
	if cfg.BaseDir == "" {
		return nil, errors.Newf("local storage adapter '%s': base_dir must be specified", name)
	}
	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "local storage adapter '%s': failed to create base_dir '%s'", name, cfg.BaseDir)
		}
	case err != nil:
		return nil, errors.Wrapf(err, "local storage adapter '%s': failed to stat base_dir '%s'", name, cfg.BaseDir)
	case !info.IsDir():
		return nil, errors.Newf("local storage adapter '%s': base_dir '%s' is not a directory", name, cfg.BaseDir)
	}
	return &localAdapter{cfg: cfg, name: name}, nil
}

func (a *localAdapter) Close() error {
	logger.Debugf("Local storage adapter '%s' closed.", a.name)
	return nil
}

func (a *localAdapter) Type() string { return ProviderType }

func (a *localAdapter) Name() string { return a.name }

// Upload writes to a temporary file and renames it so readers never see partial documents.
func (a *localAdapter) Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := a.resolvePath(bucket, objectName)
	if err != nil {
		return err
	}
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory '%s'", dir)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return errors.Wrapf(err, "failed to create temporary file in '%s'", dir)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "failed to write data to '%s'", fullPath)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to flush '%s'", fullPath)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return errors.Wrapf(err, "failed to move data into '%s'", fullPath)
	}
	logger.Debugf("Uploaded '%s' (local adapter '%s').", fullPath, a.name)
	return nil
}

func (a *localAdapter) Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	fullPath, err := a.resolvePath(bucket, objectName)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(storageAdapter.ErrObjectNotFound, "%s", fullPath)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open file '%s'", fullPath)
	}
	return file, nil
}

// ListObjects walks the bucket directory. Object names are slash separated and relative to it.
func (a *localAdapter) ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error {
	basePath, err := a.resolvePath(bucket, "")
	if err != nil {
		return err
	}
	if _, err := os.Stat(basePath); os.IsNotExist(err) {
		return nil
	}

	err = filepath.WalkDir(basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		objectName, err := filepath.Rel(basePath, path)
		if err != nil {
			return err
		}
		objectName = filepath.ToSlash(objectName)
		if a.cfg.Prefix != "" {
			objectName = strings.TrimPrefix(objectName, strings.Trim(a.cfg.Prefix, "/")+"/")
		}
		if !strings.HasPrefix(objectName, prefix) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(objectName)
	})
	if err != nil {
		return errors.Wrapf(err, "failed to list objects in '%s' with prefix '%s'", basePath, prefix)
	}
	return nil
}

func (a *localAdapter) DeleteObject(ctx context.Context, bucket, objectName string) error {
	fullPath, err := a.resolvePath(bucket, objectName)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			logger.Debugf("Object '%s' already absent (local adapter '%s').", fullPath, a.name)
			return nil
		}
		return errors.Wrapf(err, "failed to delete file '%s'", fullPath)
	}
	return nil
}

// resolvePath joins BaseDir, bucket, prefix and objectName, refusing paths that escape BaseDir.
func (a *localAdapter) resolvePath(bucket, objectName string) (string, error) {
	if bucket == "" {
		bucket = a.cfg.BucketName
	}
	parts := []string{a.cfg.BaseDir}
	if bucket != "" {
		parts = append(parts, bucket)
	}
	if objectName != "" {
		if a.cfg.Prefix != "" {
			parts = append(parts, a.cfg.Prefix)
		}
		parts = append(parts, filepath.FromSlash(objectName))
	}
	fullPath := filepath.Join(parts...)

	absBaseDir, err := filepath.Abs(a.cfg.BaseDir)
	if err != nil {
		return "", errors.Wrapf(err, "failed to get absolute path for base_dir '%s'", a.cfg.BaseDir)
	}
	absFullPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", errors.Wrapf(err, "failed to get absolute path for '%s'", fullPath)
	}
	if absFullPath != absBaseDir && !strings.HasPrefix(absFullPath, absBaseDir+string(filepath.Separator)) {
		return "", errors.Newf("resolved path '%s' is outside of base_dir '%s'", fullPath, a.cfg.BaseDir)
	}
	return fullPath, nil
}
