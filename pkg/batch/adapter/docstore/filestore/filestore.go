// Package filestore stores documents as pretty-printed JSON files, one object per document
// path, on a storage connection (local directory tree or GCS bucket).
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/congresso/pkg/batch/adapter/docstore"
	"github.com/tigerroll/congresso/pkg/batch/adapter/storage"
	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
	"github.com/tigerroll/congresso/pkg/batch/support/util/logger"
)

const (
	fileSuffix  = ".json"
	contentType = "application/json"
)

// Store implements docstore.DocumentStore on a storage connection.
type Store struct {
	name string
	conn storage.StorageConnection
}

var _ docstore.DocumentStore = (*Store)(nil)

// New wraps conn. The store owns the connection and closes it.
func New(name string, conn storage.StorageConnection) *Store {
	return &Store{name: name, conn: conn}
}

func (s *Store) Name() string { return s.name }

// ObjectName maps a document path to its object name.
func ObjectName(path model.DocumentPath) string {
	return path.String() + fileSuffix
}

// Commit resolves every operation against the current objects first and only then writes,
// so a decoding failure aborts the batch before anything changes. Object storage has no
// multi-object transaction: write errors are collected and reported together.
func (s *Store) Commit(ctx context.Context, ops []model.BatchOperation) error {
	pending := make(map[string]json.RawMessage, len(ops))
	deleted := make(map[string]bool)
	var order []string

	for _, op := range ops {
		name := ObjectName(op.Path)
		if _, seen := pending[name]; !seen && !deleted[name] {
			order = append(order, name)
		}
		switch op.Kind {
		case model.OpDelete:
			delete(pending, name)
			deleted[name] = true
			continue
		case model.OpSet:
			if !op.Merge {
				pending[name] = op.Data
				delete(deleted, name)
				continue
			}
		}

		current, ok := pending[name]
		if !ok && !deleted[name] {
			doc, found, err := s.Get(ctx, op.Path)
			if err != nil {
				return err
			}
			if !found && op.Kind == model.OpUpdate {
				return errors.Newf("update of missing document %s", op.Path)
			}
			if found {
				if current, err = json.Marshal(doc); err != nil {
					return errors.Wrapf(err, "encoding %s", op.Path)
				}
			}
		}
		var base map[string]any
		if len(current) > 0 {
			if err := json.Unmarshal(current, &base); err != nil {
				return errors.Wrapf(err, "decoding %s", op.Path)
			}
		}
		patch, err := op.Decode()
		if err != nil {
			return errors.Wrapf(err, "decoding patch for %s", op.Path)
		}
		merged, err := json.Marshal(model.MergeDocuments(base, patch))
		if err != nil {
			return errors.Wrapf(err, "encoding %s", op.Path)
		}
		pending[name] = merged
		delete(deleted, name)
	}

	var result *multierror.Error
	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return multierror.Append(result, err).ErrorOrNil()
		}
		if data, ok := pending[name]; ok {
			if err := s.conn.Upload(ctx, "", name, bytes.NewReader(indent(data)), contentType); err != nil {
				result = multierror.Append(result, err)
			}
			continue
		}
		if deleted[name] {
			if err := s.conn.DeleteObject(ctx, "", name); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return err
	}
	logger.Debugf("filestore %s: wrote %d objects", s.name, len(order))
	return nil
}

func indent(data json.RawMessage) []byte {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return data
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

func (s *Store) Get(ctx context.Context, path model.DocumentPath) (map[string]any, bool, error) {
	r, err := s.conn.Download(ctx, "", ObjectName(path))
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading %s", path)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false, errors.Wrapf(err, "decoding %s", path)
	}
	return doc, true, nil
}

// List returns the document paths stored under a collection.
func (s *Store) List(ctx context.Context, collection model.CollectionPath) ([]string, error) {
	var out []string
	err := s.conn.ListObjects(ctx, "", collection.String()+"/", func(objectName string) error {
		if strings.HasSuffix(objectName, fileSuffix) {
			out = append(out, strings.TrimSuffix(objectName, fileSuffix))
		}
		return nil
	})
	return out, err
}

func (s *Store) Close() error {
	return s.conn.Close()
}
