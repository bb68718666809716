// Package resolver opens the document store configured for a run destination.
package resolver

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/fx"

	"github.com/tigerroll/congresso/pkg/batch/adapter/docstore"
	"github.com/tigerroll/congresso/pkg/batch/adapter/docstore/filestore"
	"github.com/tigerroll/congresso/pkg/batch/adapter/docstore/gormstore"
	"github.com/tigerroll/congresso/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/congresso/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/congresso/pkg/batch/adapter/storage/gcs"
	"github.com/tigerroll/congresso/pkg/batch/adapter/storage/local"
	"github.com/tigerroll/congresso/pkg/batch/core/config"
	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
	"github.com/tigerroll/congresso/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/congresso/pkg/batch/support/util/exception"
	"github.com/tigerroll/congresso/pkg/batch/support/util/logger"
)

const moduleName = "docstore"

// StoreResolver opens stores lazily and caches them by adapter name.
type StoreResolver struct {
	cfg    *config.Config
	mu     sync.Mutex
	stores map[string]docstore.DocumentStore
}

// NewStoreResolver creates a resolver over the adapter configuration.
func NewStoreResolver(cfg *config.Config) *StoreResolver {
	return &StoreResolver{cfg: cfg, stores: make(map[string]docstore.DocumentStore)}
}

// Register installs an already open store under an adapter name, replacing the configured one.
func (r *StoreResolver) Register(name string, store docstore.DocumentStore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[name] = store
}

// ForDestination returns the store behind a run destination.
func (r *StoreResolver) ForDestination(ctx context.Context, dest model.Destination) (docstore.DocumentStore, error) {
	name, ok := r.cfg.Congresso.Destinations.AdapterFor(string(dest))
	if !ok {
		return nil, exception.NewValidationError(moduleName, "no store adapter configured for destination "+string(dest),
			"set congresso.destinations in the configuration file")
	}
	return r.Resolve(ctx, name)
}

// Resolve opens (once) the named store adapter.
func (r *StoreResolver) Resolve(ctx context.Context, name string) (docstore.DocumentStore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[name]; ok {
		return s, nil
	}

	raw, ok := configbinder.AsMap(r.cfg.Congresso.AdapterConfigs[name])
	if !ok {
		return nil, exception.NewValidationError(moduleName, "store adapter '"+name+"' is not configured",
			"declare it under congresso.adapter."+name)
	}
	var head struct {
		Type string `yaml:"type"`
	}
	if err := configbinder.BindProperties(raw, &head); err != nil {
		return nil, errors.Wrapf(err, "decoding store adapter '%s'", name)
	}

	s, err := open(ctx, name, head.Type, raw)
	if err != nil {
		return nil, err
	}
	r.stores[name] = s
	logger.Infof("Document store '%s' (%s) ready.", name, head.Type)
	return s, nil
}

func open(ctx context.Context, name, storeType string, raw map[string]interface{}) (docstore.DocumentStore, error) {
	switch storeType {
	case docstore.TypeMemory:
		return docstore.NewMemoryStore(name), nil
	case docstore.TypePostgres, docstore.TypeMySQL, docstore.TypeSQLite:
		var dbCfg gormstore.DatabaseConfig
		if err := configbinder.BindProperties(raw, &dbCfg); err != nil {
			return nil, errors.Wrapf(err, "decoding database adapter '%s'", name)
		}
		return gormstore.Open(ctx, name, dbCfg)
	case docstore.TypeLocal, docstore.TypeGCS:
		var stCfg storageConfig.StorageConfig
		if err := configbinder.BindProperties(raw, &stCfg); err != nil {
			return nil, errors.Wrapf(err, "decoding storage adapter '%s'", name)
		}
		var conn storage.StorageConnection
		var err error
		if storeType == docstore.TypeLocal {
			conn, err = local.NewLocalAdapter(stCfg, name)
		} else {
			conn, err = gcs.NewGCSAdapter(ctx, stCfg, name)
		}
		if err != nil {
			return nil, err
		}
		return filestore.New(name, conn), nil
	}
	return nil, exception.NewValidationError(moduleName, "store adapter '"+name+"' has unknown type '"+storeType+"'",
		"use one of memory, postgres, mysql, sqlite, local, gcs")
}

// CloseAll closes every opened store.
func (r *StoreResolver) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result *multierror.Error
	for name, s := range r.stores {
		if err := s.Close(); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "closing store '%s'", name))
		}
		delete(r.stores, name)
	}
	return result.ErrorOrNil()
}

// Module provides the StoreResolver and closes its stores when the application stops.
var Module = fx.Options(
	fx.Provide(NewStoreResolver),
	fx.Invoke(func(lc fx.Lifecycle, r *StoreResolver) {
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return r.CloseAll() }})
	}),
)
