package docstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"

	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
)

// MemoryStore keeps documents in process. Used for dry runs and tests.
type MemoryStore struct {
	name    string
	mu      sync.RWMutex
	docs    map[string]json.RawMessage
	commits int
}

var _ DocumentStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{name: name, docs: make(map[string]json.RawMessage)}
}

func (s *MemoryStore) Name() string { return s.name }

// Commit applies ops on a copy and swaps it in, so a failing operation leaves the store untouched.
func (s *MemoryStore) Commit(ctx context.Context, ops []model.BatchOperation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]json.RawMessage, len(s.docs)+len(ops))
	for k, v := range s.docs {
		next[k] = v
	}
	for _, op := range ops {
		key := op.Path.String()
		switch op.Kind {
		case model.OpDelete:
			delete(next, key)
		case model.OpSet:
			if !op.Merge {
				next[key] = op.Data
				continue
			}
			fallthrough
		case model.OpUpdate:
			current, ok := next[key]
			if !ok && op.Kind == model.OpUpdate {
				return errors.Newf("update of missing document %s", key)
			}
			merged, err := mergeRaw(current, op)
			if err != nil {
				return err
			}
			next[key] = merged
		default:
			return errors.Newf("unknown operation kind %q", op.Kind)
		}
	}
	s.docs = next
	s.commits++
	return nil
}

func mergeRaw(current json.RawMessage, op model.BatchOperation) (json.RawMessage, error) {
	var base map[string]any
	if len(current) > 0 {
		if err := json.Unmarshal(current, &base); err != nil {
			return nil, errors.Wrapf(err, "decoding stored %s", op.Path)
		}
	}
	patch, err := op.Decode()
	if err != nil {
		return nil, errors.Wrapf(err, "decoding patch for %s", op.Path)
	}
	out, err := json.Marshal(model.MergeDocuments(base, patch))
	return out, errors.Wrapf(err, "encoding %s", op.Path)
}

func (s *MemoryStore) Get(_ context.Context, path model.DocumentPath) (map[string]any, bool, error) {
	s.mu.RLock()
	raw, ok := s.docs[path.String()]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false, errors.Wrapf(err, "decoding %s", path)
	}
	return doc, true, nil
}

// Raw returns the stored bytes of a document.
func (s *MemoryStore) Raw(path string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.docs[path]
	return raw, ok
}

// Paths lists the stored document paths in lexical order.
func (s *MemoryStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.docs))
	for p := range s.docs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Commits returns the number of successful commits.
func (s *MemoryStore) Commits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits
}

func (s *MemoryStore) Close() error { return nil }
