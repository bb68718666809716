package model

import (
	"strings"

	"github.com/tigerroll/congresso/pkg/batch/support/util/exception"
)

const pathModule = "path"

// CollectionPath addresses a collection: an odd number of non-empty segments
// alternating collection/document/collection...
type CollectionPath struct {
	segments []string
}

// DocumentPath addresses a document: an even number of non-empty segments.
type DocumentPath struct {
	segments []string
}

func splitSegments(raw string) ([]string, error) {
	trimmed := strings.Trim(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return nil, exception.NewInvalidPathError(pathModule, raw, "path is empty")
	}
	segments := strings.Split(trimmed, "/")
	for _, s := range segments {
		if strings.TrimSpace(s) == "" {
			return nil, exception.NewInvalidPathError(pathModule, raw, "path has an empty segment")
		}
	}
	return segments, nil
}

func checkID(id string) (string, error) {
	trimmed := strings.Trim(strings.TrimSpace(id), "/")
	if trimmed == "" {
		return "", exception.NewInvalidPathError(pathModule, id, "document id is empty")
	}
	if strings.Contains(trimmed, "/") {
		return "", exception.NewInvalidPathError(pathModule, id, "document id must not contain '/'")
	}
	return trimmed, nil
}

// ParseCollectionPath parses "a/b/c". Leading and trailing slashes are ignored.
func ParseCollectionPath(raw string) (CollectionPath, error) {
	segments, err := splitSegments(raw)
	if err != nil {
		return CollectionPath{}, err
	}
	if len(segments)%2 != 1 {
		return CollectionPath{}, exception.NewInvalidPathError(pathModule, raw, "collection paths need an odd number of segments")
	}
	return CollectionPath{segments: segments}, nil
}

// ParseDocumentPath parses "a/b" or "a/b/c/d".
func ParseDocumentPath(raw string) (DocumentPath, error) {
	segments, err := splitSegments(raw)
	if err != nil {
		return DocumentPath{}, err
	}
	if len(segments)%2 != 0 {
		return DocumentPath{}, exception.NewInvalidPathError(pathModule, raw, "document paths need an even number of segments")
	}
	return DocumentPath{segments: segments}, nil
}

// Collection builds a root collection path from a single name.
func Collection(name string) (CollectionPath, error) {
	id, err := checkID(name)
	if err != nil {
		return CollectionPath{}, err
	}
	return CollectionPath{segments: []string{id}}, nil
}

// Doc returns the document id inside the collection.
func (c CollectionPath) Doc(id string) (DocumentPath, error) {
	if len(c.segments) == 0 {
		return DocumentPath{}, exception.NewInvalidPathError(pathModule, "", "collection path is empty")
	}
	checked, err := checkID(id)
	if err != nil {
		return DocumentPath{}, err
	}
	segments := make([]string, len(c.segments), len(c.segments)+1)
	copy(segments, c.segments)
	return DocumentPath{segments: append(segments, checked)}, nil
}

// Sub returns the sub-collection of a document.
func (d DocumentPath) Sub(collection string) (CollectionPath, error) {
	if len(d.segments) == 0 {
		return CollectionPath{}, exception.NewInvalidPathError(pathModule, "", "document path is empty")
	}
	checked, err := checkID(collection)
	if err != nil {
		return CollectionPath{}, err
	}
	segments := make([]string, len(d.segments), len(d.segments)+1)
	copy(segments, d.segments)
	return CollectionPath{segments: append(segments, checked)}, nil
}

// String renders the slash-separated form.
func (c CollectionPath) String() string { return strings.Join(c.segments, "/") }

// IsZero reports an unset path.
func (c CollectionPath) IsZero() bool { return len(c.segments) == 0 }

// String renders the slash-separated form.
func (d DocumentPath) String() string { return strings.Join(d.segments, "/") }

// IsZero reports an unset path.
func (d DocumentPath) IsZero() bool { return len(d.segments) == 0 }

// ID is the last segment.
func (d DocumentPath) ID() string {
	if len(d.segments) == 0 {
		return ""
	}
	return d.segments[len(d.segments)-1]
}

// Parent is the collection holding the document.
func (d DocumentPath) Parent() CollectionPath {
	if len(d.segments) == 0 {
		return CollectionPath{}
	}
	return CollectionPath{segments: d.segments[:len(d.segments)-1]}
}

// Segments returns a copy of the path segments.
func (d DocumentPath) Segments() []string {
	out := make([]string, len(d.segments))
	copy(out, d.segments)
	return out
}
