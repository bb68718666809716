package model

import "encoding/json"

// OperationKind is the kind of a pending store write.
type OperationKind string

const (
	OpSet    OperationKind = "set"
	OpUpdate OperationKind = "update"
	OpDelete OperationKind = "delete"
)

// BatchOperation is one pending write owned by a batch writer.
type BatchOperation struct {
	Kind OperationKind
	Path DocumentPath
	// Data is the JSON encoding of the document; nil for deletes.
	Data json.RawMessage
	// Size is len(Data), the serialized document size.
	Size int
	// Merge merges Data into an existing document instead of replacing it (set only).
	Merge bool
}

// Decode unmarshals the operation payload into a generic document.
func (op BatchOperation) Decode() (map[string]any, error) {
	if len(op.Data) == 0 {
		return nil, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(op.Data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// MergeDocuments shallow-merges patch into base and returns base. A nil base is allocated.
func MergeDocuments(base, patch map[string]any) map[string]any {
	if base == nil {
		base = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		base[k] = v
	}
	return base
}
