package item

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/cockroachdb/errors"

	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
	"github.com/tigerroll/congresso/pkg/batch/support/util/logger"
)

// maxDescentDepth bounds the single-key descent probe.
const maxDescentDepth = 5

// ShapeProbe locates the item array inside one response shape.
type ShapeProbe struct {
	Name  string
	Match func(payload any) ([]any, bool)
}

// DefaultProbes returns the probes in priority order.
func DefaultProbes() []ShapeProbe {
	return []ShapeProbe{
		PathProbe("Resultset", "Items", "Item"),
		PathProbe("Items", "Item"),
		PathProbe("dados"),
		PathProbe("items"),
		PathProbe("item"),
		{Name: "array", Match: matchArray},
		{Name: "single-key", Match: matchSingleKey},
		{Name: "first-array", Match: matchFirstArray},
	}
}

// PathProbe follows a fixed chain of object keys. A single object at the end of the chain
// counts as a one-item array.
func PathProbe(keys ...string) ShapeProbe {
	name := ""
	for i, k := range keys {
		if i > 0 {
			name += "."
		}
		name += k
	}
	return ShapeProbe{
		Name: name,
		Match: func(payload any) ([]any, bool) {
			cur := normalize(payload)
			for _, k := range keys {
				obj, ok := cur.(map[string]any)
				if !ok {
					return nil, false
				}
				if cur, ok = obj[k]; !ok || cur == nil {
					return nil, false
				}
			}
			return asItems(cur)
		},
	}
}

func matchArray(payload any) ([]any, bool) {
	arr, ok := normalize(payload).([]any)
	return arr, ok
}

func matchSingleKey(payload any) ([]any, bool) {
	cur := normalize(payload)
	for depth := 0; depth < maxDescentDepth; depth++ {
		obj, ok := cur.(map[string]any)
		if !ok || len(obj) != 1 {
			return nil, false
		}
		for _, v := range obj {
			cur = v
		}
		if arr, ok := cur.([]any); ok {
			return arr, true
		}
	}
	return nil, false
}

// matchFirstArray returns the first array-valued top-level property in document order.
// Decoded maps have lost that order, so their keys are visited in lexical order; callers
// holding the body pass it as json.RawMessage.
func matchFirstArray(payload any) ([]any, bool) {
	if raw, ok := rawJSON(payload); ok {
		return firstArrayInDocument(raw)
	}
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, false
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if arr, ok := obj[k].([]any); ok {
			return arr, true
		}
	}
	return nil, false
}

func firstArrayInDocument(raw []byte) ([]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil, false
	}
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil, false
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, false
		}
		if v := bytes.TrimSpace(value); len(v) > 0 && v[0] == '[' {
			var arr []any
			if decodeNumbers(v, &arr) == nil {
				return arr, true
			}
		}
	}
	return nil, false
}

func rawJSON(payload any) ([]byte, bool) {
	switch v := payload.(type) {
	case json.RawMessage:
		return v, true
	case []byte:
		return v, true
	}
	return nil, false
}

// normalize decodes raw JSON payloads so the path probes can walk them.
func normalize(payload any) any {
	raw, ok := rawJSON(payload)
	if !ok {
		return payload
	}
	var out any
	if err := decodeNumbers(raw, &out); err != nil {
		return nil
	}
	return out
}

func decodeNumbers(raw []byte, target any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return errors.Wrap(dec.Decode(target), "decoding payload")
}

func asItems(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case map[string]any:
		return []any{t}, true
	}
	return nil, false
}

// Consolidator merges the fragments of one logical entity.
type Consolidator struct {
	probes []ShapeProbe
}

// NewConsolidator creates a consolidator. With no probes, DefaultProbes are used.
func NewConsolidator(probes ...ShapeProbe) *Consolidator {
	if len(probes) == 0 {
		probes = DefaultProbes()
	}
	return &Consolidator{probes: probes}
}

// Items returns the items of one payload and the name of the probe that matched.
func (c *Consolidator) Items(payload any) ([]any, string, bool) {
	if payload == nil {
		return nil, "", false
	}
	for _, p := range c.probes {
		if items, ok := p.Match(payload); ok {
			return items, p.Name, true
		}
	}
	return nil, "", false
}

// FragmentItems probes the raw body of f when it has one, and its decoded payload otherwise.
func (c *Consolidator) FragmentItems(f model.ExtractionFragment) ([]any, string, bool) {
	if len(f.Raw) > 0 {
		return c.Items(f.Raw)
	}
	return c.Items(f.Payload)
}

// ItemsOf adapts Items to the paginated reader's extractor signature.
func (c *Consolidator) ItemsOf(payload any) ([]any, bool) {
	items, _, ok := c.Items(payload)
	return items, ok
}

// Consolidate concatenates the items of every usable fragment. Failed or unrecognized
// fragments are skipped with a warning. It returns nil when no fragment yielded items.
func (c *Consolidator) Consolidate(key string, fragments []model.ExtractionFragment) *model.ConsolidatedRecord {
	rec := &model.ConsolidatedRecord{Key: key, Items: []any{}}
	for i, f := range fragments {
		if f.Failed() {
			logger.Warnf("consolidate %s: fragment %d from %s failed: %s", key, i, f.Source, f.Err)
			rec.SkippedFragments++
			continue
		}
		items, probe, ok := c.FragmentItems(f)
		if !ok {
			logger.Warnf("consolidate %s: no known shape in fragment %d from %s", key, i, f.Source)
			rec.SkippedFragments++
			continue
		}
		logger.Debugf("consolidate %s: fragment %d matched %s with %d items", key, i, probe, len(items))
		rec.MatchedFragments++
		rec.Items = append(rec.Items, items...)
		if f.Source != "" {
			rec.Sources = append(rec.Sources, f.Source)
		}
	}
	if len(rec.Items) == 0 {
		return nil
	}
	return rec
}
