package legis

import (
	"encoding/json"
	"strconv"
	"strings"
)

// lookup follows a chain of object keys.
func lookup(v any, path ...string) any {
	cur := v
	for _, k := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[k]
	}
	return cur
}

// text renders a scalar found at path. Objects, arrays and nulls render as "".
func text(v any, path ...string) string {
	switch s := lookup(v, path...).(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	}
	return ""
}

// firstText returns the first non-empty text among several candidate paths, for fields the
// upstream APIs name differently between endpoints.
func firstText(v any, paths ...[]string) string {
	for _, p := range paths {
		if s := text(v, p...); s != "" {
			return s
		}
	}
	return ""
}

func object(v any, path ...string) map[string]any {
	m, _ := lookup(v, path...).(map[string]any)
	return m
}

// year extracts the leading four-digit year of an ISO date or timestamp.
func year(date string) string {
	if len(date) >= 4 {
		if _, err := strconv.Atoi(date[:4]); err == nil {
			return date[:4]
		}
	}
	return "desconhecido"
}
