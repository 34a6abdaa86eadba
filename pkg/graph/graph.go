package graph

import "context"

// Row is a single result row of a graph query, keyed by the column names
// of the RETURN clause.
type Row map[string]any

// Store is the narrow query surface the retrieval engine needs from a
// graph database. All queries issued through it are read-only.
type Store interface {
	// ExecuteQuery runs a Cypher query with the given parameters and
	// returns the result rows.
	ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]Row, error)

	// Close releases all resources held by the store.
	Close(ctx context.Context) error
}

// StringValue extracts a string column from a row, tolerating missing or
// non-string values.
func (r Row) StringValue(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// StringSlice extracts a list column from a row as strings.
func (r Row) StringSlice(key string) []string {
	switch v := r[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// FloatValue extracts a numeric column from a row.
func (r Row) FloatValue(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

// NestedRow extracts a map column from a row.
func (r Row) NestedRow(key string) Row {
	switch v := r[key].(type) {
	case Row:
		return v
	case map[string]any:
		return Row(v)
	}
	return nil
}
