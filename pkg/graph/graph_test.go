package graph

import (
	"reflect"
	"testing"
)

func TestRowStringValue(t *testing.T) {
	row := Row{"name": "chunk-1", "count": int64(3)}

	if got := row.StringValue("name"); got != "chunk-1" {
		t.Errorf("StringValue(name) = %q, want %q", got, "chunk-1")
	}
	if got := row.StringValue("count"); got != "" {
		t.Errorf("StringValue(count) = %q, want empty for non-string", got)
	}
	if got := row.StringValue("missing"); got != "" {
		t.Errorf("StringValue(missing) = %q, want empty", got)
	}
}

func TestRowStringSlice(t *testing.T) {
	tests := []struct {
		name string
		row  Row
		want []string
	}{
		{"typed slice", Row{"ids": []string{"a", "b"}}, []string{"a", "b"}},
		{"driver slice", Row{"ids": []any{"a", "b"}}, []string{"a", "b"}},
		{"mixed types skip non-strings", Row{"ids": []any{"a", int64(1), "b"}}, []string{"a", "b"}},
		{"missing key", Row{}, nil},
		{"wrong type", Row{"ids": "a"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.row.StringSlice("ids"); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("StringSlice() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRowFloatValue(t *testing.T) {
	tests := []struct {
		name string
		row  Row
		want float64
	}{
		{"float64", Row{"score": 0.5}, 0.5},
		{"int64 from driver", Row{"score": int64(7)}, 7},
		{"int", Row{"score": 7}, 7},
		{"missing", Row{}, 0},
		{"wrong type", Row{"score": "7"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.row.FloatValue("score"); got != tt.want {
				t.Errorf("FloatValue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRowNestedRow(t *testing.T) {
	row := Row{
		"metadata": map[string]any{"url": "https://example.com"},
		"typed":    Row{"k": "v"},
	}

	nested := row.NestedRow("metadata")
	if nested.StringValue("url") != "https://example.com" {
		t.Errorf("NestedRow(metadata) = %v", nested)
	}
	if row.NestedRow("typed").StringValue("k") != "v" {
		t.Error("NestedRow should pass through Row values")
	}
	if row.NestedRow("missing") != nil {
		t.Error("NestedRow(missing) should be nil")
	}
}
