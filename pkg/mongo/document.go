package mongo

import "go.mongodb.org/mongo-driver/v2/bson"

// Plain converts decoded BSON values into plain Go values: documents become
// map[string]any and arrays become []any, recursively. Depending on the
// client's BSON options, embedded documents of schemaless fields decode as
// bson.D or bson.M, which callers matching on map[string]any would miss.
func Plain(v any) any {
	switch t := v.(type) {
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = Plain(e.Value)
		}
		return m
	case bson.M:
		return PlainMap(t)
	case map[string]any:
		return PlainMap(t)
	case bson.A:
		return PlainSlice(t)
	case []any:
		return PlainSlice(t)
	default:
		return v
	}
}

// PlainMap applies Plain to every value of m. A nil map stays nil.
func PlainMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Plain(v)
	}
	return out
}

// PlainSlice applies Plain to every element of s. A nil slice stays nil.
func PlainSlice(s []any) []any {
	if s == nil {
		return nil
	}
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = Plain(v)
	}
	return out
}
