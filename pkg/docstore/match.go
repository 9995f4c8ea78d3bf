package docstore

import (
	"encoding/json"
	"reflect"
)

// MatchField reports whether the top-level field of a JSON body equals value.
// Both sides are compared in their decoded JSON form, so 3 and 3.0 match.
func MatchField(body []byte, field string, value any) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return false
	}
	raw, ok := fields[field]
	if !ok {
		return false
	}
	var got any
	if err := json.Unmarshal(raw, &got); err != nil {
		return false
	}
	want, err := normalize(value)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(got, want)
}

func normalize(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
