package cuetypes

import (
	"encoding/json"
	"fmt"
)

// JSONKind discriminates the variant held by a JSONValue.
type JSONKind int

const (
	JSONNull JSONKind = iota
	JSONBool
	JSONNumber
	JSONString
	JSONArray
	JSONObject
)

// JSONValue is a tagged-union representation of an arbitrary JSON value,
// used for memory metadata. Go has no native sum type, so metadata is
// modeled this way rather than as bare interface{} — callers switch on Kind
// instead of type-asserting.
type JSONValue struct {
	Kind JSONKind

	Bool   bool
	Num    float64
	Str    string
	Arr    []JSONValue
	Obj    map[string]JSONValue
}

// StringValue is a convenience constructor for the common metadata case.
func StringValue(s string) JSONValue {
	return JSONValue{Kind: JSONString, Str: s}
}

// MarshalJSON implements json.Marshaler.
func (v JSONValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case JSONNull:
		return []byte("null"), nil
	case JSONBool:
		return json.Marshal(v.Bool)
	case JSONNumber:
		return json.Marshal(v.Num)
	case JSONString:
		return json.Marshal(v.Str)
	case JSONArray:
		return json.Marshal(v.Arr)
	case JSONObject:
		return json.Marshal(v.Obj)
	default:
		return nil, fmt.Errorf("cuetypes: unknown JSONValue kind %d", v.Kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *JSONValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = fromRaw(raw)
	return nil
}

func fromRaw(raw interface{}) JSONValue {
	switch t := raw.(type) {
	case nil:
		return JSONValue{Kind: JSONNull}
	case bool:
		return JSONValue{Kind: JSONBool, Bool: t}
	case float64:
		return JSONValue{Kind: JSONNumber, Num: t}
	case string:
		return JSONValue{Kind: JSONString, Str: t}
	case []interface{}:
		arr := make([]JSONValue, len(t))
		for i, e := range t {
			arr[i] = fromRaw(e)
		}
		return JSONValue{Kind: JSONArray, Arr: arr}
	case map[string]interface{}:
		obj := make(map[string]JSONValue, len(t))
		for k, e := range t {
			obj[k] = fromRaw(e)
		}
		return JSONValue{Kind: JSONObject, Obj: obj}
	default:
		return JSONValue{Kind: JSONNull}
	}
}
