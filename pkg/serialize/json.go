package serialize

import "encoding/json"

// JSONValue is one argument of a JSON-encoded sequence, decoded on demand.
type JSONValue json.RawMessage

// DecodeInto unmarshals the value into v.
func (j JSONValue) DecodeInto(v any) error {
	return json.Unmarshal(j, v)
}

// MarshalJSON re-emits the original bytes.
func (j JSONValue) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

type jsonSerializer struct{}

// JSON returns a serializer that encodes the argument sequence as a JSON array.
func JSON() Serializer { return jsonSerializer{} }

func (jsonSerializer) Serialize(args []any) ([]byte, error) {
	if args == nil {
		args = []any{}
	}
	return json.Marshal(args)
}

func (jsonSerializer) Deserialize(wire []byte) ([]any, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(wire, &raws); err != nil {
		return nil, err
	}
	out := make([]any, len(raws))
	for i, raw := range raws {
		out[i] = JSONValue(raw)
	}
	return out, nil
}
