package commsutil

import (
	"encoding/json"

	"github.com/morezero/typed-ipc/pkg/serialize"
)

// EncodePayload encodes a single COMMS payload: a reply envelope, a result
// value or a manifest.
func EncodePayload(v any) ([]byte, error) {
	return json.Marshal(v)
}

// DecodePayload reverses EncodePayload into v.
func DecodePayload(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// EncodeArgs frames an argument sequence as a JSON array.
func EncodeArgs(args []any) ([]byte, error) {
	if args == nil {
		args = []any{}
	}
	return json.Marshal(args)
}

// DecodeArgs reverses EncodeArgs. Each element stays undecoded until the
// receiver converts it to its declared type.
func DecodeArgs(data []byte) ([]any, error) {
	if len(data) == 0 {
		return []any{}, nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, err
	}
	out := make([]any, len(raws))
	for i, raw := range raws {
		out[i] = serialize.JSONValue(raw)
	}
	return out, nil
}
