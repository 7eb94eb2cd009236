package serialize

import (
	cbor "github.com/fxamacker/cbor/v2"
)

// CBORValue is one argument of a CBOR-encoded sequence, decoded on demand.
type CBORValue struct {
	dm  cbor.DecMode
	raw cbor.RawMessage
}

// DecodeInto unmarshals the value into v.
func (c CBORValue) DecodeInto(v any) error {
	return c.dm.Unmarshal(c.raw, v)
}

// MarshalCBOR re-emits the original bytes.
func (c CBORValue) MarshalCBOR() ([]byte, error) {
	return c.raw, nil
}

type cborSerializer struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// CBOR returns a serializer producing deterministic (canonical) CBOR arrays.
func CBOR() (Serializer, error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, err
	}
	return cborSerializer{enc: em, dec: dm}, nil
}

func (c cborSerializer) Serialize(args []any) ([]byte, error) {
	if args == nil {
		args = []any{}
	}
	return c.enc.Marshal(args)
}

func (c cborSerializer) Deserialize(wire []byte) ([]any, error) {
	var raws []cbor.RawMessage
	if err := c.dec.Unmarshal(wire, &raws); err != nil {
		return nil, err
	}
	out := make([]any, len(raws))
	for i, raw := range raws {
		out[i] = CBORValue{dm: c.dec, raw: raw}
	}
	return out, nil
}
