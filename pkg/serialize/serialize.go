// Package serialize implements the optional payload transformation applied to
// every argument sequence that crosses the process boundary.
package serialize

import (
	"errors"
	"fmt"
	"reflect"
)

const logPrefix = "serialize:serialize"

// ErrTypeMismatch is returned when an argument cannot be converted to the
// declared payload type.
var ErrTypeMismatch = errors.New("payload type mismatch")

// Serializer packs a whole argument sequence into one wire value and back.
// Deserialize(Serialize(args)) must restore args; the adapter does not check it.
type Serializer interface {
	Serialize(args []any) ([]byte, error)
	Deserialize(wire []byte) ([]any, error)
}

// Raw is an argument whose decoding is deferred until the receiver knows the
// declared payload type.
type Raw interface {
	DecodeInto(v any) error
}

// Error reports a serialization failure on one channel.
type Error struct {
	Op      string
	Channel string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s - %s on %q: %v", logPrefix, e.Op, e.Channel, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Adapter applies an optional Serializer. A nil Adapter, or one built without
// a serializer, passes arguments through untouched.
type Adapter struct {
	s Serializer
}

// NewAdapter returns an adapter for s; s may be nil.
func NewAdapter(s Serializer) *Adapter {
	return &Adapter{s: s}
}

// Enabled reports whether a serializer is configured.
func (a *Adapter) Enabled() bool {
	return a != nil && a.s != nil
}

// Encode packs args into a single wire argument.
func (a *Adapter) Encode(channel string, args []any) ([]any, error) {
	if !a.Enabled() {
		return args, nil
	}
	wire, err := a.s.Serialize(args)
	if err != nil {
		return nil, &Error{Op: "serialize", Channel: channel, Err: err}
	}
	return []any{wire}, nil
}

// Decode restores the argument sequence from the first wire argument.
func (a *Adapter) Decode(channel string, args []any) ([]any, error) {
	if !a.Enabled() {
		return args, nil
	}
	if len(args) == 0 {
		return nil, &Error{Op: "deserialize", Channel: channel, Err: errors.New("missing wire argument")}
	}
	wire, err := toWire(args[0])
	if err != nil {
		return nil, &Error{Op: "deserialize", Channel: channel, Err: err}
	}
	out, err := a.s.Deserialize(wire)
	if err != nil {
		return nil, &Error{Op: "deserialize", Channel: channel, Err: err}
	}
	return out, nil
}

func toWire(v any) ([]byte, error) {
	switch w := v.(type) {
	case []byte:
		return w, nil
	case string:
		return []byte(w), nil
	case Raw:
		var b []byte
		if err := w.DecodeInto(&b); err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: wire argument is %T", ErrTypeMismatch, v)
	}
}

// Convert recovers a typed payload from one delivered argument. Raw values are
// decoded, other values of the right type pass through, and nil yields the
// zero value.
func Convert[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	if r, ok := v.(Raw); ok {
		// An interface T would accept the encoded value itself.
		if t, ok := v.(T); ok && reflect.TypeOf((*T)(nil)).Elem().Kind() != reflect.Interface {
			return t, nil
		}
		var out T
		if err := r.DecodeInto(&out); err != nil {
			return zero, fmt.Errorf("%w: %v", ErrTypeMismatch, err)
		}
		return out, nil
	}
	if t, ok := v.(T); ok {
		return t, nil
	}
	return zero, fmt.Errorf("%w: have %T, want %T", ErrTypeMismatch, v, zero)
}
