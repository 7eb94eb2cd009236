// Package schema declares cross-process channels: descriptors, the nested
// schema tree that namespaces them, and the resolver that derives wire names.
package schema

import "fmt"

// Direction is the interaction pattern of a channel.
type Direction int

const (
	directionUnknown Direction = iota
	// RendererToMainRequest: renderer asks, main answers exactly once.
	RendererToMainRequest
	// RendererToMainSignal: renderer notifies, main reacts, no response value.
	RendererToMainSignal
	// MainToRendererSignal: main notifies, renderer reacts, no response value.
	MainToRendererSignal
)

func (d Direction) String() string {
	switch d {
	case RendererToMainRequest:
		return "renderer-to-main-request"
	case RendererToMainSignal:
		return "renderer-to-main-signal"
	case MainToRendererSignal:
		return "main-to-renderer-signal"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ParseDirection is the inverse of Direction.String.
func ParseDirection(s string) (Direction, error) {
	for _, d := range []Direction{RendererToMainRequest, RendererToMainSignal, MainToRendererSignal} {
		if d.String() == s {
			return d, nil
		}
	}
	return directionUnknown, fmt.Errorf("%s - unknown direction %q", logPrefix, s)
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// RendererOp is the operation a descriptor binds on the renderer side.
type RendererOp int

const (
	rendererOpUnknown RendererOp = iota
	// RendererInvoke sends a request and waits for the response.
	RendererInvoke
	// RendererSend is a fire-and-forget send to main.
	RendererSend
	// RendererOn registers a persistent reactor.
	RendererOn
	// RendererOnce registers a single-shot reactor.
	RendererOnce
)

func (o RendererOp) String() string {
	switch o {
	case RendererInvoke:
		return "invoke"
	case RendererSend:
		return "send"
	case RendererOn:
		return "on"
	case RendererOnce:
		return "once"
	default:
		return fmt.Sprintf("renderer-op(%d)", int(o))
	}
}

// MainOp is the operation a descriptor binds on the main side.
type MainOp int

const (
	mainOpUnknown MainOp = iota
	// MainHandle registers a persistent responder.
	MainHandle
	// MainHandleOnce registers a responder that deregisters after one request.
	MainHandleOnce
	// MainOn registers a persistent reactor.
	MainOn
	// MainOnce registers a single-shot reactor.
	MainOnce
	// MainSendTo pushes to one renderer.
	MainSendTo
)

func (o MainOp) String() string {
	switch o {
	case MainHandle:
		return "handle"
	case MainHandleOnce:
		return "handleOnce"
	case MainOn:
		return "on"
	case MainOnce:
		return "once"
	case MainSendTo:
		return "sendTo"
	default:
		return fmt.Sprintf("main-op(%d)", int(o))
	}
}
