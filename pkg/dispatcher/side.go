package dispatcher

import (
	"fmt"
	"strings"

	"github.com/morezero/typed-ipc/pkg/schema"
)

// Side is the process a binding runs in.
type Side int

const (
	sideUnknown Side = iota
	// SideMain is the privileged process.
	SideMain
	// SideRenderer is a sandboxed process.
	SideRenderer
)

func (s Side) String() string {
	switch s {
	case SideMain:
		return "main"
	case SideRenderer:
		return "renderer"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// ParseSide parses "main" or "renderer".
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "main":
		return SideMain, nil
	case "renderer":
		return SideRenderer, nil
	}
	return sideUnknown, &ConfigError{Side: sideUnknown, Reason: fmt.Sprintf("unknown side %q", s)}
}

// ConfigError is a binding that cannot exist: an unknown side, a descriptor
// whose operation has no meaning on the side, or a missing transport. It is
// returned when the binding is built, never when it is used.
type ConfigError struct {
	Wire       string
	Side       Side
	Descriptor schema.Descriptor
	Reason     string
}

func (e *ConfigError) Error() string {
	if e.Wire == "" {
		return fmt.Sprintf("%s - configuration error: %s", logPrefix, e.Reason)
	}
	return fmt.Sprintf("%s - configuration error on %q (side=%s direction=%s): %s",
		logPrefix, e.Wire, e.Side, e.Descriptor.Direction, e.Reason)
}
