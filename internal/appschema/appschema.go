// Package appschema declares the channels shared by ipc-host and its renderers.
package appschema

import (
	"time"

	"github.com/morezero/typed-ipc/pkg/schema"
)

// AddArgs is the payload of math::add.
type AddArgs struct {
	A int `json:"a" cbor:"a"`
	B int `json:"b" cbor:"b"`
}

// SetupArgs is sent once by a renderer to open its session.
type SetupArgs struct {
	Title string `json:"title" cbor:"title"`
}

// Session is main's answer to app::setup.
type Session struct {
	ID        string `json:"id" cbor:"id"`
	Separator string `json:"separator" cbor:"separator"`
	Version   string `json:"version" cbor:"version"`
}

// LogEntry is forwarded from a renderer to main's log.
type LogEntry struct {
	Level   string `json:"level" cbor:"level"`
	Message string `json:"message" cbor:"message"`
}

// Paint reports a renderer's first paint.
type Paint struct {
	Elapsed time.Duration `json:"elapsed" cbor:"elapsed"`
}

// Tick is pushed to every ready renderer.
type Tick struct {
	Seq int       `json:"seq" cbor:"seq"`
	At  time.Time `json:"at" cbor:"at"`
}

// Schema holds the declarations; Tree places them.
type Schema struct {
	Ping       *schema.RequestDecl[string, string]
	Add        *schema.RequestDecl[AddArgs, int]
	Setup      *schema.RequestDecl[SetupArgs, Session]
	Log        *schema.SignalDecl[LogEntry]
	Ready      *schema.SignalDecl[struct{}]
	FirstPaint *schema.SignalDecl[Paint]
	Tick       *schema.PushDecl[Tick]
	Shutdown   *schema.PushDecl[string]
}

// New returns fresh declarations.
func New() *Schema {
	return &Schema{
		Ping:       schema.Request[string, string](),
		Add:        schema.Request[AddArgs, int](),
		Setup:      schema.RequestOnce[SetupArgs, Session](),
		Log:        schema.SignalToMain[LogEntry](),
		Ready:      schema.SignalToMain[struct{}](),
		FirstPaint: schema.SignalToMainOnce[Paint](),
		Tick:       schema.SignalToRenderer[Tick](),
		Shutdown:   schema.SignalToRendererOnce[string](schema.WithName("shutdown")),
	}
}

// Tree places the declarations under their namespaces.
func (s *Schema) Tree() schema.Branch {
	return schema.Branch{
		"app": schema.Branch{
			"ping":       s.Ping,
			"setup":      s.Setup,
			"log":        s.Log,
			"ready":      s.Ready,
			"firstPaint": s.FirstPaint,
			"shutdown":   s.Shutdown,
		},
		"math": schema.Branch{
			"add": s.Add,
		},
		"clock": schema.Branch{
			"tick": s.Tick,
		},
	}
}
