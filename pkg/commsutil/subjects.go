package commsutil

import (
	"fmt"
	"strings"
)

// Default COMMS subject layout.
const (
	DefaultPrefix   = "ipc"
	SegmentMain     = "main"
	SegmentRenderer = "renderer"
	SegmentManifest = "manifest"
)

const hexDigits = "0123456789ABCDEF"

// ChannelToken turns a wire name into a single subject token. '%', '.', '*',
// '>' and control or space bytes are percent-encoded, so distinct names always
// map to distinct tokens.
func ChannelToken(channel string) string {
	n := 0
	for i := 0; i < len(channel); i++ {
		if needsEscape(channel[i]) {
			n++
		}
	}
	if n == 0 {
		return channel
	}
	var b strings.Builder
	b.Grow(len(channel) + 2*n)
	for i := 0; i < len(channel); i++ {
		c := channel[i]
		if !needsEscape(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0F])
	}
	return b.String()
}

func needsEscape(c byte) bool {
	switch c {
	case '%', '.', '*', '>':
		return true
	}
	return c <= ' ' || c == 0x7F
}

// BuildMainSubject builds the subject main listens on for channel.
func BuildMainSubject(prefix, channel string) string {
	return fmt.Sprintf("%s.%s.%s", prefixOrDefault(prefix), SegmentMain, ChannelToken(channel))
}

// BuildRendererSubject builds the subject one renderer listens on for channel.
func BuildRendererSubject(prefix, rendererID, channel string) string {
	return fmt.Sprintf("%s.%s.%s.%s", prefixOrDefault(prefix), SegmentRenderer, ChannelToken(rendererID), ChannelToken(channel))
}

// BuildManifestSubject builds the subject main answers manifest requests on.
func BuildManifestSubject(prefix string) string {
	return fmt.Sprintf("%s.%s", prefixOrDefault(prefix), SegmentManifest)
}

func prefixOrDefault(prefix string) string {
	if prefix == "" {
		return DefaultPrefix
	}
	return prefix
}
