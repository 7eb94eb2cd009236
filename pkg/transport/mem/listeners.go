package mem

import (
	"sync"
	"sync/atomic"

	"github.com/morezero/typed-ipc/pkg/transport"
)

type listener struct {
	h       transport.Handler
	once    bool
	removed atomic.Bool
}

// listeners is the per-endpoint listener list, keyed by channel.
type listeners struct {
	mu        sync.Mutex
	byChannel map[string][]*listener
}

func (ls *listeners) add(channel string, h transport.Handler, once bool) *listener {
	l := &listener{h: h, once: once}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.byChannel == nil {
		ls.byChannel = make(map[string][]*listener)
	}
	ls.byChannel[channel] = append(ls.byChannel[channel], l)
	return l
}

func (ls *listeners) remove(channel string, target *listener) {
	target.removed.Store(true)
	ls.mu.Lock()
	defer ls.mu.Unlock()
	list := ls.byChannel[channel]
	for i, l := range list {
		if l == target {
			ls.byChannel[channel] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(ls.byChannel[channel]) == 0 {
		delete(ls.byChannel, channel)
	}
}

func (ls *listeners) removeAll(channel string) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for _, l := range ls.byChannel[channel] {
		l.removed.Store(true)
	}
	delete(ls.byChannel, channel)
}

// claim snapshots the listeners registered right now. Once-listeners are
// detached here so that no later message can reach them.
func (ls *listeners) claim(channel string) []*listener {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	list := ls.byChannel[channel]
	if len(list) == 0 {
		return nil
	}
	out := make([]*listener, len(list))
	copy(out, list)

	kept := list[:0:0]
	for _, l := range list {
		if !l.once {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		delete(ls.byChannel, channel)
	} else {
		ls.byChannel[channel] = kept
	}
	return out
}

func (ls *listeners) count(channel string) int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return len(ls.byChannel[channel])
}

// dispatch runs claimed listeners, skipping any torn down after the claim.
// A panicking listener does not keep the others from running.
func dispatch(claimed []*listener, ev transport.Event, args []any) {
	for _, l := range claimed {
		if l.removed.Load() {
			continue
		}
		h := l.h
		runSafely(func() { h(ev, args) })
	}
}
