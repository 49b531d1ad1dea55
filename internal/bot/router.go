package bot

import (
	"fmt"
	"strings"
	"sync"

	"mangabot/internal/logger"
	"mangabot/internal/transport"
)

// Router filters raw transport events down to authorized commands and
// hands them to the executor. It also tracks the bot's own identifier,
// learned from event envelopes, for group mention detection.
type Router struct {
	gate *Gate
	exec *Executor

	mu     sync.RWMutex
	selfID string
}

// NewRouter builds a Router over the gate and executor
func NewRouter(gate *Gate, exec *Executor) *Router {
	return &Router{gate: gate, exec: exec}
}

// SelfID returns the bot's own identifier, or "" while still unknown
func (r *Router) SelfID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selfID
}

func (r *Router) learnSelfID(id string) {
	if id == "" {
		return
	}
	r.mu.Lock()
	changed := r.selfID != id
	r.selfID = id
	r.mu.Unlock()
	if changed {
		logger.Infof("Router: bot identifier is %s", id)
	}
}

// HandleEvent is the transport callback. Commands run on their own
// goroutine so a slow reply never stalls the transport's read loop.
func (r *Router) HandleEvent(ev transport.Event) {
	r.learnSelfID(ev.SelfID)

	if ev.PostType != transport.PostMsg {
		return
	}

	switch ev.MessageType {
	case transport.MsgPrivate:
		if !r.gate.Allow(ev.UserID, "", true) {
			return
		}
	case transport.MsgGroup:
		if !r.gate.Allow(ev.UserID, ev.GroupID, false) {
			return
		}

		stripped, mentioned := r.stripMention(ev.RawMessage)
		if !mentioned {
			return
		}
		ev.RawMessage = stripped
	default:
		return
	}

	go r.exec.Execute(ev)
}

// stripMention removes the bot's own mention from a group message and
// reports whether one was present. When the bot's identifier is still
// unknown the message is dropped: answering every group message on a
// guess would be worse than missing one.
func (r *Router) stripMention(raw string) (string, bool) {
	self := r.SelfID()
	if self == "" {
		logger.Warnf("Router: bot identifier unknown, ignoring group message")
		return "", false
	}

	mentions := []string{
		fmt.Sprintf("[CQ:at,qq=%s]", self),
		"@" + self,
	}

	found := false
	for _, m := range mentions {
		if strings.Contains(raw, m) {
			raw = strings.ReplaceAll(raw, m, " ")
			found = true
		}
	}
	if !found {
		return "", false
	}
	return strings.TrimSpace(raw), true
}
