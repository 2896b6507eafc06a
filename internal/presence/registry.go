// ABOUTME: Presence registry mapping identities to their live connection handles
// ABOUTME: Lock-guarded maps with snapshot reads; never held across I/O

package presence

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/2389/ease-gateway/internal/events"
)

// Handle is one live connection bound to an identity.
type Handle interface {
	// ID uniquely identifies the connection.
	ID() string
	// Identity is the authenticated identity the connection is bound to.
	Identity() string
	// Send queues an outbound event for the client. It must not block on the
	// network.
	Send(ev events.Outbound) error
}

// Registry is the single source of truth for "is this identity online".
type Registry struct {
	mu         sync.RWMutex
	byIdentity map[string]map[string]Handle // identity -> handleID -> handle
	byHandle   map[string]string            // handleID -> identity
	logger     *slog.Logger
}

// NewRegistry creates an empty registry. Pass nil logger for default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byIdentity: make(map[string]map[string]Handle),
		byHandle:   make(map[string]string),
		logger:     logger.With("component", "presence"),
	}
}

// Register adds h to identity's connection set. Registering a handle that is
// already present is a no-op. It reports whether identity went from offline
// to online.
func (r *Registry) Register(identity string, h Handle) bool {
	id := h.ID()

	r.mu.Lock()
	if prev, ok := r.byHandle[id]; ok {
		r.mu.Unlock()
		if prev != identity {
			r.logger.Warn("handle already registered to another identity",
				"session_id", id,
				"identity", prev,
				"requested", identity)
		}
		return false
	}

	set, ok := r.byIdentity[identity]
	if !ok {
		set = make(map[string]Handle)
		r.byIdentity[identity] = set
	}
	set[id] = h
	r.byHandle[id] = identity
	count := len(set)
	r.mu.Unlock()

	r.logger.Debug("handle registered",
		"identity", identity,
		"session_id", id,
		"handles", count)

	return !ok
}

// Deregister removes the handle from whichever identity holds it. It returns
// that identity and whether it just went offline. Unknown handles are a no-op.
func (r *Registry) Deregister(handleID string) (identity string, wentOffline bool) {
	r.mu.Lock()
	identity, ok := r.byHandle[handleID]
	if !ok {
		r.mu.Unlock()
		return "", false
	}
	delete(r.byHandle, handleID)

	set := r.byIdentity[identity]
	delete(set, handleID)
	remaining := len(set)
	if remaining == 0 {
		delete(r.byIdentity, identity)
	}
	r.mu.Unlock()

	r.logger.Debug("handle deregistered",
		"identity", identity,
		"session_id", handleID,
		"handles", remaining)

	return identity, remaining == 0
}

// IsOnline reports whether identity has at least one live handle.
func (r *Registry) IsOnline(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity[identity]) > 0
}

// HandlesFor returns a snapshot of identity's live handles, or nil when offline.
// Order is stable across calls for the same set.
func (r *Registry) HandlesFor(identity string) []Handle {
	r.mu.RLock()
	set := r.byIdentity[identity]
	if len(set) == 0 {
		r.mu.RUnlock()
		return nil
	}
	out := make([]Handle, 0, len(set))
	for _, h := range set {
		out = append(out, h)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// OnlineCount returns the number of identities currently online.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity)
}

// HandleCount returns the number of live handles across all identities.
func (r *Registry) HandleCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byHandle)
}

// Online returns the identities currently online, sorted.
func (r *Registry) Online() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.byIdentity))
	for identity := range r.byIdentity {
		out = append(out, identity)
	}
	r.mu.RUnlock()

	sort.Strings(out)
	return out
}
