// Package presence tracks which identities currently hold live connections.
//
// # Registry
//
// Registry maps an identity to the set of its connection handles. An identity
// is online exactly when that set is non-empty; the entry is removed the
// moment its last handle deregisters.
//
//	reg := presence.NewRegistry(logger)
//	online := reg.Register("alice@example.com", handle) // true on first device
//	handles := reg.HandlesFor("alice@example.com")      // snapshot
//	identity, offline := reg.Deregister(handle.ID())
//
// The registry lock guards only the in-memory maps. HandlesFor returns a
// copy, so callers emit to handles without holding any registry lock.
package presence
