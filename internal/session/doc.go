// Package session implements the per-connection state machine.
//
// A Session starts Unauthenticated. Authenticate binds it to an identity,
// registers it with the presence registry and queues a connected event.
// Run then reads inbound frames one at a time, decodes them and hands them
// to the delivery engine, while a single writer goroutine drains the
// bounded outbound queue onto the transport. Any transport close moves the
// session to Closed and removes it from the registry.
//
// Outbound emission never blocks the caller: when the queue is full the
// emission fails with ErrSendBufferFull and the session is closed with a
// policy-violation status so the client can reconnect and re-sync.
package session
