// Package delivery implements the message delivery engine.
//
// # Send path
//
// SendMessage persists the message as Sent before anything is emitted, then:
//
//  1. confirms with message_sent to the originating connection (mirrored to
//     the sender's other connections)
//  2. delivers: status advanced to Delivered, message_delivered to the
//     sender, then new_message to every live recipient connection. The
//     recipient cannot answer with mark_read before the sender holds
//     Delivered.
//  3. for the bot identity, asks the Responder for a reply, marks the
//     original Read (message_read to the sender) and delivers the reply
//     through the same deliver primitive
//
// Offline recipients leave the message in Sent for later retrieval. A message
// already moved past Delivered by a concurrent read is fanned out with its
// stored status and no second message_delivered.
//
// # Failure isolation
//
// A connection that cannot accept an event is logged and counted; its
// siblings still receive the event and the persisted status still advances.
// Store failures produce an error event for the originating connection only.
//
// # Other events
//
//   - MarkRead: conditional update restricted to the recipient, then a
//     read receipt to the sender's live connections
//   - Typing: relayed to the recipient's live connections, never persisted
//   - OnlineStatus: answered from the presence registry
package delivery
