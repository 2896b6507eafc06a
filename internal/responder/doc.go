// Package responder implements the bot that answers messages sent to the
// reserved bot identity.
//
// # Intents
//
// Messages are classified against an ordered intent list (greeting, goodbye,
// help, weather, time, reminder, math, name_query, thanks, how_are_you, joke)
// with a trailing fallback. The first matching intent wins. Intent packs can
// be loaded from TOML with LoadIntents.
//
// Responses may contain placeholders expanded at reply time:
//
//   - {time}: current UTC time as 15:04:05
//   - {name}: the bot's display name
//
// The math intent answers with the calculator result when the message
// contains a valid arithmetic expression; see package calc.
//
// # Memory
//
// Each user's recent exchanges are kept in a Memory bounded by history size,
// idle TTL and a maximum number of users (least recently active evicted).
//
// Bot.Reply never performs delivery. The delivery engine persists and routes
// the returned text.
package responder
