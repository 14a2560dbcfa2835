// Package gameserver dispatches client events to the room registry and
// produces their acknowledgements.
//
// The server is transport neutral. A frontend decodes a frame into an event
// name and raw JSON payload, calls Server.Handle, and writes back whatever
// acknowledgement it returns. Room events such as roomUpdate and roundData
// travel separately through each session's connection entity.
//
// Started rounds are archived through a RoundArchiver when one is configured.
// Archiving never blocks or fails a round.
package gameserver
