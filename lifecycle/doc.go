// Package lifecycle
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Ownership and lifetime of messages, requests and sessions on a
// connection.
//
// A Message is one inbound read unit. It owns an arena holding its input
// buffer and every request parsed from it, and it is reclaimed when the
// last owner releases the arena. A Session is one outbound call awaiting
// a reply or a timeout; it owns its own arena and embeds one Request.
//
// Everything except arena reference counting is owned by the connection
// event loop. Code running elsewhere must re-post through Connection.Post
// before touching a Message, a Session or the output queue.
package lifecycle
