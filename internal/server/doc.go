// Package server implements the WebSocket transport and HTTP surface of the
// room chat relay.
//
// The implementation is organized into specialized files for the hub, clients,
// routing, HTTP handlers, origin checks and rate limiting. Room semantics live
// in the chat package; this package only knows how to reach connections.
package server
