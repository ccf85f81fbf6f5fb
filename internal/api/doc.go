// Package api provides the REST client for the chat server's history endpoint.
//
// Endpoint:
//   - GET /rooms/{roomId}/messages, returning the room's messages oldest first
//
// The session uses it to rebuild a room view after joining or reconnecting.
// Live traffic goes over STOMP and is handled by the session package.
package api
