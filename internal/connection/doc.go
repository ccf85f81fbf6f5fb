// Package connection implements the transport adapter.
//
// A Client owns one WebSocket connection to the chat server and speaks STOMP
// over it:
//   - Connect dials and completes the CONNECT/CONNECTED handshake
//   - Send, Subscribe and Unsubscribe write single frames (fire-and-forget)
//   - inbound frames, heart-beats included, are delivered on Frames()
//   - a read failure is reported once on Errors()
//
// A Client is single-use: after Close it cannot be reconnected. The session
// creates a fresh Client for every connection attempt.
package connection
