// Package router turns inbound STOMP frames into session events.
//
// Frames are classified by the subscription they arrived on: room topic
// frames become message_received events, per-user queue frames become
// notification events, and heartbeat acknowledgments only refresh
// liveness. Server ERROR frames and malformed payloads become error
// events. Parse failures never affect connection state.
package router
