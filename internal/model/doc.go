// Package model defines shared data types used across the chat client.
//
// Conventions:
//   - Room IDs and usernames are opaque strings supplied by the caller
//   - Wire timestamps are ISO-8601 strings, kept as strings because the server
//     emits zone-less local date-times
//   - Destinations are STOMP destination paths built by the helpers in destinations.go
package model
