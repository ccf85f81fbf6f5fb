// Package stomp implements the subset of the STOMP 1.2 framing used by the
// chat server: the CONNECT handshake, SEND, SUBSCRIBE, UNSUBSCRIBE and
// DISCONNECT from the client, and CONNECTED, MESSAGE, RECEIPT and ERROR from
// the server. Frames travel one per WebSocket text message; a message made of
// end-of-line characters only is a heart-beat.
package stomp
