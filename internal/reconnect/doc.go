// Package reconnect implements bounded exponential backoff for the chat
// session.
//
// The delay before attempt k is min(base*2^(k-1), cap). The Controller
// counts attempts, owns at most one pending retry timer, and hands each
// timer a token so that a callback racing with Cancel can detect that it
// has been superseded.
package reconnect
