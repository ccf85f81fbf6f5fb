// Package heartbeat tracks connection liveness.
//
// Any inbound traffic refreshes the last-seen timestamp via Touch. While
// started, the Monitor polls on a fixed interval and fires its timeout
// callback once when the elapsed time since the last frame exceeds the
// configured threshold. The callback fires at most once per Start.
package heartbeat
