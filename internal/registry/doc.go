// Package registry tracks live STOMP subscriptions for a session.
//
// Subscriptions are keyed by destination, so a destination is never
// subscribed twice: subscribing again tears the old subscription down
// first. Room switches and post-reconnect resubscription both go through
// SwitchRoom, which drops every room subscription before adding the new
// one.
package registry
