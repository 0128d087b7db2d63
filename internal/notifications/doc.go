// Package notifications posts job outcomes to an ntfy topic.
//
// The Relay subscribes to the progress hub and turns terminal events into
// notifications: every failed job, and every completed job that leaves its
// file without a pending target (the requested stage was reached). When no
// topic is configured NewNotifier returns a no-op implementation and the
// daemon does not start a relay.
package notifications
