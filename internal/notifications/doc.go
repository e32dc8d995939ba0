// Package notifications delivers production events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Events cover run
// completion and failure; the workflow manager is the only publisher.
package notifications
