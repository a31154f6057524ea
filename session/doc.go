// Package session houses concrete implementations of core.SessionStore and
// the Recorder that keeps a session's history in sync with the bus.
//
// The interface itself lives in the core package so higher level packages
// (engine, server) never depend on a concrete storage backend. Only the
// wiring layer decides which implementation to instantiate:
//
//   - InMemoryStore: process local, the default
//   - SQLiteStore: durable, one row per message in a WAL-mode database
//
// Recorder subscribes to the bus and appends the messages of every primary
// agent bound to a session: the user task, the model's responses and the
// tool results. Each append is announced with a MessagesAdd event.
package session
