// Package testutil contains helpers shared by package tests: an event
// Recorder attached to a bus as a wildcard subscriber and a fluent builder
// for processor responses. They are not intended for production usage.
package testutil
