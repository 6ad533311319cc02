package store

// Package store holds the in-memory table of all download jobs. It is the
// only shared mutable structure in the app: every read returns a snapshot and
// every write goes through a method that enforces the lifecycle rules
// (monotonic percent, terminal-state freeze, set-once cancel flag).
