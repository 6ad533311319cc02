package model

// Package model defines domain data structures shared across the app: download
// jobs, lifecycle states, output formats, and the failure taxonomy. Structures
// are designed for snapshot-based reads and explicit state transitions.
