package download

// Package download implements the core download pipeline on top of the
// external fetch tool. The Manager owns admission (strict FIFO under a
// configurable slot count), cancellation routing, and status reads; a Worker
// drives exactly one fetch process from Running to a terminal state.
