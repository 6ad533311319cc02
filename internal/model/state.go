package model

// JobState represents the lifecycle state of a download job
type JobState string

const (
	// StateQueued means the job is waiting in the admission queue
	StateQueued JobState = "Queued"

	// StateRunning means a worker is driving the job's fetch process
	StateRunning JobState = "Running"

	// StateCompleted means the fetch finished and the output file is verified
	StateCompleted JobState = "Completed"

	// StateFailed means the fetch terminated without a usable output
	StateFailed JobState = "Failed"

	// StateCancelled means the job was stopped by an explicit cancel request
	StateCancelled JobState = "Cancelled"
)

// String returns the string representation of JobState
func (s JobState) String() string {
	return string(s)
}

// IsTerminal returns true if no further transitions are possible from s
func (s JobState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}
