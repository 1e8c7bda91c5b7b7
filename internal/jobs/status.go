package jobs

// Status is the lifecycle state of a job. Jobs only ever move forward
// through the pipeline order, or into a terminal state.
type Status string

const (
	StatusPending         Status = "pending"
	StatusDownloading     Status = "downloading"
	StatusTranscribing    Status = "transcribing"
	StatusGeneratingNotes Status = "generating_notes"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
	StatusCancelled       Status = "cancelled"
)

// next maps each in-flight status to the single status that follows it.
var next = map[Status]Status{
	StatusPending:         StatusDownloading,
	StatusDownloading:     StatusTranscribing,
	StatusTranscribing:    StatusGeneratingNotes,
	StatusGeneratingNotes: StatusCompleted,
}

// Terminal reports whether s is an absorbing state.
func Terminal(s Status) bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Cancellable reports whether a job in status s may still be cancelled.
// Once transcription has started the job runs to completion.
func Cancellable(s Status) bool {
	return s == StatusPending || s == StatusDownloading
}

// CanTransition reports whether a job may move from one status to another.
// Allowed moves are: the next status in pipeline order, re-writing the
// current status (workers merge result fields under the status they already
// hold), and entering failed or cancelled from any non-terminal status.
func CanTransition(from, to Status) bool {
	if Terminal(from) {
		return false
	}
	if from == to {
		return true
	}
	if to == StatusFailed || to == StatusCancelled {
		return true
	}
	return next[from] == to
}

// Valid reports whether s is a known status value.
func Valid(s Status) bool {
	if Terminal(s) {
		return true
	}
	_, ok := next[s]
	return ok
}
