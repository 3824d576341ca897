package agent

// RunError reports a run that ended with a terminal error event.
type RunError struct {
	Message string
}

func (e *RunError) Error() string {
	return e.Message
}
