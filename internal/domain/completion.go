package domain

// CompletionRequest is a single prompt for the upstream language model.
type CompletionRequest struct {
	// Operation names the use case for logs and metrics (e.g. "analyze").
	Operation string

	// System is the instruction prompt.
	System string

	// User is the user message. Empty means only the system message is sent.
	User string

	// Temperature is the sampling temperature hint.
	Temperature float32

	// JSON asks the upstream to reply with a single JSON object.
	JSON bool
}
