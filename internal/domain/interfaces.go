package domain

import "context"

// Capability is a loaded, stateless inference function.
type Capability interface {
	// Name returns the capability this handle serves.
	Name() CapabilityName
	// MaxInputChars returns the input window limit in characters, or 0 if the provider does not know it.
	MaxInputChars() int
}

// QuestionAnswerer answers a question from a context passage.
type QuestionAnswerer interface {
	Capability
	// Answer returns the answer span and a confidence in [0,1].
	Answer(ctx context.Context, question, context string) (string, float64, error)
}

// Summarizer condenses a passage.
type Summarizer interface {
	Capability
	// Summarize returns a summary whose length lies between minLength and maxLength model tokens.
	Summarize(ctx context.Context, text string, minLength, maxLength int) (string, error)
}

// QuestionGenerator produces text from a prompt.
type QuestionGenerator interface {
	Capability
	// Generate returns generated text of at most maxLength model tokens.
	Generate(ctx context.Context, prompt string, maxLength int) (string, error)
}

// Extractor converts an uploaded blob to plain text.
type Extractor interface {
	Extract(ctx context.Context, blob []byte, declaredType, filename string) (string, error)
}

// OutcomeSink receives outcome records after each completed task.
type OutcomeSink interface {
	Report(ctx context.Context, outcome Outcome) error
}
