package record

import (
	"errors"
	"fmt"
)

// ErrEmptyDocument is returned when extraction is attempted on a
// document with no usable text.
var ErrEmptyDocument = errors.New("record: document contains no text")

// ErrMalformedExtraction is returned when a model's structured
// extraction output cannot be parsed into a record.
var ErrMalformedExtraction = errors.New("record: model returned malformed extraction output")

// ExtractionError wraps a failure of the extraction step with the
// source that produced it.
type ExtractionError struct {
	Source string // e.g. filename or "llm"
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("record: extraction from %s failed: %v", e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
