package assistant

import (
	"errors"
	"fmt"

	"github.com/teemow/calendarassist/internal/llm"
)

var (
	// ErrInvalidInput is returned when a required field is empty.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyGeneration is returned when the model produced no text.
	ErrEmptyGeneration = errors.New("language model returned no text")
)

// CostExceededError reports an answer discarded by the cost guard.
type CostExceededError struct {
	Cost  float64
	Limit float64
	Usage llm.Usage
}

// Error implements the error interface
func (e *CostExceededError) Error() string {
	return fmt.Sprintf("request cost ($%.4f) exceeds maximum allowed cost ($%.2f). Please try a simpler question", e.Cost, e.Limit)
}
