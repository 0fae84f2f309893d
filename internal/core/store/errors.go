package store

import (
	"errors"
	"fmt"

	"github.com/geolabel/conflator/internal/core/model"
)

// ErrUnknownItem is returned when an item identity does not exist in the
// loaded dataset.
var ErrUnknownItem = errors.New("unknown item")

// InvalidLabelError rejects a label outside the allowed set for the item's
// kind. Surfaced to the caller as a 4xx.
type InvalidLabelError struct {
	Label model.Label
}

func (e *InvalidLabelError) Error() string {
	return fmt.Sprintf("label '%s' must be one of: 'match', 'no_match', 'unsure'", e.Label)
}

// InvalidDiffError rejects a whole neighborhood diff atomically: nothing is
// applied when any part of it is invalid.
type InvalidDiffError struct {
	Reason string
}

func (e *InvalidDiffError) Error() string {
	return "invalid neighborhood diff: " + e.Reason
}
