package spaced_repetition

import "errors"

// ErrInvalidGrade is returned when a grade outside Forget..Easy is supplied.
// Check with errors.Is.
var ErrInvalidGrade = errors.New("spaced_repetition: invalid grade")
