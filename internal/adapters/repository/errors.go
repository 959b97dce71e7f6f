package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicateEvaluation = errors.New("evaluation slot already filled")
	ErrAlreadyFinal        = errors.New("action already in terminal state")
	ErrConflict            = errors.New("concurrent state change")
)
