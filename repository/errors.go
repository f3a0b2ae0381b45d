package repository

import "errors"

// ErrNotFound is the base of the not-found taxonomy; both sentinels below
// match it through errors.Is.
var ErrNotFound = errors.New("not found")

var (
	ErrBoardNotFound = wrap("board", ErrNotFound)
	ErrTaskNotFound  = wrap("task", ErrNotFound)
)

// ErrInvalidInput marks create/update payloads that name an unknown status or
// priority.
var ErrInvalidInput = errors.New("invalid input")

type wrappedErr struct {
	prefix string
	err    error
}

func wrap(prefix string, err error) error {
	return &wrappedErr{prefix: prefix, err: err}
}

func (w *wrappedErr) Error() string { return w.prefix + " " + w.err.Error() }
func (w *wrappedErr) Unwrap() error { return w.err }
