package future

// Result holds the outcome of a computation: a value or an error, never both.
type Result[T any] struct {
	Value T
	Error error
}

// IsSuccess returns true if the result carries no error.
func (r Result[T]) IsSuccess() bool {
	return r.Error == nil
}

// Get returns the value and error. On failure the value is always the zero value.
func (r Result[T]) Get() (T, error) { //nolint:ireturn
	if r.Error != nil {
		var zero T

		return zero, r.Error
	}

	return r.Value, nil
}
