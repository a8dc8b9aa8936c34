package checkout

// Result is either a value or an error, discriminated by IsOk.
type Result[T any] struct {
	value T
	err   error
	ok    bool
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Err wraps a failure. A nil err is treated as an internal error.
func Err[T any](err error) Result[T] {
	if err == nil {
		err = &Error{Kind: KindInternal, Msg: "unknown error"}
	}
	return Result[T]{err: err}
}

// IsOk reports whether the result holds a value.
func (r Result[T]) IsOk() bool { return r.ok }

// Value returns the value; it is the zero value when !IsOk().
func (r Result[T]) Value() T { return r.value }

// Err returns the error; it is nil when IsOk().
func (r Result[T]) Err() error { return r.err }

// Unwrap returns the pair in (T, error) form.
func (r Result[T]) Unwrap() (T, error) { return r.value, r.err }
