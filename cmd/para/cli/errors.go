package cli

// SilentError wraps an error whose user-facing message has already been
// printed by the command that returned it, so main's top-level handler
// knows not to print it a second time. main checks errors.As against this
// type before falling back to printing err.Error() verbatim.
type SilentError struct {
	Err error
}

func (e *SilentError) Error() string { return e.Err.Error() }
func (e *SilentError) Unwrap() error { return e.Err }

// NewSilentError wraps err as a SilentError.
func NewSilentError(err error) *SilentError {
	return &SilentError{Err: err}
}
