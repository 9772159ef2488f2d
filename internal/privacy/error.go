package privacy

// SanitizedError reports a scrubbed message while Unwrap still yields the
// original error for errors.Is and errors.As.
type SanitizedError struct {
	err error
	msg string
}

func (e *SanitizedError) Error() string { return e.msg }

func (e *SanitizedError) Unwrap() error { return e.err }

// WrapError scrubs the message of err with ScrubMessage. A nil err stays nil.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &SanitizedError{err: err, msg: ScrubMessage(err.Error())}
}
