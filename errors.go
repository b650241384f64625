package ajaxform

import "errors"

// Sentinel errors for controller operations.
var (
	ErrInvalidArgument       = errors.New("ajaxform: invalid argument")
	ErrFileUploadUnsupported = errors.New("ajaxform: form contains a file field but the runtime cannot build multipart bodies")
	ErrSubmitInFlight        = errors.New("ajaxform: a submission is already in flight")
	ErrClosed                = errors.New("ajaxform: controller closed")
	ErrAlreadyBound          = errors.New("ajaxform: element already bound")
	ErrInvalidFormat         = errors.New("ajaxform: invalid response format")
	ErrResponseTooLarge      = errors.New("ajaxform: response body exceeds size limit")
)

// IsInvalidArgument checks if err is a construction argument error.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsConfigError checks if err is one of the fatal configuration errors that
// are reported to the developer instead of being rendered to the user.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidArgument) || errors.Is(err, ErrFileUploadUnsupported)
}
