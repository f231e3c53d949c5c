package manager

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{}

func (e tooBusyError) Error() string { return "too busy: session limit reached" }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	_, ok := err.(tooBusyError)
	return ok
}

type sessionNotFoundError struct{ id string }

func (e sessionNotFoundError) Error() string { return "session not found: " + e.id }

// IsSessionNotFound reports whether err indicates an unknown session id.
func IsSessionNotFound(err error) bool {
	_, ok := err.(sessionNotFoundError)
	return ok
}

type providerNotFoundError struct{ kind string }

func (e providerNotFoundError) Error() string { return "provider not configured: " + e.kind }

// IsProviderNotFound reports whether err names an unconfigured provider kind.
func IsProviderNotFound(err error) bool {
	_, ok := err.(providerNotFoundError)
	return ok
}

type invalidRequestError struct{ msg string }

func (e invalidRequestError) Error() string { return e.msg }

// IsInvalidRequest reports whether err indicates a malformed request (return 400).
func IsInvalidRequest(err error) bool {
	_, ok := err.(invalidRequestError)
	return ok
}

type closedError struct{}

func (closedError) Error() string { return "manager is shutting down" }

// IsClosed reports whether err indicates the manager no longer accepts work.
func IsClosed(err error) bool {
	_, ok := err.(closedError)
	return ok
}
