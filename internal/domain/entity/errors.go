package entity

import "errors"

var (
	// ErrCredentialMissing means no realtime API key is stored.
	ErrCredentialMissing = errors.New("realtime API key not found, set it with `navigator options set-key`")

	// ErrKeyNotFound is returned by a credential store for a key that was never set.
	ErrKeyNotFound = errors.New("key not found")

	// ErrTransportFailure covers handshake, channel and connection errors.
	ErrTransportFailure = errors.New("transport failure")

	// ErrTimeout is wrapped together with ErrTransportFailure when a bounded wait expires.
	ErrTimeout = errors.New("timed out")

	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid function arguments")
	ErrExecutorFailure  = errors.New("executor failed")
	ErrElementNotFound  = errors.New("element not found")
	ErrRateLimited      = errors.New("rate limited")

	// ErrNoActiveSession is returned when something must be sent but no session is Active.
	ErrNoActiveSession = errors.New("no active session")

	// ErrNotInjectable means voice control cannot run on the page URL.
	ErrNotInjectable = errors.New("page does not allow voice navigation")

	ErrNoTab = errors.New("no active tab")
)
