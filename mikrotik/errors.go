package mikrotik

import "errors"

var (
	// ErrConnectionTimeout means the appliance did not accept a connection
	// before the deadline.
	ErrConnectionTimeout = errors.New("mikrotik: connection timed out")

	// ErrCommandTimeout means the appliance accepted the connection but did
	// not reply to the command before the deadline.
	ErrCommandTimeout = errors.New("mikrotik: command timed out")

	// ErrCommandFailure means the appliance answered with an explicit error
	// (a !trap or !fatal reply).
	ErrCommandFailure = errors.New("mikrotik: command failed")
)
