package domain

import "errors"

var (
	// ErrAlreadyUnsubscribed is returned by a second Unsubscribe call.
	// Stop paths treat it as success.
	ErrAlreadyUnsubscribed = errors.New("subscription already released")

	// ErrNotRegistered means no daemon has registered yet.
	ErrNotRegistered = errors.New("daemon not registered")

	// ErrPermissionDenied is returned by host hooks that need a privilege the
	// process does not have (usage stats, process observation).
	ErrPermissionDenied = errors.New("permission denied")
)
