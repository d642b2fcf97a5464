package provider

import "errors"

var (
	// ErrUnavailable wraps every failure to obtain a chain from a source.
	ErrUnavailable = errors.New("data provider unavailable")
	ErrNotFound    = errors.New("no option chain for this symbol/expiry")
	ErrRateLimited = errors.New("rate limited by broker")
	ErrAuthFailed  = errors.New("broker authentication failed")
	ErrNoExpiries  = errors.New("no expiries found")
	ErrExhausted   = errors.New("replay data exhausted")
)
