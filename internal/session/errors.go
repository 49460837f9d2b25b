package session

import "errors"

var (
	// ErrNotFound indicates that no usable session exists.
	ErrNotFound = errors.New("session not found")

	// ErrSessionCorrupt indicates that a session file exists but cannot be
	// decrypted or decoded. Load logs it and returns ErrNotFound instead.
	ErrSessionCorrupt = errors.New("session file is corrupt")

	// ErrInvalidKey indicates that the key file does not hold exactly 32 bytes.
	ErrInvalidKey = errors.New("session key file has invalid length")

	// ErrNilSession is returned when Save is called with a nil session.
	ErrNilSession = errors.New("session is nil")
)
