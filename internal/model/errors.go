package model

import "errors"

var (
	// Directory errors
	ErrUserNotFound = errors.New("user not found")

	// Store errors
	ErrRecordMalformed = errors.New("stored record is malformed")
)
