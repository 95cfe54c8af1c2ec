package application

import "errors"

var (
	ErrNotFound    = errors.New("application not found")
	ErrStaleStatus = errors.New("application status changed concurrently")
)
