package session

import "errors"

// Errors reported by Enqueue; both mean the connection is no longer usable
// for delivery and callers should drop it from the registry.
var (
	ErrConnClosed    = errors.New("connection closed")
	ErrSendQueueFull = errors.New("send queue full")
)
