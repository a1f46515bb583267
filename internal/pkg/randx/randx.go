/*
Package randx provides functions for generating unique identifiers.

It is primarily used to generate UUID message ids for envelopes and
server-assigned entity ids for users and rentals.
*/
package randx

import "github.com/google/uuid"

// MessageID generates a standard UUID v4 string to serve as a unique identifier for a message.
func MessageID() string {
	return uuid.New().String()
}

// EntityID generates a standard UUID v4 string for server-assigned entity ids
// (users, rentals).
func EntityID() string {
	return uuid.New().String()
}
