/*
Package store holds the shared mutable state of the system: Users, Cars,
Rentals, and the live connection registry.

This file defines the connection registry shared by both store
implementations. It maps opaque client identifiers to live duplex channels
and, for registered users, to their user id. The registry does not
distinguish rider connections from vehicle telematics links; the
orchestrator does. Connections are inherently process-local, so the
Postgres-backed store uses this same in-memory registry.
*/
package store

import (
	"sync"

	"github.com/rs/zerolog"
)

// kickReplacedReason is sent to a connection replaced by a newer one
// registered under the same client id.
const kickReplacedReason = "Session replaced by new connection."

// Registry is the process-local connection table, synchronized
// independently of entity state.
type Registry struct {
	mu sync.RWMutex

	// conns maps client id to the live duplex channel.
	conns map[string]Conn

	// userByClient maps client id to registered user id.
	userByClient map[string]string

	logger zerolog.Logger
}

// NewRegistry constructs an empty connection registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		conns:        make(map[string]Conn),
		userByClient: make(map[string]string),
		logger:       logger,
	}
}

// BindConnection maps the client id to the connection, kicking a previous
// different connection bound under the same id (last registration wins).
func (r *Registry) BindConnection(clientID string, conn Conn) {
	r.mu.Lock()
	old, had := r.conns[clientID]
	r.conns[clientID] = conn
	r.mu.Unlock()

	if had && old != conn {
		r.logger.Warn().Str("client_id", clientID).Msg("Client id rebound. Kicking previous connection.")
		old.Kick(kickReplacedReason)
	}
}

// BindUser records the client id as carrying the given registered user.
func (r *Registry) BindUser(clientID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userByClient[clientID] = userID
}

// Drop forgets the connection and any user binding. When expect is non-nil
// the drop is skipped if a different connection is currently bound, so a
// replaced connection's late cleanup never evicts its successor. It reports
// whether the binding was actually removed.
func (r *Registry) Drop(clientID string, expect Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[clientID]
	if !ok {
		delete(r.userByClient, clientID)
		return false
	}
	if expect != nil && current != expect {
		r.logger.Debug().Str("client_id", clientID).Msg("Ignoring drop for stale connection.")
		return false
	}

	delete(r.conns, clientID)
	delete(r.userByClient, clientID)
	return true
}

// ConnectionOf returns the live connection for the client id, if any.
func (r *Registry) ConnectionOf(clientID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[clientID]
	return conn, ok
}

// UserIDByClient returns the user id registered on the client id, if any.
func (r *Registry) UserIDByClient(clientID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.userByClient[clientID]
	return userID, ok
}
