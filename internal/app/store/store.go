/*
Package store holds the shared mutable state of the system: Users, Cars,
Rentals, and the live connection registry.

This file defines the Store contract implemented by the in-memory store and
the Postgres-backed store (internal/app/db). All operations are atomic with
respect to each other; cross-entity rental transitions (Car status + Rental
row + User.activeRentalId) are applied as a single step so concurrent
handlers never observe a Car mid-transition. Absence is a normal condition
reported through sentinel errors, not a failure.
*/
package store

import (
	"context"
	"errors"

	"carshare/internal/app/model"
)

// Sentinel results checked by handlers with errors.Is.
var (
	// ErrNotFound reports that the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCarUnavailable reports that the car is not AVAILABLE at commit time.
	ErrCarUnavailable = errors.New("car is not available")

	// ErrUserHasActiveRental reports that the user already holds an active rental.
	ErrUserHasActiveRental = errors.New("user already has an active rental")
)

// Conn is a live duplex channel capable of accepting outbound frames.
// The session layer implements it; the store never sees transport types.
type Conn interface {
	// Enqueue queues an encoded envelope for delivery. It returns an error
	// when the connection can no longer accept frames.
	Enqueue(data []byte) error

	// Kick closes the connection, e.g. when a newer connection replaces it.
	Kick(reason string)
}

// Store is the entity store contract. Implementations must serialize all
// operations internally; handler code never sees raw shared maps.
type Store interface {
	// GetUser returns the user by server-assigned id.
	GetUser(ctx context.Context, id string) (model.User, error)

	// CreateUser assigns a fresh id to the user, binds it to the given
	// connection id (last registration wins), and stores it.
	CreateUser(ctx context.Context, u model.User, connectionID string) (model.User, error)

	// UpdateUserLocation moves the user to the given location.
	UpdateUserLocation(ctx context.Context, userID string, loc model.Location) error

	// GetCar returns the car by VIN.
	GetCar(ctx context.Context, vin string) (model.Car, error)

	// PutCar inserts or replaces a car. Used for fleet seeding.
	PutCar(ctx context.Context, c model.Car) error

	// AvailableCars returns every car with status AVAILABLE.
	AvailableCars(ctx context.Context) ([]model.Car, error)

	// SetTelematicsLink binds the connection id as the authoritative
	// telematics link for the VIN. ErrNotFound when the car is unknown.
	SetTelematicsLink(ctx context.Context, vin, connectionID string) error

	// GetRentalByUser returns the user's active rental, ErrNotFound when none.
	GetRentalByUser(ctx context.Context, userID string) (model.Rental, error)

	// CreateRental atomically transitions the car to RENTED, creates the
	// rental, and records it as the user's active rental. It re-validates
	// availability and the one-active-rental-per-user invariant at commit
	// time, so exactly one of two racing starts for the same VIN succeeds.
	CreateRental(ctx context.Context, userID, vin string) (model.Rental, model.Car, error)

	// CloseRental atomically stamps endedAt on the rental, returns the car
	// to AVAILABLE, and clears the user's active rental.
	CloseRental(ctx context.Context, rentalID string) (model.Rental, model.Car, error)

	// Counts returns the number of users and cars, for health reporting.
	Counts(ctx context.Context) (users, cars int, err error)

	// BindConnection maps an opaque client id to a live connection.
	// A previous connection under the same id is kicked and replaced.
	BindConnection(clientID string, conn Conn)

	// DropConnection removes the client id from the registry, forgets any
	// user binding, and clears the telematics link of any car whose link
	// equals the id. Car and Rental state is otherwise untouched.
	// When conn is non-nil the drop only applies if that exact connection
	// is still the one bound, so a replaced connection's late cleanup never
	// evicts its successor.
	DropConnection(clientID string, conn Conn)

	// ConnectionOf returns the live connection for the client id, if any.
	ConnectionOf(clientID string) (Conn, bool)

	// UserByConnection returns the user registered on the given connection,
	// ErrNotFound when the connection carries no registered user.
	UserByConnection(ctx context.Context, clientID string) (model.User, error)
}
