/*
Package store holds the shared mutable state of the system: Users, Cars,
Rentals, and the live connection registry.

This file defines the in-memory Store implementation, the default when no
DATABASE_URL is configured. A single mutex serializes entity access; the
expected scale is one process with a modest fleet, so coarse locking is not
a contention concern here.
*/
package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"carshare/internal/app/model"
	"carshare/internal/pkg/logx"
	"carshare/internal/pkg/randx"
)

// MemoryStore keeps all entities in process memory.
type MemoryStore struct {
	*Registry

	// mu protects users, cars and rentals as one unit, so cross-entity
	// rental transitions are a single atomic step.
	mu sync.Mutex

	users   map[string]model.User
	cars    map[string]model.Car
	rentals map[string]model.Rental

	logger zerolog.Logger
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	logger := logx.Logger().With().Str("component", "MemoryStore").Logger()

	return &MemoryStore{
		Registry: NewRegistry(logger),
		users:    make(map[string]model.User),
		cars:     make(map[string]model.Car),
		rentals:  make(map[string]model.Rental),
		logger:   logger,
	}
}

// GetUser returns the user by server-assigned id.
func (s *MemoryStore) GetUser(_ context.Context, id string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

// CreateUser assigns a fresh id, binds the connection id, and stores the user.
func (s *MemoryStore) CreateUser(_ context.Context, u model.User, connectionID string) (model.User, error) {
	u.ID = randx.EntityID()
	u.ConnectionID = connectionID
	u.ActiveRentalID = ""

	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()

	s.BindUser(connectionID, u.ID)

	s.logger.Info().Str("user_id", u.ID).Str("client_id", connectionID).Msg("User created.")
	return u, nil
}

// UpdateUserLocation moves the user to the given location.
func (s *MemoryStore) UpdateUserLocation(_ context.Context, userID string, loc model.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Location = loc
	s.users[userID] = u
	return nil
}

// GetCar returns the car by VIN.
func (s *MemoryStore) GetCar(_ context.Context, vin string) (model.Car, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cars[vin]
	if !ok {
		return model.Car{}, ErrNotFound
	}
	return c, nil
}

// PutCar inserts or replaces a car.
func (s *MemoryStore) PutCar(_ context.Context, c model.Car) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cars[c.VIN] = c
	return nil
}

// AvailableCars returns every car with status AVAILABLE.
func (s *MemoryStore) AvailableCars(_ context.Context) ([]model.Car, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	available := make([]model.Car, 0, len(s.cars))
	for _, c := range s.cars {
		if c.Status == model.StatusAvailable {
			available = append(available, c)
		}
	}
	return available, nil
}

// SetTelematicsLink binds the connection id as the telematics link for the VIN.
func (s *MemoryStore) SetTelematicsLink(_ context.Context, vin, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cars[vin]
	if !ok {
		return ErrNotFound
	}
	c.TelematicsConnectionID = connectionID
	s.cars[vin] = c
	return nil
}

// GetRentalByUser returns the user's active rental.
func (s *MemoryStore) GetRentalByUser(_ context.Context, userID string) (model.Rental, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok || u.ActiveRentalID == "" {
		return model.Rental{}, ErrNotFound
	}

	r, ok := s.rentals[u.ActiveRentalID]
	if !ok || !r.Active() {
		return model.Rental{}, ErrNotFound
	}
	return r, nil
}

// CreateRental atomically starts a rental. Availability and the
// one-active-rental-per-user invariant are re-validated under the lock, so
// of two racing starts for the same VIN exactly one succeeds.
func (s *MemoryStore) CreateRental(_ context.Context, userID, vin string) (model.Rental, model.Car, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return model.Rental{}, model.Car{}, ErrNotFound
	}
	if u.ActiveRentalID != "" {
		return model.Rental{}, model.Car{}, ErrUserHasActiveRental
	}

	c, ok := s.cars[vin]
	if !ok {
		return model.Rental{}, model.Car{}, ErrNotFound
	}
	if c.Status != model.StatusAvailable {
		return model.Rental{}, model.Car{}, ErrCarUnavailable
	}

	rental := model.Rental{
		ID:        randx.EntityID(),
		UserID:    userID,
		VIN:       vin,
		StartedAt: time.Now().UTC(),
	}

	c.Status = model.StatusRented
	c.RentedByUserID = userID
	u.ActiveRentalID = rental.ID

	s.rentals[rental.ID] = rental
	s.cars[vin] = c
	s.users[userID] = u

	s.logger.Info().Str("rental_id", rental.ID).Str("vin", vin).Str("user_id", userID).Msg("Rental started.")
	return rental, c, nil
}

// CloseRental atomically ends a rental.
func (s *MemoryStore) CloseRental(_ context.Context, rentalID string) (model.Rental, model.Car, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rentals[rentalID]
	if !ok || !r.Active() {
		return model.Rental{}, model.Car{}, ErrNotFound
	}

	endedAt := time.Now().UTC()
	r.EndedAt = &endedAt
	s.rentals[rentalID] = r

	c, ok := s.cars[r.VIN]
	if ok {
		c.Status = model.StatusAvailable
		c.RentedByUserID = ""
		s.cars[r.VIN] = c
	}

	if u, ok := s.users[r.UserID]; ok {
		u.ActiveRentalID = ""
		s.users[r.UserID] = u
	}

	s.logger.Info().Str("rental_id", r.ID).Str("vin", r.VIN).Msg("Rental closed.")
	return r, c, nil
}

// Counts returns the number of users and cars.
func (s *MemoryStore) Counts(_ context.Context) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.users), len(s.cars), nil
}

// DropConnection removes the connection and clears any telematics link that
// pointed at it. Cars stay RENTED and rentals stay active; an in-flight
// state query against the vehicle observes its own timeout.
func (s *MemoryStore) DropConnection(clientID string, conn Conn) {
	if !s.Drop(clientID, conn) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for vin, c := range s.cars {
		if c.TelematicsConnectionID == clientID {
			c.TelematicsConnectionID = ""
			s.cars[vin] = c
			s.logger.Info().Str("vin", vin).Str("client_id", clientID).Msg("Telematics link cleared on disconnect.")
		}
	}
}

// UserByConnection returns the user registered on the given connection.
func (s *MemoryStore) UserByConnection(ctx context.Context, clientID string) (model.User, error) {
	userID, ok := s.UserIDByClient(clientID)
	if !ok {
		return model.User{}, ErrNotFound
	}
	return s.GetUser(ctx, userID)
}
