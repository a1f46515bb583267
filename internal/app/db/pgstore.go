/*
Package db provides the Postgres-backed entity store, selected when
DATABASE_URL is configured.

This file implements the store.Store contract on top of a pgx connection
pool. Entities live in Postgres; rental transitions run inside a
transaction with row locks so concurrent starts for the same VIN resolve
to exactly one winner. Connections and telematics links are inherently
process-local, so those stay in memory alongside the pool.
*/
package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"carshare/internal/app/model"
	"carshare/internal/app/store"
	"carshare/internal/pkg/logx"
	"carshare/internal/pkg/randx"
)

// PGStore implements store.Store backed by Postgres.
type PGStore struct {
	*store.Registry

	pool *pgxpool.Pool

	// linksMu protects links, the vin to client id telematics table.
	// Links die with the process, so they are not persisted.
	linksMu sync.RWMutex
	links   map[string]string

	logger zerolog.Logger
}

var _ store.Store = (*PGStore)(nil)

// NewPGStore constructs a Postgres-backed store over an initialized pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	logger := logx.Logger().With().Str("component", "PGStore").Logger()

	return &PGStore{
		Registry: store.NewRegistry(logger),
		pool:     pool,
		links:    make(map[string]string),
		logger:   logger,
	}
}

const userColumns = `id, full_name, email, age, license_number, payment_token,
	license_valid_until, lat, lon, active_rental_id, connection_id`

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.Age, &u.LicenseNumber,
		&u.PaymentToken, &u.LicenseValidUntil, &u.Location.Lat, &u.Location.Lon,
		&u.ActiveRentalID, &u.ConnectionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, store.ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("failed to scan user: %w", err)
	}
	return u, nil
}

// GetUser returns the user by server-assigned id.
func (s *PGStore) GetUser(ctx context.Context, id string) (model.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// CreateUser assigns a fresh id, binds the connection id, and inserts the user.
func (s *PGStore) CreateUser(ctx context.Context, u model.User, connectionID string) (model.User, error) {
	u.ID = randx.EntityID()
	u.ConnectionID = connectionID
	u.ActiveRentalID = ""

	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, full_name, email, age, license_number, payment_token,
			license_valid_until, lat, lon, active_rental_id, connection_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, '', $10)`,
		u.ID, u.FullName, u.Email, u.Age, u.LicenseNumber, u.PaymentToken,
		u.LicenseValidUntil, u.Location.Lat, u.Location.Lon, connectionID)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to insert user: %w", err)
	}

	s.BindUser(connectionID, u.ID)

	s.logger.Info().Str("user_id", u.ID).Str("client_id", connectionID).Msg("User created.")
	return u, nil
}

// UpdateUserLocation moves the user to the given location.
func (s *PGStore) UpdateUserLocation(ctx context.Context, userID string, loc model.Location) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET lat = $1, lon = $2 WHERE id = $3`, loc.Lat, loc.Lon, userID)
	if err != nil {
		return fmt.Errorf("failed to update user location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *PGStore) scanCar(row pgx.Row) (model.Car, error) {
	var c model.Car
	err := row.Scan(&c.VIN, &c.Location.Lat, &c.Location.Lon, &c.Status, &c.RentedByUserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Car{}, store.ErrNotFound
	}
	if err != nil {
		return model.Car{}, fmt.Errorf("failed to scan car: %w", err)
	}
	c.TelematicsConnectionID = s.linkOf(c.VIN)
	return c, nil
}

// GetCar returns the car by VIN.
func (s *PGStore) GetCar(ctx context.Context, vin string) (model.Car, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT vin, lat, lon, status, rented_by_user_id FROM cars WHERE vin = $1`, vin)
	return s.scanCar(row)
}

// PutCar inserts or replaces a car. Used for fleet seeding.
func (s *PGStore) PutCar(ctx context.Context, c model.Car) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cars (vin, lat, lon, status, rented_by_user_id)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (vin) DO UPDATE SET
			lat = EXCLUDED.lat, lon = EXCLUDED.lon,
			status = EXCLUDED.status, rented_by_user_id = EXCLUDED.rented_by_user_id`,
		c.VIN, c.Location.Lat, c.Location.Lon, string(c.Status), c.RentedByUserID)
	if err != nil {
		return fmt.Errorf("failed to upsert car: %w", err)
	}
	return nil
}

// AvailableCars returns every car with status AVAILABLE.
func (s *PGStore) AvailableCars(ctx context.Context) ([]model.Car, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT vin, lat, lon, status, rented_by_user_id FROM cars WHERE status = $1`,
		string(model.StatusAvailable))
	if err != nil {
		return nil, fmt.Errorf("failed to query available cars: %w", err)
	}
	defer rows.Close()

	var cars []model.Car
	for rows.Next() {
		c, err := s.scanCar(rows)
		if err != nil {
			return nil, err
		}
		cars = append(cars, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read car rows: %w", err)
	}
	return cars, nil
}

// SetTelematicsLink binds the connection id as the telematics link for the VIN.
func (s *PGStore) SetTelematicsLink(ctx context.Context, vin, connectionID string) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM cars WHERE vin = $1)`, vin).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check car existence: %w", err)
	}
	if !exists {
		return store.ErrNotFound
	}

	s.linksMu.Lock()
	s.links[vin] = connectionID
	s.linksMu.Unlock()
	return nil
}

func (s *PGStore) linkOf(vin string) string {
	s.linksMu.RLock()
	defer s.linksMu.RUnlock()
	return s.links[vin]
}

func scanRental(row pgx.Row) (model.Rental, error) {
	var r model.Rental
	err := row.Scan(&r.ID, &r.UserID, &r.VIN, &r.StartedAt, &r.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Rental{}, store.ErrNotFound
	}
	if err != nil {
		return model.Rental{}, fmt.Errorf("failed to scan rental: %w", err)
	}
	return r, nil
}

// GetRentalByUser returns the user's active rental.
func (s *PGStore) GetRentalByUser(ctx context.Context, userID string) (model.Rental, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, vin, started_at, ended_at FROM rentals
		 WHERE user_id = $1 AND ended_at IS NULL`, userID)
	return scanRental(row)
}

// CreateRental atomically starts a rental. The car and user rows are locked
// for the duration of the transaction, and partial unique indexes on active
// rentals back the same invariants at the schema level, so of two racing
// starts for the same VIN exactly one commits.
func (s *PGStore) CreateRental(ctx context.Context, userID, vin string) (model.Rental, model.Car, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Rental{}, model.Car{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var activeRentalID string
	err = tx.QueryRow(ctx,
		`SELECT active_rental_id FROM users WHERE id = $1 FOR UPDATE`, userID).
		Scan(&activeRentalID)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Rental{}, model.Car{}, store.ErrNotFound
	}
	if err != nil {
		return model.Rental{}, model.Car{}, fmt.Errorf("failed to lock user row: %w", err)
	}
	if activeRentalID != "" {
		return model.Rental{}, model.Car{}, store.ErrUserHasActiveRental
	}

	var c model.Car
	err = tx.QueryRow(ctx,
		`SELECT vin, lat, lon, status, rented_by_user_id FROM cars
		 WHERE vin = $1 FOR UPDATE`, vin).
		Scan(&c.VIN, &c.Location.Lat, &c.Location.Lon, &c.Status, &c.RentedByUserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Rental{}, model.Car{}, store.ErrNotFound
	}
	if err != nil {
		return model.Rental{}, model.Car{}, fmt.Errorf("failed to lock car row: %w", err)
	}
	if c.Status != model.StatusAvailable {
		return model.Rental{}, model.Car{}, store.ErrCarUnavailable
	}

	rental := model.Rental{
		ID:        randx.EntityID(),
		UserID:    userID,
		VIN:       vin,
		StartedAt: time.Now().UTC(),
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO rentals (id, user_id, vin, started_at) VALUES ($1, $2, $3, $4)`,
		rental.ID, rental.UserID, rental.VIN, rental.StartedAt); err != nil {
		if IsUniqueViolation(err) {
			return model.Rental{}, model.Car{}, store.ErrCarUnavailable
		}
		return model.Rental{}, model.Car{}, fmt.Errorf("failed to insert rental: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE cars SET status = $1, rented_by_user_id = $2 WHERE vin = $3`,
		string(model.StatusRented), userID, vin); err != nil {
		return model.Rental{}, model.Car{}, fmt.Errorf("failed to mark car rented: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET active_rental_id = $1 WHERE id = $2`,
		rental.ID, userID); err != nil {
		return model.Rental{}, model.Car{}, fmt.Errorf("failed to set active rental: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Rental{}, model.Car{}, fmt.Errorf("failed to commit rental: %w", err)
	}

	c.Status = model.StatusRented
	c.RentedByUserID = userID
	c.TelematicsConnectionID = s.linkOf(vin)

	s.logger.Info().Str("rental_id", rental.ID).Str("vin", vin).Str("user_id", userID).Msg("Rental started.")
	return rental, c, nil
}

// CloseRental atomically ends a rental.
func (s *PGStore) CloseRental(ctx context.Context, rentalID string) (model.Rental, model.Car, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Rental{}, model.Car{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	r, err := scanRental(tx.QueryRow(ctx,
		`SELECT id, user_id, vin, started_at, ended_at FROM rentals
		 WHERE id = $1 AND ended_at IS NULL FOR UPDATE`, rentalID))
	if err != nil {
		return model.Rental{}, model.Car{}, err
	}

	endedAt := time.Now().UTC()
	r.EndedAt = &endedAt

	if _, err := tx.Exec(ctx,
		`UPDATE rentals SET ended_at = $1 WHERE id = $2`, endedAt, rentalID); err != nil {
		return model.Rental{}, model.Car{}, fmt.Errorf("failed to close rental: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE cars SET status = $1, rented_by_user_id = '' WHERE vin = $2`,
		string(model.StatusAvailable), r.VIN); err != nil {
		return model.Rental{}, model.Car{}, fmt.Errorf("failed to release car: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET active_rental_id = '' WHERE id = $1`, r.UserID); err != nil {
		return model.Rental{}, model.Car{}, fmt.Errorf("failed to clear active rental: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Rental{}, model.Car{}, fmt.Errorf("failed to commit rental close: %w", err)
	}

	c, err := s.GetCar(ctx, r.VIN)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return model.Rental{}, model.Car{}, err
	}

	s.logger.Info().Str("rental_id", r.ID).Str("vin", r.VIN).Msg("Rental closed.")
	return r, c, nil
}

// Counts returns the number of users and cars.
func (s *PGStore) Counts(ctx context.Context) (int, int, error) {
	var users, cars int
	err := s.pool.QueryRow(ctx,
		`SELECT (SELECT count(*) FROM users), (SELECT count(*) FROM cars)`).
		Scan(&users, &cars)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count entities: %w", err)
	}
	return users, cars, nil
}

// DropConnection removes the connection and clears any telematics link that
// pointed at it. Cars stay RENTED and rentals stay active; an in-flight
// state query against the vehicle observes its own timeout.
func (s *PGStore) DropConnection(clientID string, conn store.Conn) {
	if !s.Drop(clientID, conn) {
		return
	}

	s.linksMu.Lock()
	defer s.linksMu.Unlock()

	for vin, id := range s.links {
		if id == clientID {
			delete(s.links, vin)
			s.logger.Info().Str("vin", vin).Str("client_id", clientID).Msg("Telematics link cleared on disconnect.")
		}
	}
}

// UserByConnection returns the user registered on the given connection.
func (s *PGStore) UserByConnection(ctx context.Context, clientID string) (model.User, error) {
	userID, ok := s.UserIDByClient(clientID)
	if !ok {
		return model.User{}, store.ErrNotFound
	}
	return s.GetUser(ctx, userID)
}
