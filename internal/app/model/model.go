/*
Package model contains the core domain entities of the car-sharing system.

It defines Users, Cars, Rentals and their shared Location type. Entities carry
no behavior beyond small state queries; all policy lives in the orchestrator
and all mutation goes through the store.
*/
package model

import "time"

// CarStatus describes the rental availability of a Car.
type CarStatus string

const (
	// StatusAvailable marks a car that can be rented.
	StatusAvailable CarStatus = "AVAILABLE"

	// StatusRented marks a car with an active rental.
	StatusRented CarStatus = "RENTED"
)

// Location is a WGS84 coordinate in decimal degrees.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// User represents a registered rider.
// Fields use JSON tags matching the wire protocol payloads.
type User struct {
	// ID is the server-assigned unique identifier.
	ID string `json:"id"`

	FullName      string `json:"fullName"`
	Email         string `json:"email"`
	Age           int    `json:"age"`
	LicenseNumber string `json:"licenseNumber"`
	PaymentToken  string `json:"paymentToken"`

	// LicenseValidUntil is the license expiry date as sent by the client
	// (ISO date or timestamp). Kept verbatim; validity is checked at
	// registration time.
	LicenseValidUntil string `json:"licenseValidUntil"`

	Location Location `json:"location"`

	// ActiveRentalID is the id of the user's active rental, empty when none.
	ActiveRentalID string `json:"activeRentalId,omitempty"`

	// ConnectionID is the opaque client id of the user's live connection.
	// Exactly one connection may be bound at a time; the last registration wins.
	ConnectionID string `json:"connectionId,omitempty"`
}

// Car represents a vehicle of the fleet, keyed by VIN.
type Car struct {
	VIN      string    `json:"vin"`
	Location Location  `json:"location"`
	Status   CarStatus `json:"status"`

	// RentedByUserID is set while the car is RENTED.
	RentedByUserID string `json:"rentedByUserId,omitempty"`

	// TelematicsConnectionID is the client id of the live telematics link,
	// empty when the vehicle is un-contactable.
	TelematicsConnectionID string `json:"telematicsConnectionId,omitempty"`
}

// CarWithDistance annotates a Car with its distance to a rider for
// QUERY_CARS results.
type CarWithDistance struct {
	Car
	DistanceKm float64 `json:"distanceKm"`
}

// Rental represents one rental of a Car by a User.
type Rental struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	VIN       string     `json:"vin"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt"`
}

// Active reports whether the rental has not been closed yet.
func (r Rental) Active() bool {
	return r.EndedAt == nil
}
