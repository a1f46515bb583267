/*
Package protocol defines the wire envelope exchanged over client connections
and the typed payloads carried per message type.

This file defines one strongly-typed payload struct per message type. The
envelope body stays opaque at the codec level; handlers unmarshal into the
struct that matches the envelope type.
*/
package protocol

import "carshare/internal/app/model"

// RegisterClientPayload is the body of REGISTER_CLIENT.
type RegisterClientPayload struct {
	FullName          string         `json:"fullName"`
	Email             string         `json:"email"`
	Age               int            `json:"age"`
	LicenseNumber     string         `json:"licenseNumber"`
	PaymentToken      string         `json:"paymentToken"`
	LicenseValidUntil string         `json:"licenseValidUntil"`
	Location          model.Location `json:"location"`
}

// QueryCarsPayload is the body of QUERY_CARS. The location, when present,
// updates the rider's position before the distance computation.
type QueryCarsPayload struct {
	Location *model.Location `json:"location,omitempty"`
}

// StartRentalPayload is the body of START_RENTAL.
type StartRentalPayload struct {
	VIN string `json:"vin"`
}

// VehicleConnectPayload is the body of VEHICLE_CONNECT, announcing the
// sender's connection as the telematics link for the VIN.
type VehicleConnectPayload struct {
	VIN string `json:"vin"`
}

// VehicleStatePayload is the body of VEHICLE_STATE_RESPONSE, the vehicle's
// answer to a VEHICLE_STATE_QUERY safety check.
type VehicleStatePayload struct {
	DoorsClosed bool `json:"doorsClosed"`
	LightsOff   bool `json:"lightsOff"`
	EngineOff   bool `json:"engineOff"`
}

// VehicleCommandPayload is the body of VEHICLE_UNLOCK, VEHICLE_LOCK and
// VEHICLE_STATE_QUERY envelopes pushed to a telematics link.
type VehicleCommandPayload struct {
	VIN string `json:"vin"`
}

// UserPayload is the body of REGISTER_CLIENT_OK.
type UserPayload struct {
	User model.User `json:"user"`
}

// ErrorPayload is the body of every *_ERROR reply.
type ErrorPayload struct {
	Reason string `json:"reason"`

	// RecommendedAction carries remediation guidance for safety-check
	// failures; empty otherwise.
	RecommendedAction string `json:"recommendedAction,omitempty"`
}

// QueryCarsResultPayload is the body of QUERY_CARS_RESULT. Error is set
// (with an empty list) when the requester is not a registered user.
type QueryCarsResultPayload struct {
	Cars  []model.CarWithDistance `json:"cars"`
	Error string                  `json:"error,omitempty"`
}

// RentalResultPayload is the body of START_RENTAL_OK and END_RENTAL_OK.
type RentalResultPayload struct {
	Rental model.Rental `json:"rental"`
	Car    model.Car    `json:"car"`
}

// AckPayload is the body of VEHICLE_CONNECT_OK.
type AckPayload struct {
	Message string `json:"message"`
}

// NotifyPayload is the body of unsolicited NOTIFY pushes.
type NotifyPayload struct {
	Message string `json:"message"`
}
