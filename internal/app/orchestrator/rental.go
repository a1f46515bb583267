/*
Package orchestrator implements the rental policy: registration, discovery,
rental start/end with the telematics safety check, and vehicle link
management.

This file handles START_RENTAL and END_RENTAL. Checks run in a fixed order
and the first failure determines the error; the atomic store transition
re-validates the racy checks at commit time.
*/
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"carshare/internal/app/broker"
	"carshare/internal/app/geo"
	"carshare/internal/app/model"
	"carshare/internal/app/protocol"
	"carshare/internal/app/store"
)

// Remediation phrases appended per failed safety field, in this order.
const (
	issueDoors  = "Close all doors"
	issueLights = "Turn off lights"
	issueEngine = "Turn off engine"
)

// handleStartRental validates the rider, the car, its telematics link and
// the geofence, then atomically starts the rental and unlocks the vehicle.
func (o *Orchestrator) handleStartRental(ctx context.Context, conn store.Conn, env protocol.Envelope) {
	fail := func(reason string) {
		o.reply(conn, env, protocol.TypeStartRentalError, protocol.ErrorPayload{Reason: reason})
	}

	user, err := o.store.UserByConnection(ctx, env.SenderID)
	if err != nil {
		fail(ReasonUserNotRegistered)
		return
	}

	var payload protocol.StartRentalPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil || payload.VIN == "" {
		fail(ReasonInvalidPayload)
		return
	}

	car, err := o.store.GetCar(ctx, payload.VIN)
	if err != nil {
		fail(ReasonCarNotFound)
		return
	}

	if user.ActiveRentalID != "" {
		fail(ReasonActiveRental)
		return
	}

	if car.Status != model.StatusAvailable {
		fail(ReasonCarNotAvailable)
		return
	}

	if !o.vehicleReachable(car.TelematicsConnectionID) {
		fail(ReasonTelematicsDown)
		return
	}

	if geo.Between(user.Location, car.Location) > MaxStartDistanceKm {
		fail(ReasonCarTooFar)
		return
	}

	// The checks above ran on a snapshot; the store re-validates
	// availability and the one-active-rental invariant atomically, so of
	// two racing starts exactly one commits.
	rental, car, err := o.store.CreateRental(ctx, user.ID, payload.VIN)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrUserHasActiveRental):
			fail(ReasonActiveRental)
		case errors.Is(err, store.ErrCarUnavailable):
			fail(ReasonCarNotAvailable)
		case errors.Is(err, store.ErrNotFound):
			fail(ReasonCarNotFound)
		default:
			o.logger.Error().Err(err).Str("vin", payload.VIN).Msg("Rental start failed.")
			fail(ReasonCarNotAvailable)
		}
		return
	}

	o.sendToClient(car.TelematicsConnectionID, protocol.TypeVehicleUnlock,
		protocol.VehicleCommandPayload{VIN: car.VIN}, env.MessageID)

	o.notifyUser(user.ConnectionID, fmt.Sprintf("Car %s unlocked", car.VIN))

	if err := o.events.RentalStarted(ctx, rental); err != nil {
		o.logger.Warn().Err(err).Str("rental_id", rental.ID).Msg("Failed to publish rental started event.")
	}

	o.reply(conn, env, protocol.TypeStartRentalOK, protocol.RentalResultPayload{Rental: rental, Car: car})
}

// handleEndRental runs the safety-check round trip through the correlation
// broker before closing the rental. A timeout or an unsatisfied check
// leaves the rental active and the car RENTED.
func (o *Orchestrator) handleEndRental(ctx context.Context, conn store.Conn, env protocol.Envelope) {
	fail := func(reason string) {
		o.reply(conn, env, protocol.TypeEndRentalError, protocol.ErrorPayload{Reason: reason})
	}

	user, err := o.store.UserByConnection(ctx, env.SenderID)
	if err != nil {
		fail(ReasonUserNotRegistered)
		return
	}

	rental, err := o.store.GetRentalByUser(ctx, user.ID)
	if err != nil {
		fail(ReasonNoActiveRental)
		return
	}

	car, err := o.store.GetCar(ctx, rental.VIN)
	if err != nil || !o.vehicleReachable(car.TelematicsConnectionID) {
		fail(ReasonCarNotConnected)
		return
	}

	state, err := o.queryVehicleState(ctx, car.TelematicsConnectionID, car.VIN, env.MessageID)
	if err != nil {
		fail(ReasonStateUnavailable)
		return
	}

	var issues []string
	if !state.DoorsClosed {
		issues = append(issues, issueDoors)
	}
	if !state.LightsOff {
		issues = append(issues, issueLights)
	}
	if !state.EngineOff {
		issues = append(issues, issueEngine)
	}

	if len(issues) > 0 {
		o.reply(conn, env, protocol.TypeEndRentalError, protocol.ErrorPayload{
			Reason:            strings.Join(issues, " "),
			RecommendedAction: strings.Join(issues, "; "),
		})
		o.notifyUser(user.ConnectionID, strings.Join(issues, "; "))
		return
	}

	o.sendToClient(car.TelematicsConnectionID, protocol.TypeVehicleLock,
		protocol.VehicleCommandPayload{VIN: car.VIN}, env.MessageID)

	closed, car, err := o.store.CloseRental(ctx, rental.ID)
	if err != nil {
		o.logger.Error().Err(err).Str("rental_id", rental.ID).Msg("Rental close failed.")
		fail(ReasonNoActiveRental)
		return
	}

	o.notifyUser(user.ConnectionID, fmt.Sprintf("Rental %s ended and car locked", closed.ID))

	if err := o.events.RentalEnded(ctx, closed); err != nil {
		o.logger.Warn().Err(err).Str("rental_id", closed.ID).Msg("Failed to publish rental ended event.")
	}

	o.reply(conn, env, protocol.TypeEndRentalOK, protocol.RentalResultPayload{Rental: closed, Car: car})
}

// queryVehicleState round-trips a VEHICLE_STATE_QUERY through the broker.
// The query gets a fresh message id (the broker's correlation key) and
// carries the originating request id as its correlation id. Missing fields
// in the reply count as unsatisfied checks.
func (o *Orchestrator) queryVehicleState(ctx context.Context, telematicsID, vin, requestID string) (protocol.VehicleStatePayload, error) {
	vehicleConn, ok := o.store.ConnectionOf(telematicsID)
	if !ok {
		return protocol.VehicleStatePayload{}, broker.ErrTimedOut
	}

	query, err := protocol.New(protocol.TypeVehicleStateQuery,
		protocol.VehicleCommandPayload{VIN: vin}, requestID)
	if err != nil {
		return protocol.VehicleStatePayload{}, err
	}

	raw, err := o.broker.SendAndAwait(ctx, vehicleConn, query)
	if err != nil {
		return protocol.VehicleStatePayload{}, err
	}

	var state protocol.VehicleStatePayload
	if err := json.Unmarshal(raw, &state); err != nil {
		o.logger.Warn().Err(err).Str("vin", vin).Msg("Malformed vehicle state payload. Treating checks as unsatisfied.")
	}
	return state, nil
}

// vehicleReachable reports whether the telematics link is set and the
// linked connection is still live.
func (o *Orchestrator) vehicleReachable(telematicsID string) bool {
	if telematicsID == "" {
		return false
	}
	_, ok := o.store.ConnectionOf(telematicsID)
	return ok
}
