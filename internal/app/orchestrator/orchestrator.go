/*
Package orchestrator implements the rental policy: registration, discovery,
rental start/end with the telematics safety check, and vehicle link
management.

This file defines the Orchestrator and its routing table. Every inbound
envelope is routed by type to a handler; handlers reply to the requester
with a correlated result envelope and may push unsolicited NOTIFY envelopes
to other affected connections. A handler failure never takes down another
connection's loop.
*/
package orchestrator

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"carshare/internal/app/broker"
	"carshare/internal/app/events"
	"carshare/internal/app/protocol"
	"carshare/internal/app/store"
	"carshare/internal/pkg/logx"
)

// Reason strings carried in *_ERROR payloads. These are part of the wire
// contract; clients match on them verbatim.
const (
	ReasonAgeUnder18        = "Age must be 18+"
	ReasonLicenseExpired    = "Driving license expired"
	ReasonUserNotRegistered = "User not registered"
	ReasonCarNotFound       = "Car not found"
	ReasonActiveRental      = "User already has an active rental"
	ReasonCarNotAvailable   = "Car is not available"
	ReasonTelematicsDown    = "Car telematics not connected"
	ReasonCarTooFar         = "Car is farther than 2 km"
	ReasonNoActiveRental    = "No active rental"
	ReasonCarNotConnected   = "Car not connected"
	ReasonStateUnavailable  = "Car state unavailable"
	ReasonInvalidPayload    = "Invalid payload"
)

// MaxStartDistanceKm is the geofence: a rental may only start when the
// rider is within this distance of the car.
const MaxStartDistanceKm = 2.0

// Orchestrator owns all rental policy. It reads and mutates the entity
// store, round-trips safety checks through the correlation broker, and
// publishes rental lifecycle events.
type Orchestrator struct {
	store  store.Store
	broker *broker.Broker
	events events.Publisher
	logger zerolog.Logger
}

// New constructs an Orchestrator.
func New(st store.Store, br *broker.Broker, pub events.Publisher) *Orchestrator {
	return &Orchestrator{
		store:  st,
		broker: br,
		events: pub,
		logger: logx.Logger().With().Str("component", "Orchestrator").Logger(),
	}
}

// Dispatch routes one inbound envelope by type. Unrecognized types yield a
// correlated NOTIFY echoing the type; that is diagnostics, not a protocol
// error.
func (o *Orchestrator) Dispatch(ctx context.Context, conn store.Conn, env protocol.Envelope) {
	o.logger.Debug().
		Str("type", string(env.Type)).
		Str("sender_id", env.SenderID).
		Str("message_id", env.MessageID).
		Msg("Dispatching envelope.")

	switch env.Type {
	case protocol.TypeRegisterClient:
		o.handleRegisterClient(ctx, conn, env)

	case protocol.TypeQueryCars:
		o.handleQueryCars(ctx, conn, env)

	case protocol.TypeStartRental:
		o.handleStartRental(ctx, conn, env)

	case protocol.TypeEndRental:
		o.handleEndRental(ctx, conn, env)

	case protocol.TypeVehicleConnect:
		o.handleVehicleConnect(ctx, conn, env)

	case protocol.TypeVehicleStateResponse:
		o.handleVehicleStateResponse(env)

	default:
		o.reply(conn, env, protocol.TypeNotify, protocol.NotifyPayload{
			Message: fmt.Sprintf("Unknown message type %s", env.Type),
		})
	}
}

// handleVehicleStateResponse forwards a vehicle's safety-check answer to
// the correlation broker. Not user-facing.
func (o *Orchestrator) handleVehicleStateResponse(env protocol.Envelope) {
	if env.CorrelationID == "" {
		o.logger.Warn().Str("sender_id", env.SenderID).Msg("Vehicle state response without correlation id. Ignored.")
		return
	}
	o.broker.Resolve(env.CorrelationID, env.Payload)
}

// reply sends a correlated envelope back to the requesting connection.
// A failed enqueue means the requester is gone; its own read loop cleanup
// drops the registry binding.
func (o *Orchestrator) reply(conn store.Conn, request protocol.Envelope, msgType protocol.MessageType, payload any) {
	env, err := protocol.New(msgType, payload, request.MessageID)
	if err != nil {
		o.logger.Error().Err(err).Str("type", string(msgType)).Msg("Failed to build reply envelope.")
		return
	}

	data, err := protocol.Encode(env)
	if err != nil {
		o.logger.Error().Err(err).Str("type", string(msgType)).Msg("Failed to encode reply envelope.")
		return
	}

	if err := conn.Enqueue(data); err != nil {
		o.logger.Warn().Err(err).Str("type", string(msgType)).Msg("Failed to queue reply.")
	}
}

// sendToClient pushes an envelope to the connection currently bound to the
// client id. Absent connections are a no-op; a dead connection is removed
// from the registry at the point of send and never surfaces as a
// user-visible error.
func (o *Orchestrator) sendToClient(clientID string, msgType protocol.MessageType, payload any, correlationID string) {
	conn, ok := o.store.ConnectionOf(clientID)
	if !ok {
		return
	}

	env, err := protocol.New(msgType, payload, correlationID)
	if err != nil {
		o.logger.Error().Err(err).Str("type", string(msgType)).Msg("Failed to build push envelope.")
		return
	}

	data, err := protocol.Encode(env)
	if err != nil {
		o.logger.Error().Err(err).Str("type", string(msgType)).Msg("Failed to encode push envelope.")
		return
	}

	if err := conn.Enqueue(data); err != nil {
		o.logger.Warn().Err(err).Str("client_id", clientID).Msg("Stale connection on push. Dropping from registry.")
		o.store.DropConnection(clientID, conn)
	}
}

// notifyUser pushes an unsolicited NOTIFY to the user's connection, if any.
func (o *Orchestrator) notifyUser(connectionID, text string) {
	if connectionID == "" {
		return
	}
	o.sendToClient(connectionID, protocol.TypeNotify, protocol.NotifyPayload{Message: text}, "")
}
