/*
Package orchestrator implements the rental policy: registration, discovery,
rental start/end with the telematics safety check, and vehicle link
management.

This file handles VEHICLE_CONNECT: binding a connection as the
authoritative telematics link for a VIN.
*/
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"carshare/internal/app/protocol"
	"carshare/internal/app/store"
)

// handleVehicleConnect binds the requesting connection as the telematics
// link for the named VIN. The acknowledgement is sent either way; the link
// only takes effect for a car present in the store.
func (o *Orchestrator) handleVehicleConnect(ctx context.Context, conn store.Conn, env protocol.Envelope) {
	o.store.BindConnection(env.SenderID, conn)

	var payload protocol.VehicleConnectPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil || payload.VIN == "" {
		o.reply(conn, env, protocol.TypeVehicleConnectOK, protocol.AckPayload{Message: ReasonInvalidPayload})
		return
	}

	if err := o.store.SetTelematicsLink(ctx, payload.VIN, env.SenderID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			o.logger.Error().Err(err).Str("vin", payload.VIN).Msg("Failed to set telematics link.")
		} else {
			o.logger.Warn().Str("vin", payload.VIN).Str("client_id", env.SenderID).Msg("Vehicle connect for unknown VIN.")
		}
	}

	o.reply(conn, env, protocol.TypeVehicleConnectOK, protocol.AckPayload{
		Message: fmt.Sprintf("Car %s connected", payload.VIN),
	})
}
