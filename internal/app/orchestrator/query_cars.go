/*
Package orchestrator implements the rental policy: registration, discovery,
rental start/end with the telematics safety check, and vehicle link
management.

This file handles QUERY_CARS: available cars annotated with great-circle
distance to the rider, sorted nearest first.
*/
package orchestrator

import (
	"context"
	"encoding/json"
	"sort"

	"carshare/internal/app/geo"
	"carshare/internal/app/model"
	"carshare/internal/app/protocol"
	"carshare/internal/app/store"
)

// handleQueryCars returns every AVAILABLE car with its distance to the
// rider, rounded to 3 decimals and sorted ascending. An unregistered
// requester receives an empty list with an error note rather than a
// protocol failure.
func (o *Orchestrator) handleQueryCars(ctx context.Context, conn store.Conn, env protocol.Envelope) {
	o.store.BindConnection(env.SenderID, conn)

	user, err := o.store.UserByConnection(ctx, env.SenderID)
	if err != nil {
		o.reply(conn, env, protocol.TypeQueryCarsResult, protocol.QueryCarsResultPayload{
			Cars:  []model.CarWithDistance{},
			Error: ReasonUserNotRegistered,
		})
		return
	}

	var payload protocol.QueryCarsPayload
	if err := json.Unmarshal(env.Payload, &payload); err == nil && payload.Location != nil {
		if err := o.store.UpdateUserLocation(ctx, user.ID, *payload.Location); err == nil {
			user.Location = *payload.Location
		}
	}

	available, err := o.store.AvailableCars(ctx)
	if err != nil {
		o.logger.Error().Err(err).Msg("Failed to list available cars.")
		available = nil
	}

	cars := make([]model.CarWithDistance, 0, len(available))
	for _, car := range available {
		cars = append(cars, model.CarWithDistance{
			Car:        car,
			DistanceKm: geo.RoundKm(geo.Between(user.Location, car.Location)),
		})
	}

	sort.Slice(cars, func(i, j int) bool {
		return cars[i].DistanceKm < cars[j].DistanceKm
	})

	o.reply(conn, env, protocol.TypeQueryCarsResult, protocol.QueryCarsResultPayload{Cars: cars})
}
