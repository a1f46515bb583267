/*
Package store holds the shared mutable state of the system: Users, Cars,
Rentals, and the live connection registry.

This file seeds the startup fleet: a fixed number of AVAILABLE cars spread
randomly around the base coordinate.
*/
package store

import (
	"context"
	"fmt"
	"math/rand"

	"carshare/internal/app/model"
)

// Base coordinate the seeded fleet is scattered around.
const (
	FleetBaseLat = 47.16
	FleetBaseLon = 27.59

	// fleetJitterDeg is the max coordinate offset of a seeded car, roughly
	// one kilometer at this latitude.
	fleetJitterDeg = 0.01
)

// SeedFleet inserts n AVAILABLE cars with VINs VIN0001..VINnnnn into the
// store. Cars already present under the same VIN are replaced.
func SeedFleet(ctx context.Context, s Store, n int) error {
	for i := 0; i < n; i++ {
		car := model.Car{
			VIN: fmt.Sprintf("VIN%04d", i+1),
			Location: model.Location{
				Lat: FleetBaseLat + (rand.Float64()*2-1)*fleetJitterDeg,
				Lon: FleetBaseLon + (rand.Float64()*2-1)*fleetJitterDeg,
			},
			Status: model.StatusAvailable,
		}

		if err := s.PutCar(ctx, car); err != nil {
			return fmt.Errorf("seed car %s: %w", car.VIN, err)
		}
	}
	return nil
}
