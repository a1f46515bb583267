/*
Package orchestrator implements the rental policy: registration, discovery,
rental start/end with the telematics safety check, and vehicle link
management.

This file handles REGISTER_CLIENT and the license validity rule.
*/
package orchestrator

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"carshare/internal/app/model"
	"carshare/internal/app/protocol"
	"carshare/internal/app/store"
)

// licenseDateLayout is the date part of the licenseValidUntil field.
const licenseDateLayout = "2006-01-02"

// handleRegisterClient binds the requester's connection, validates age and
// license expiry, and creates the User. The connection is bound before
// validation so rejected clients still receive their correlated error.
func (o *Orchestrator) handleRegisterClient(ctx context.Context, conn store.Conn, env protocol.Envelope) {
	o.store.BindConnection(env.SenderID, conn)

	var payload protocol.RegisterClientPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		o.reply(conn, env, protocol.TypeRegisterClientError, protocol.ErrorPayload{Reason: ReasonInvalidPayload})
		return
	}

	if payload.Age < 18 {
		o.reply(conn, env, protocol.TypeRegisterClientError, protocol.ErrorPayload{Reason: ReasonAgeUnder18})
		return
	}

	if licenseExpired(payload.LicenseValidUntil, time.Now().UTC()) {
		o.reply(conn, env, protocol.TypeRegisterClientError, protocol.ErrorPayload{Reason: ReasonLicenseExpired})
		return
	}

	user, err := o.store.CreateUser(ctx, model.User{
		FullName:          payload.FullName,
		Email:             payload.Email,
		Age:               payload.Age,
		LicenseNumber:     payload.LicenseNumber,
		PaymentToken:      payload.PaymentToken,
		LicenseValidUntil: payload.LicenseValidUntil,
		Location:          payload.Location,
	}, env.SenderID)
	if err != nil {
		o.logger.Error().Err(err).Str("client_id", env.SenderID).Msg("Failed to create user.")
		o.reply(conn, env, protocol.TypeRegisterClientError, protocol.ErrorPayload{Reason: ReasonInvalidPayload})
		return
	}

	o.reply(conn, env, protocol.TypeRegisterClientOK, protocol.UserPayload{User: user})
}

// licenseExpired reports whether the license expiry date is strictly before
// today. A date that cannot be parsed counts as expired (fail closed);
// a license valid until today is still accepted.
func licenseExpired(validUntil string, now time.Time) bool {
	datePart, _, _ := strings.Cut(validUntil, "T")

	expiry, err := time.Parse(licenseDateLayout, datePart)
	if err != nil {
		return true
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return expiry.Before(today)
}
