/*
Package protocol defines the wire envelope exchanged over client connections
and the typed payloads carried per message type.

This file defines the Envelope struct and the codec functions. Every logical
message is one UTF-8 JSON envelope; the codec validates shape at the boundary
so that malformed frames never reach the dispatcher.
*/
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"carshare/internal/pkg/randx"
)

// MessageType identifies the kind of payload an envelope carries.
type MessageType string

// Inbound message types routed by the dispatcher.
const (
	TypeRegisterClient       MessageType = "REGISTER_CLIENT"
	TypeQueryCars            MessageType = "QUERY_CARS"
	TypeStartRental          MessageType = "START_RENTAL"
	TypeEndRental            MessageType = "END_RENTAL"
	TypeVehicleConnect       MessageType = "VEHICLE_CONNECT"
	TypeVehicleStateResponse MessageType = "VEHICLE_STATE_RESPONSE"
)

// Outbound message types produced by the orchestrator.
const (
	TypeRegisterClientOK    MessageType = "REGISTER_CLIENT_OK"
	TypeRegisterClientError MessageType = "REGISTER_CLIENT_ERROR"
	TypeQueryCarsResult     MessageType = "QUERY_CARS_RESULT"
	TypeStartRentalOK       MessageType = "START_RENTAL_OK"
	TypeStartRentalError    MessageType = "START_RENTAL_ERROR"
	TypeEndRentalOK         MessageType = "END_RENTAL_OK"
	TypeEndRentalError      MessageType = "END_RENTAL_ERROR"
	TypeVehicleConnectOK    MessageType = "VEHICLE_CONNECT_OK"
	TypeVehicleUnlock       MessageType = "VEHICLE_UNLOCK"
	TypeVehicleLock         MessageType = "VEHICLE_LOCK"
	TypeVehicleStateQuery   MessageType = "VEHICLE_STATE_QUERY"
	TypeNotify              MessageType = "NOTIFY"
)

// BackendSenderID is the sender id stamped on server-originated envelopes.
const BackendSenderID = "backend"

// Envelope is the atomic unit of communication between a client and the
// orchestrator. Immutable once constructed.
type Envelope struct {
	// SenderID is the opaque client identifier of the originator.
	SenderID string `json:"senderId"`

	// MessageID is generated by the sender and unique per envelope.
	MessageID string `json:"messageId"`

	Type MessageType `json:"type"`

	// CorrelationID, when present, equals the MessageID of the envelope
	// being replied to.
	CorrelationID string `json:"correlationId,omitempty"`

	// Timestamp is the ISO-8601 creation time of the envelope.
	Timestamp string `json:"timestamp"`

	// Payload is the message-type-specific body, decoded lazily by the
	// handler that owns the type.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// New constructs a server-originated envelope with a fresh message id and
// the current timestamp. A nil payload is sent as an empty object.
func New(msgType MessageType, payload any, correlationID string) (Envelope, error) {
	return newWithID(msgType, payload, correlationID, randx.MessageID())
}

// NewWithID is like New but keeps a caller-chosen message id. Used by the
// correlation broker, which keys pending queries by the request's message id.
func NewWithID(msgType MessageType, payload any, correlationID, messageID string) (Envelope, error) {
	return newWithID(msgType, payload, correlationID, messageID)
}

func newWithID(msgType MessageType, payload any, correlationID, messageID string) (Envelope, error) {
	body := []byte("{}")
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode %s payload: %w", msgType, err)
		}
		body = encoded
	}

	return Envelope{
		SenderID:      BackendSenderID,
		MessageID:     messageID,
		Type:          msgType,
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		Payload:       body,
	}, nil
}

// Encode serializes the envelope for the wire.
func Encode(env Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope %s: %w", env.Type, err)
	}
	return data, nil
}

// Decode parses and validates an inbound frame. It rejects frames missing
// the sender id, message id, or type, so downstream handlers can rely on
// those fields being present.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}

	if env.SenderID == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing senderId")
	}
	if env.MessageID == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing messageId")
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing type")
	}

	return env, nil
}
