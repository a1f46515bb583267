package protocol

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	env, err := New(TypeNotify, NotifyPayload{Message: "hi"}, "corr-1")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if env.SenderID != BackendSenderID {
		t.Errorf("SenderID = %q, want %q", env.SenderID, BackendSenderID)
	}
	if env.MessageID == "" {
		t.Error("MessageID is empty")
	}
	if env.CorrelationID != "corr-1" {
		t.Errorf("CorrelationID = %q, want %q", env.CorrelationID, "corr-1")
	}
	if _, err := time.Parse(time.RFC3339Nano, env.Timestamp); err != nil {
		t.Errorf("Timestamp %q is not RFC3339: %v", env.Timestamp, err)
	}

	var p NotifyPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("payload does not decode: %v", err)
	}
	if p.Message != "hi" {
		t.Errorf("payload message = %q, want %q", p.Message, "hi")
	}
}

func TestNew_NilPayload(t *testing.T) {
	env, err := New(TypeVehicleLock, nil, "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if string(env.Payload) != "{}" {
		t.Errorf("nil payload encoded as %s, want {}", env.Payload)
	}
}

func TestNewWithID(t *testing.T) {
	env, err := NewWithID(TypeVehicleStateQuery, nil, "end-req-1", "fixed-id")
	if err != nil {
		t.Fatalf("NewWithID() error = %v", err)
	}
	if env.MessageID != "fixed-id" {
		t.Errorf("MessageID = %q, want %q", env.MessageID, "fixed-id")
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		wantErr string
	}{
		{
			name:  "valid",
			frame: `{"senderId":"c1","messageId":"m1","type":"QUERY_CARS","timestamp":"2026-08-26T10:00:00Z","payload":{}}`,
		},
		{
			name:  "valid without payload",
			frame: `{"senderId":"c1","messageId":"m1","type":"END_RENTAL"}`,
		},
		{
			name:    "not json",
			frame:   `hello`,
			wantErr: "decode envelope",
		},
		{
			name:    "missing senderId",
			frame:   `{"messageId":"m1","type":"QUERY_CARS"}`,
			wantErr: "missing senderId",
		},
		{
			name:    "missing messageId",
			frame:   `{"senderId":"c1","type":"QUERY_CARS"}`,
			wantErr: "missing messageId",
		},
		{
			name:    "missing type",
			frame:   `{"senderId":"c1","messageId":"m1"}`,
			wantErr: "missing type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.frame))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Decode() error = %v, want nil", err)
				}
				if env.SenderID != "c1" {
					t.Errorf("SenderID = %q, want %q", env.SenderID, "c1")
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Decode() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	original, err := New(TypeStartRentalOK, AckPayload{Message: "ok"}, "req-9")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	data, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if decoded.MessageID != original.MessageID || decoded.Type != original.Type || decoded.CorrelationID != original.CorrelationID {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, original)
	}
}
