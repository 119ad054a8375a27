package domain

import (
	"encoding/json"
	"fmt"
)

// MsgKind tags an envelope on the wire.
type MsgKind string

const (
	MsgPasteDetected      MsgKind = "PASTE_DETECTED"
	MsgCopyDetected       MsgKind = "COPY_DETECTED"
	MsgGetSettings        MsgKind = "GET_SETTINGS"
	MsgToggleExtension    MsgKind = "TOGGLE_EXTENSION"
	MsgUpdateSettings     MsgKind = "UPDATE_SETTINGS"
	MsgUpdatePasswordOnly MsgKind = "UPDATE_PASSWORD_ONLY"
	MsgClearClipboardNow  MsgKind = "CLEAR_CLIPBOARD_NOW"
	MsgPing               MsgKind = "PING"

	// Coordinator -> session direction.
	MsgClearClipboardRequest   MsgKind = "CLEAR_CLIPBOARD_REQUEST"
	MsgOffscreenPing           MsgKind = "OFFSCREEN_PING"
	MsgOffscreenClearClipboard MsgKind = "OFFSCREEN_CLEAR_CLIPBOARD"
)

// Envelope is the single-hop wire frame. Payload shape depends on Kind.
type Envelope struct {
	ID      string          `json:"id"`
	Kind    MsgKind         `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response answers exactly one envelope, matched by ID.
type Response struct {
	ID       string    `json:"id"`
	Success  bool      `json:"success"`
	Error    string    `json:"error,omitempty"`
	Message  string    `json:"message,omitempty"`
	Settings *Settings `json:"settings,omitempty"`
}

// Message is the closed set of decoded inbound variants. Unknown kinds
// decode to UnknownMessage rather than failing, for forward compatibility.
type Message interface{ isMessage() }

// PasteDetected reports a qualifying-candidate paste from a detector.
type PasteDetected struct {
	TimestampMs int64  `json:"timestamp"`
	IsPassword  bool   `json:"isPassword"`
	SourceURL   string `json:"sourceUrl,omitempty"`
}

// CopyDetected reports copy/cut activity. Presentation-only: it never
// starts a countdown.
type CopyDetected struct {
	TimestampMs int64  `json:"timestamp"`
	SourceURL   string `json:"sourceUrl,omitempty"`
}

// GetSettings asks for the best-known settings record.
type GetSettings struct{}

// ToggleExtension enables or disables all clipboard handling.
type ToggleExtension struct {
	Enabled bool `json:"enabled"`
}

// UpdateSettings changes the clear delay.
type UpdateSettings struct {
	Interval int `json:"interval"`
}

// UpdatePasswordOnly changes the password-only policy.
type UpdatePasswordOnly struct {
	Value bool `json:"value"`
}

// ClearClipboardNow requests an immediate clear, canceling any countdown.
type ClearClipboardNow struct{}

// Ping is the detector liveness probe.
type Ping struct{}

// UnknownMessage is the fallback variant for kinds this build does not know.
type UnknownMessage struct {
	Kind MsgKind
}

func (PasteDetected) isMessage()      {}
func (CopyDetected) isMessage()       {}
func (GetSettings) isMessage()        {}
func (ToggleExtension) isMessage()    {}
func (UpdateSettings) isMessage()     {}
func (UpdatePasswordOnly) isMessage() {}
func (ClearClipboardNow) isMessage()  {}
func (Ping) isMessage()               {}
func (UnknownMessage) isMessage()     {}

// DecodeMessage turns an envelope into its typed variant. A malformed
// payload is an error; an unrecognized kind is not.
func DecodeMessage(env Envelope) (Message, error) {
	switch env.Kind {
	case MsgPasteDetected:
		var m PasteDetected
		return m, decodePayload(env, &m)
	case MsgCopyDetected:
		var m CopyDetected
		return m, decodePayload(env, &m)
	case MsgGetSettings:
		return GetSettings{}, nil
	case MsgToggleExtension:
		var m ToggleExtension
		return m, decodePayload(env, &m)
	case MsgUpdateSettings:
		var m UpdateSettings
		return m, decodePayload(env, &m)
	case MsgUpdatePasswordOnly:
		var m UpdatePasswordOnly
		return m, decodePayload(env, &m)
	case MsgClearClipboardNow:
		return ClearClipboardNow{}, nil
	case MsgPing:
		return Ping{}, nil
	default:
		return UnknownMessage{Kind: env.Kind}, nil
	}
}

func decodePayload(env Envelope, dst any) error {
	if len(env.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("malformed %s payload: %w", env.Kind, err)
	}
	return nil
}

// NewEnvelope builds an envelope with a marshaled payload. Marshaling of
// the known payload structs cannot fail; errors indicate a programming bug.
func NewEnvelope(id string, kind MsgKind, payload any) (Envelope, error) {
	env := Envelope{ID: id, Kind: kind}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal %s payload: %w", kind, err)
		}
		env.Payload = raw
	}
	return env, nil
}
