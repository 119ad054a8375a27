// Package transport implements the single-hop request/response channel
// between detectors/UIs and the daemon. Delivery is at-most-once and the
// peer can be torn down asynchronously, so both ends layer explicit
// liveness on top: a vanished endpoint surfaces as domain.ErrEndpointGone,
// an elapsed bounded wait as domain.ErrTimeout.
package transport

import (
	"github.com/clipsentry/clipsentry/internal/domain"
)

// Header names used on the WebSocket upgrade request.
const (
	HeaderToken = "X-Clipsentry-Token"
	HeaderRole  = "X-Clipsentry-Role"
	HeaderURL   = "X-Clipsentry-Url"
)

// frame is the wire unit. Exactly one field is set: a request envelope or
// a response to one.
type frame struct {
	Envelope *domain.Envelope `json:"envelope,omitempty"`
	Response *domain.Response `json:"response,omitempty"`
}

// Handler processes one inbound envelope and produces its response.
type Handler func(session domain.SessionInfo, env domain.Envelope) domain.Response
