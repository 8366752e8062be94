// Package models defines the wire-level data types shared between the
// Conductor runtime and its hosts (terminal UI, HTTP/WebSocket clients).
package models

import (
	"github.com/google/uuid"
)

// AgentID is an opaque, stable identifier for an agent within a network.
type AgentID string

// NetworkID is an opaque, stable identifier for an agent network.
type NetworkID string

// NewAgentID generates a new opaque AgentID.
func NewAgentID() AgentID {
	return AgentID(uuid.NewString())
}

// NewNetworkID generates a new opaque NetworkID.
func NewNetworkID() NetworkID {
	return NetworkID(uuid.NewString())
}
