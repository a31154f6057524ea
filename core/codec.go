package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/agentlauncher/agentid"
)

// Envelope is the wire form of an event used by bridges and streaming
// endpoints.
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	AgentID   string          `json:"agent_id"`
	PrimaryID string          `json:"primary_id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEnvelope wraps ev with a fresh id and the current time.
func NewEnvelope(ev Event) (Envelope, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:        uuid.NewString(),
		Type:      ev.EventName(),
		AgentID:   ev.GetAgentID(),
		PrimaryID: agentid.PrimaryOf(ev.GetAgentID()),
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

// MarshalEvent encodes ev as a JSON envelope.
func MarshalEvent(ev Event) ([]byte, error) {
	env, err := NewEnvelope(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}
