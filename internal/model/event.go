package model

import (
	"encoding/json"
	"time"
)

// Event channels.
const (
	ChannelAccountCreated    = "account-created-events"
	ChannelSendCommunication = "sendCommunication-out-0"
)

// Event types.
const (
	EventTypeAccountCreated    = "ACCOUNT_CREATED"
	EventTypeSendCommunication = "SEND_COMMUNICATION"
)

// DomainEvent is one notification handed to the event bus. ID and Timestamp
// are assigned once when the event is published and reused on every retry.
type DomainEvent struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Channel   string          `json:"channel"`
	Key       string          `json:"key"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// AccountCreatedEvent is the payload published on ChannelAccountCreated.
type AccountCreatedEvent struct {
	EventID       string    `json:"eventId"`
	Timestamp     time.Time `json:"timestamp"`
	AccountNumber int64     `json:"accountNumber"`
	CustomerName  string    `json:"customerName"`
	Email         string    `json:"email"`
	MobileNumber  string    `json:"mobileNumber"`
	EventType     string    `json:"eventType"`
}

// Stamp copies the publish-time id and timestamp into the payload.
func (e *AccountCreatedEvent) Stamp(id string, at time.Time) {
	e.EventID = id
	e.Timestamp = at
}

// Stamper is implemented by payloads that carry their own event id and time.
type Stamper interface {
	Stamp(id string, at time.Time)
}

// AccountsMsg is the payload published on ChannelSendCommunication.
type AccountsMsg struct {
	AccountNumber int64  `json:"accountNumber"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	MobileNumber  string `json:"mobileNumber"`
}
