package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType represents the type of message
type MessageType string

const (
	// Client to Server
	MsgTypeIdentify  MessageType = "identify"
	MsgTypeForecast  MessageType = "forecast"
	MsgTypeEvents    MessageType = "events"
	MsgTypeVoidMoon  MessageType = "voidmoon"
	MsgTypeBestDay   MessageType = "bestday"
	MsgTypeKeepalive MessageType = "keepalive"

	// Server to Client
	MsgTypeAck    MessageType = "ack"
	MsgTypeResult MessageType = "result"
	MsgTypePush   MessageType = "push"
)

// DateLayout is the wire format for calendar dates
const DateLayout = "2006-01-02"

// BaseMessage is the common structure for all messages
type BaseMessage struct {
	Type MessageType `json:"type"`
}

// IdentifyMessage is sent by the chat frontend on connection
type IdentifyMessage struct {
	Type   MessageType `json:"type"`
	UserID int64       `json:"user_id"`
	ChatID int64       `json:"chat_id"`
}

// ForecastRequest asks for the daily forecast of a local date
type ForecastRequest struct {
	Type MessageType `json:"type"`
	Date string      `json:"date"`
}

// EventsRequest asks for aspect events over an arbitrary period
type EventsRequest struct {
	Type  MessageType `json:"type"`
	Start string      `json:"start"` // RFC3339
	End   string      `json:"end"`   // RFC3339
}

// VoidMoonRequest asks for the void-of-course interval of a local date
type VoidMoonRequest struct {
	Type MessageType `json:"type"`
	Date string      `json:"date"`
}

// BestDayRequest asks which of the upcoming days suits an activity
type BestDayRequest struct {
	Type     MessageType `json:"type"`
	Date     string      `json:"date"`
	Days     int         `json:"days"`
	Activity string      `json:"activity"`
}

// KeepaliveMessage is sent by the client periodically
type KeepaliveMessage struct {
	Type MessageType `json:"type"`
}

// AckMessage is sent by the server in response to messages
type AckMessage struct {
	Type   MessageType `json:"type"`
	Status string      `json:"status"`
}

// ResultMessage carries a rendered query answer or its failure
type ResultMessage struct {
	Type  MessageType `json:"type"`
	Query MessageType `json:"query"`
	Text  string      `json:"text,omitempty"`
	Error string      `json:"error,omitempty"`
}

// PushMessage carries a scheduled forecast delivery
type PushMessage struct {
	Type       MessageType `json:"type"`
	DispatchID string      `json:"dispatch_id"`
	Date       string      `json:"date"`
	Text       string      `json:"text"`
}

// AckStatus constants
const (
	AckStatusIdentified = "identified"
	AckStatusAlive      = "alive"
	AckStatusError      = "error"
)

// ParseMessage parses a JSON line into the appropriate message type
func ParseMessage(data []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	switch base.Type {
	case MsgTypeIdentify:
		var msg IdentifyMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid identify message: %w", err)
		}
		if err := validateIdentify(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MsgTypeForecast:
		var msg ForecastRequest
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid forecast request: %w", err)
		}
		if err := validateDate(msg.Date); err != nil {
			return nil, err
		}
		return &msg, nil

	case MsgTypeEvents:
		var msg EventsRequest
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid events request: %w", err)
		}
		if err := validateEvents(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MsgTypeVoidMoon:
		var msg VoidMoonRequest
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid voidmoon request: %w", err)
		}
		if err := validateDate(msg.Date); err != nil {
			return nil, err
		}
		return &msg, nil

	case MsgTypeBestDay:
		var msg BestDayRequest
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid bestday request: %w", err)
		}
		if err := validateBestDay(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MsgTypeKeepalive:
		var msg KeepaliveMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid keepalive message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unknown message type: %s", base.Type)
	}
}

// validateIdentify validates an identify message
func validateIdentify(msg *IdentifyMessage) error {
	if msg.UserID == 0 {
		return fmt.Errorf("user_id is required")
	}
	if msg.ChatID == 0 {
		return fmt.Errorf("chat_id is required")
	}
	return nil
}

// validateDate validates a wire date string
func validateDate(date string) error {
	if date == "" {
		return fmt.Errorf("date is required")
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("invalid date format (must be %s): %w", DateLayout, err)
	}
	return nil
}

// validateEvents validates an events request
func validateEvents(msg *EventsRequest) error {
	start, err := time.Parse(time.RFC3339, msg.Start)
	if err != nil {
		return fmt.Errorf("invalid start (must be RFC3339): %w", err)
	}
	end, err := time.Parse(time.RFC3339, msg.End)
	if err != nil {
		return fmt.Errorf("invalid end (must be RFC3339): %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("end before start")
	}
	return nil
}

// validateBestDay validates a bestday request
func validateBestDay(msg *BestDayRequest) error {
	if err := validateDate(msg.Date); err != nil {
		return err
	}
	if msg.Days <= 0 || msg.Days > 30 {
		return fmt.Errorf("days must be in 1..30")
	}
	if msg.Activity == "" {
		return fmt.Errorf("activity is required")
	}
	return nil
}

// EncodeMessage encodes a message to JSON
func EncodeMessage(msg interface{}) ([]byte, error) {
	return json.Marshal(msg)
}

// NewAckMessage creates a new acknowledgment message
func NewAckMessage(status string) *AckMessage {
	return &AckMessage{
		Type:   MsgTypeAck,
		Status: status,
	}
}

// NewResultMessage creates a successful query answer
func NewResultMessage(query MessageType, text string) *ResultMessage {
	return &ResultMessage{
		Type:  MsgTypeResult,
		Query: query,
		Text:  text,
	}
}

// NewErrorResult creates a failed query answer
func NewErrorResult(query MessageType, err error) *ResultMessage {
	return &ResultMessage{
		Type:  MsgTypeResult,
		Query: query,
		Error: err.Error(),
	}
}
