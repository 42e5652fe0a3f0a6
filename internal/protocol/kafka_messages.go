package protocol

import (
	"encoding/json"
	"time"
)

// ForecastDispatch is the internal message format for the forecast topic
type ForecastDispatch struct {
	DispatchID string    `json:"dispatch_id"`
	UserID     int64     `json:"user_id"`
	ChatID     int64     `json:"chat_id"`
	Date       string    `json:"date"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sent_at"`
}

// OpsAlert is the message format for the operations topic
type OpsAlert struct {
	Type   string    `json:"type"`
	UserID int64     `json:"user_id,omitempty"`
	Detail string    `json:"detail"`
	At     time.Time `json:"at"`
}

const (
	OpsSubscriptionExpiring = "SUBSCRIPTION_EXPIRING"
	OpsSchedulerFailure     = "SCHEDULER_FAILURE"
	OpsEphemerisFailure     = "EPHEMERIS_FAILURE"
)

// EncodeForecastDispatch encodes a ForecastDispatch to JSON
func EncodeForecastDispatch(msg *ForecastDispatch) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeForecastDispatch decodes JSON to ForecastDispatch
func DecodeForecastDispatch(data []byte) (*ForecastDispatch, error) {
	var msg ForecastDispatch
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EncodeOpsAlert encodes an OpsAlert to JSON
func EncodeOpsAlert(alert *OpsAlert) ([]byte, error) {
	return json.Marshal(alert)
}

// DecodeOpsAlert decodes JSON to OpsAlert
func DecodeOpsAlert(data []byte) (*OpsAlert, error) {
	var alert OpsAlert
	if err := json.Unmarshal(data, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}
