package protocol

import (
	"testing"
)

func TestParseIdentify(t *testing.T) {
	data := []byte(`{"type":"identify","user_id":42,"chat_id":1001}`)

	msg, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}

	ident, ok := msg.(*IdentifyMessage)
	if !ok {
		t.Fatalf("expected *IdentifyMessage, got %T", msg)
	}
	if ident.UserID != 42 || ident.ChatID != 1001 {
		t.Errorf("unexpected fields: %+v", ident)
	}
}

func TestParseIdentifyMissingFields(t *testing.T) {
	cases := []string{
		`{"type":"identify","chat_id":1001}`,
		`{"type":"identify","user_id":42}`,
	}
	for _, data := range cases {
		if _, err := ParseMessage([]byte(data)); err == nil {
			t.Errorf("expected error for %s", data)
		}
	}
}

func TestParseForecast(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"type":"forecast","date":"2026-01-25"}`))
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	req, ok := msg.(*ForecastRequest)
	if !ok {
		t.Fatalf("expected *ForecastRequest, got %T", msg)
	}
	if req.Date != "2026-01-25" {
		t.Errorf("unexpected date: %s", req.Date)
	}

	if _, err := ParseMessage([]byte(`{"type":"forecast","date":"25.01.2026"}`)); err == nil {
		t.Error("expected error for wrong date layout")
	}
	if _, err := ParseMessage([]byte(`{"type":"forecast"}`)); err == nil {
		t.Error("expected error for missing date")
	}
}

func TestParseEvents(t *testing.T) {
	data := []byte(`{"type":"events","start":"2026-01-25T00:00:00Z","end":"2026-01-26T00:00:00Z"}`)
	msg, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	if _, ok := msg.(*EventsRequest); !ok {
		t.Fatalf("expected *EventsRequest, got %T", msg)
	}

	inverted := []byte(`{"type":"events","start":"2026-01-26T00:00:00Z","end":"2026-01-25T00:00:00Z"}`)
	if _, err := ParseMessage(inverted); err == nil {
		t.Error("expected error for inverted period")
	}
}

func TestParseBestDay(t *testing.T) {
	data := []byte(`{"type":"bestday","date":"2026-01-25","days":7,"activity":"Love"}`)
	msg, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage failed: %v", err)
	}
	req, ok := msg.(*BestDayRequest)
	if !ok {
		t.Fatalf("expected *BestDayRequest, got %T", msg)
	}
	if req.Days != 7 || req.Activity != "Love" {
		t.Errorf("unexpected fields: %+v", req)
	}

	if _, err := ParseMessage([]byte(`{"type":"bestday","date":"2026-01-25","days":0,"activity":"Love"}`)); err == nil {
		t.Error("expected error for zero days")
	}
	if _, err := ParseMessage([]byte(`{"type":"bestday","date":"2026-01-25","days":40,"activity":"Love"}`)); err == nil {
		t.Error("expected error for too many days")
	}
}

func TestParseUnknownType(t *testing.T) {
	if _, err := ParseMessage([]byte(`{"type":"weather"}`)); err == nil {
		t.Error("expected error for unknown type")
	}
	if _, err := ParseMessage([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestForecastDispatchRoundTrip(t *testing.T) {
	in := &ForecastDispatch{
		DispatchID: "d-1",
		UserID:     42,
		ChatID:     1001,
		Date:       "2026-01-25",
		Text:       "Forecast for 25.01.2026",
	}

	data, err := EncodeForecastDispatch(in)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	out, err := DecodeForecastDispatch(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out.DispatchID != in.DispatchID || out.ChatID != in.ChatID || out.Text != in.Text {
		t.Errorf("round trip mismatch: %+v", out)
	}
}
