package database

import (
	"time"
)

// User is a subscriber of the daily forecast
type User struct {
	UserID            int64 // telegram user id
	ChatID            int64
	Name              string
	BirthAt           time.Time // UTC
	BirthLocationID   int64
	CurrentLocationID int64
	SendAt            string // local wall-clock send time, "15:04"
	SubscribedUntil   *time.Time
	TestStartedAt     *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Location is a stored geographic point
type Location struct {
	ID        int64
	Title     string
	Longitude float64
	Latitude  float64
	Altitude  float64
	CreatedAt time.Time
}

// Payment is a Prodamus payment record; the payment flow itself is
// handled outside this service
type Payment struct {
	ID        int64
	UserID    int64
	OrderID   string
	Amount    float64
	Currency  string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Payment status constants
const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusConfirmed = "CONFIRMED"
	PaymentStatusFailed    = "FAILED"
)

// Promocode grants extra subscription days on activation
type Promocode struct {
	Code      string
	BonusDays int
	UsesLeft  int
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// Interpretation is one row of the aspect interpretation table, keyed by
// (natal planet, transit planet, aspect). Planet names are stored as they
// appear in the source CSV.
type Interpretation struct {
	TransitPlanet string
	NatalPlanet   string
	Aspect        int
	General       string
	Favorable     string
	Unfavorable   string
}

// MoonSignInterpretation describes the moon standing in a sign
type MoonSignInterpretation struct {
	Sign        string // English sign name
	General     string
	Favorable   string
	Unfavorable string
}

// GeneralPrediction is a canned text shown for a calendar date
type GeneralPrediction struct {
	ID        int64
	Date      string // configured date format
	Text      string
	CreatedAt time.Time
}

// ViewedPrediction records a forecast delivered to a user
type ViewedPrediction struct {
	ID         int64
	UserID     int64
	Date       string // configured date format
	DispatchID string
	ViewedAt   time.Time
}
