package config

import (
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// App is the application configuration file. Every recognized option is
// required; a missing key fails startup.
type App struct {
	Database     AppDatabase  `yaml:"database"`
	Subscription Subscription `yaml:"subscription"`
	Admins       Admins       `yaml:"admins"`
	AdminChat    AdminChat    `yaml:"admin_chat"`

	// Files maps logical names to opaque file identifiers used by the
	// chat transport.
	Files map[string]string `yaml:"files"`

	Payments Payments `yaml:"payments"`
}

// AppDatabase carries the string layouts for datetime columns
type AppDatabase struct {
	DatetimeFormat string `yaml:"datetime_format"`
	DateFormat     string `yaml:"date_format"`
	TimeFormat     string `yaml:"time_format"`
}

type Subscription struct {
	TestPeriodInDays int `yaml:"test_period_in_days"`
}

type Admins struct {
	IDs []int64 `yaml:"ids"`
}

type AdminChat struct {
	ID int64 `yaml:"id"`
}

type Payments struct {
	ProdamusSecretKey   string `yaml:"prodamus_secret_key"`
	ProdamusPaymentLink string `yaml:"prodamus_payment_link"`
}

// LoadApp reads and validates the yaml application config
func LoadApp(path string) (*App, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading app config %s: %w", path, err)
	}

	var app App
	if err := yaml.Unmarshal(data, &app); err != nil {
		return nil, fmt.Errorf("parsing app config %s: %w", path, err)
	}
	if err := app.Validate(); err != nil {
		return nil, fmt.Errorf("app config %s: %w", path, err)
	}
	return &app, nil
}

// Validate checks that every recognized option is present
func (a *App) Validate() error {
	if a.Database.DatetimeFormat == "" {
		return fmt.Errorf("database.datetime_format is required")
	}
	if a.Database.DateFormat == "" {
		return fmt.Errorf("database.date_format is required")
	}
	if a.Database.TimeFormat == "" {
		return fmt.Errorf("database.time_format is required")
	}
	if a.Subscription.TestPeriodInDays <= 0 {
		return fmt.Errorf("subscription.test_period_in_days must be positive")
	}
	if len(a.Admins.IDs) == 0 {
		return fmt.Errorf("admins.ids is required")
	}
	if a.AdminChat.ID == 0 {
		return fmt.Errorf("admin_chat.id is required")
	}
	if a.Payments.ProdamusSecretKey == "" {
		return fmt.Errorf("payments.prodamus_secret_key is required")
	}
	if a.Payments.ProdamusPaymentLink == "" {
		return fmt.Errorf("payments.prodamus_payment_link is required")
	}
	if _, err := url.ParseRequestURI(a.Payments.ProdamusPaymentLink); err != nil {
		return fmt.Errorf("payments.prodamus_payment_link: %w", err)
	}
	return nil
}
