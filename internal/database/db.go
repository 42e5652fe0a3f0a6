package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// Connect establishes a connection to the database
func Connect(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &DB{db}, nil
}

// RunMigrations executes all SQL migration files in order
func (db *DB) RunMigrations(migrationsDir string) error {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		fmt.Printf("Running migration: %s\n", filename)

		filePath := filepath.Join(migrationsDir, filename)
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	fmt.Println("All migrations completed successfully")
	return nil
}

// UpsertLocation inserts a location and returns its id; an existing
// identical point is reused
func (db *DB) UpsertLocation(loc *Location) error {
	query := `
		INSERT INTO locations (title, longitude, latitude, altitude)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (longitude, latitude, altitude) DO UPDATE
		SET title = EXCLUDED.title
		RETURNING id
	`
	return db.QueryRow(query, loc.Title, loc.Longitude, loc.Latitude, loc.Altitude).Scan(&loc.ID)
}

// GetLocation retrieves a location by id
func (db *DB) GetLocation(id int64) (*Location, error) {
	query := `
		SELECT id, title, longitude, latitude, altitude, created_at
		FROM locations
		WHERE id = $1
	`

	var loc Location
	err := db.QueryRow(query, id).Scan(
		&loc.ID,
		&loc.Title,
		&loc.Longitude,
		&loc.Latitude,
		&loc.Altitude,
		&loc.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &loc, nil
}

// UpsertUser inserts or updates a user keyed by telegram user id
func (db *DB) UpsertUser(u *User) error {
	query := `
		INSERT INTO users (
			user_id, chat_id, name, birth_at, birth_location_id,
			current_location_id, send_at, subscribed_until, test_started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE
		SET chat_id = EXCLUDED.chat_id,
		    name = EXCLUDED.name,
		    birth_at = EXCLUDED.birth_at,
		    birth_location_id = EXCLUDED.birth_location_id,
		    current_location_id = EXCLUDED.current_location_id,
		    send_at = EXCLUDED.send_at,
		    subscribed_until = EXCLUDED.subscribed_until,
		    test_started_at = EXCLUDED.test_started_at,
		    updated_at = CURRENT_TIMESTAMP
	`
	_, err := db.Exec(query,
		u.UserID, u.ChatID, u.Name, u.BirthAt, u.BirthLocationID,
		u.CurrentLocationID, u.SendAt, u.SubscribedUntil, u.TestStartedAt)
	return err
}

// GetUser retrieves a user by telegram user id
func (db *DB) GetUser(userID int64) (*User, error) {
	query := `
		SELECT user_id, chat_id, name, birth_at, birth_location_id,
		       current_location_id, send_at, subscribed_until,
		       test_started_at, created_at, updated_at
		FROM users
		WHERE user_id = $1
	`

	var u User
	err := db.QueryRow(query, userID).Scan(
		&u.UserID,
		&u.ChatID,
		&u.Name,
		&u.BirthAt,
		&u.BirthLocationID,
		&u.CurrentLocationID,
		&u.SendAt,
		&u.SubscribedUntil,
		&u.TestStartedAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &u, nil
}

// GetActiveUsers retrieves users whose paid or test access has not lapsed
// by the given instant
func (db *DB) GetActiveUsers(now time.Time, testPeriodDays int) ([]*User, error) {
	query := `
		SELECT user_id, chat_id, name, birth_at, birth_location_id,
		       current_location_id, send_at, subscribed_until,
		       test_started_at, created_at, updated_at
		FROM users
		WHERE (subscribed_until IS NOT NULL AND subscribed_until > $1)
		   OR (test_started_at IS NOT NULL AND test_started_at + $2 * INTERVAL '1 day' > $1)
		ORDER BY user_id
	`

	rows, err := db.Query(query, now, testPeriodDays)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(
			&u.UserID,
			&u.ChatID,
			&u.Name,
			&u.BirthAt,
			&u.BirthLocationID,
			&u.CurrentLocationID,
			&u.SendAt,
			&u.SubscribedUntil,
			&u.TestStartedAt,
			&u.CreatedAt,
			&u.UpdatedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}

	return users, rows.Err()
}

// GetExpiringUsers retrieves active users whose access lapses within the
// given window; used for subscription reminders
func (db *DB) GetExpiringUsers(now time.Time, window time.Duration, testPeriodDays int) ([]*User, error) {
	query := `
		SELECT user_id, chat_id, name, birth_at, birth_location_id,
		       current_location_id, send_at, subscribed_until,
		       test_started_at, created_at, updated_at
		FROM users
		WHERE (subscribed_until IS NOT NULL
		       AND subscribed_until > $1 AND subscribed_until <= $2)
		   OR (test_started_at IS NOT NULL
		       AND test_started_at + $3 * INTERVAL '1 day' > $1
		       AND test_started_at + $3 * INTERVAL '1 day' <= $2)
		ORDER BY user_id
	`

	rows, err := db.Query(query, now, now.Add(window), testPeriodDays)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(
			&u.UserID,
			&u.ChatID,
			&u.Name,
			&u.BirthAt,
			&u.BirthLocationID,
			&u.CurrentLocationID,
			&u.SendAt,
			&u.SubscribedUntil,
			&u.TestStartedAt,
			&u.CreatedAt,
			&u.UpdatedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}

	return users, rows.Err()
}

// InsertPayment records a new payment
func (db *DB) InsertPayment(p *Payment) error {
	query := `
		INSERT INTO payments (user_id, order_id, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	return db.QueryRow(query, p.UserID, p.OrderID, p.Amount, p.Currency, p.Status).Scan(&p.ID)
}

// UpdatePaymentStatus transitions a payment by order id
func (db *DB) UpdatePaymentStatus(orderID, status string) error {
	query := `
		UPDATE payments
		SET status = $1, updated_at = CURRENT_TIMESTAMP
		WHERE order_id = $2
	`
	_, err := db.Exec(query, status, orderID)
	return err
}

// GetPromocode retrieves a promocode by code
func (db *DB) GetPromocode(code string) (*Promocode, error) {
	query := `
		SELECT code, bonus_days, uses_left, expires_at, created_at
		FROM promocodes
		WHERE code = $1
	`

	var p Promocode
	err := db.QueryRow(query, code).Scan(&p.Code, &p.BonusDays, &p.UsesLeft, &p.ExpiresAt, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// RedeemPromocode decrements the remaining uses; returns false when the
// code is exhausted or unknown
func (db *DB) RedeemPromocode(code string) (bool, error) {
	query := `
		UPDATE promocodes
		SET uses_left = uses_left - 1
		WHERE code = $1 AND uses_left > 0
	`
	result, err := db.Exec(query, code)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// UpsertInterpretation inserts or replaces one interpretation row
func (db *DB) UpsertInterpretation(in *Interpretation) error {
	query := `
		INSERT INTO interpretations (
			transit_planet, natal_planet, aspect, general, favorable, unfavorable
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (natal_planet, transit_planet, aspect) DO UPDATE
		SET general = EXCLUDED.general,
		    favorable = EXCLUDED.favorable,
		    unfavorable = EXCLUDED.unfavorable
	`
	_, err := db.Exec(query, in.TransitPlanet, in.NatalPlanet, in.Aspect,
		in.General, in.Favorable, in.Unfavorable)
	return err
}

// GetInterpretation retrieves one interpretation row; nil when the triple
// is unknown
func (db *DB) GetInterpretation(transitPlanet, natalPlanet string, aspect int) (*Interpretation, error) {
	query := `
		SELECT transit_planet, natal_planet, aspect, general, favorable, unfavorable
		FROM interpretations
		WHERE transit_planet = $1 AND natal_planet = $2 AND aspect = $3
	`

	var in Interpretation
	err := db.QueryRow(query, transitPlanet, natalPlanet, aspect).Scan(
		&in.TransitPlanet,
		&in.NatalPlanet,
		&in.Aspect,
		&in.General,
		&in.Favorable,
		&in.Unfavorable,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &in, nil
}

// UpsertMoonSignInterpretation inserts or replaces one moon-sign row
func (db *DB) UpsertMoonSignInterpretation(in *MoonSignInterpretation) error {
	query := `
		INSERT INTO moon_sign_interpretations (sign, general, favorable, unfavorable)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sign) DO UPDATE
		SET general = EXCLUDED.general,
		    favorable = EXCLUDED.favorable,
		    unfavorable = EXCLUDED.unfavorable
	`
	_, err := db.Exec(query, in.Sign, in.General, in.Favorable, in.Unfavorable)
	return err
}

// GetMoonSignInterpretation retrieves the row for a sign; nil when absent
func (db *DB) GetMoonSignInterpretation(sign string) (*MoonSignInterpretation, error) {
	query := `
		SELECT sign, general, favorable, unfavorable
		FROM moon_sign_interpretations
		WHERE sign = $1
	`

	var in MoonSignInterpretation
	err := db.QueryRow(query, sign).Scan(&in.Sign, &in.General, &in.Favorable, &in.Unfavorable)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &in, nil
}

// GetGeneralPrediction retrieves the canned text for a date string
func (db *DB) GetGeneralPrediction(date string) (*GeneralPrediction, error) {
	query := `
		SELECT id, date, text, created_at
		FROM general_predictions
		WHERE date = $1
	`

	var g GeneralPrediction
	err := db.QueryRow(query, date).Scan(&g.ID, &g.Date, &g.Text, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// InsertViewedPredictions records a batch of delivered forecasts
func (db *DB) InsertViewedPredictions(batch []*ViewedPrediction) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO viewed_predictions (user_id, date, dispatch_id, viewed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, date) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, v := range batch {
		if _, err := stmt.Exec(v.UserID, v.Date, v.DispatchID, v.ViewedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}
