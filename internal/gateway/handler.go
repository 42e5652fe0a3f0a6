// Package gateway is the line-oriented JSON/TCP front door for chat
// frontend processes: identified connections query forecasts, aspect
// events, void-of-course intervals and day suitability, and receive
// scheduled forecast pushes.
package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sssm0ulder/astrobot-sub000/internal/astro"
	"github.com/sssm0ulder/astrobot-sub000/internal/database"
	"github.com/sssm0ulder/astrobot-sub000/internal/forecast"
	"github.com/sssm0ulder/astrobot-sub000/internal/protocol"
)

// UserStore supplies subjects for identified users
type UserStore interface {
	GetUser(userID int64) (*database.User, error)
	GetLocation(id int64) (*database.Location, error)
}

// DailyCache memoizes computed forecasts between queries and pushes
type DailyCache interface {
	GetDaily(ctx context.Context, userID int64, date string) (*forecast.Daily, error)
	SetDaily(ctx context.Context, userID int64, date string, d *forecast.Daily) error
}

// Offsets resolves a location to its observed UTC offset
type Offsets interface {
	OffsetHoursAt(loc astro.Location, at time.Time) (int, error)
}

// Handler answers parsed client queries
type Handler struct {
	users   UserStore
	cache   DailyCache // may be nil
	offsets Offsets
	builder *forecast.Builder
	engine  *astro.Engine
	logger  *zap.Logger

	dateLayout string
	timeLayout string
}

// NewHandler creates a query handler
func NewHandler(users UserStore, cache DailyCache, offsets Offsets, builder *forecast.Builder, engine *astro.Engine, logger *zap.Logger, dateLayout, timeLayout string) *Handler {
	return &Handler{
		users:      users,
		cache:      cache,
		offsets:    offsets,
		builder:    builder,
		engine:     engine,
		logger:     logger,
		dateLayout: dateLayout,
		timeLayout: timeLayout,
	}
}

// Handle answers one parsed query for an identified user. The reply is
// always a ResultMessage; failures are carried in its Error field.
func (h *Handler) Handle(ctx context.Context, userID int64, msg interface{}) *protocol.ResultMessage {
	var (
		query protocol.MessageType
		text  string
		err   error
	)

	switch m := msg.(type) {
	case *protocol.ForecastRequest:
		query = protocol.MsgTypeForecast
		text, err = h.handleForecast(ctx, userID, m)
	case *protocol.EventsRequest:
		query = protocol.MsgTypeEvents
		text, err = h.handleEvents(ctx, userID, m)
	case *protocol.VoidMoonRequest:
		query = protocol.MsgTypeVoidMoon
		text, err = h.handleVoidMoon(ctx, userID, m)
	case *protocol.BestDayRequest:
		query = protocol.MsgTypeBestDay
		text, err = h.handleBestDay(ctx, userID, m)
	default:
		return protocol.NewErrorResult("", fmt.Errorf("unsupported query type %T", msg))
	}

	return h.result(query, text, err)
}

func (h *Handler) result(query protocol.MessageType, text string, err error) *protocol.ResultMessage {
	if err != nil {
		h.logger.Warn("query failed", zap.String("query", string(query)), zap.Error(err))
		return protocol.NewErrorResult(query, err)
	}
	return protocol.NewResultMessage(query, text)
}

// subject assembles the astrological subject and current-place offset
// for a user
func (h *Handler) subject(userID int64, at time.Time) (astro.Subject, int, error) {
	u, err := h.users.GetUser(userID)
	if err != nil {
		return astro.Subject{}, 0, fmt.Errorf("failed to load user: %w", err)
	}
	if u == nil {
		return astro.Subject{}, 0, fmt.Errorf("user %d not registered", userID)
	}

	birthLoc, err := h.users.GetLocation(u.BirthLocationID)
	if err != nil || birthLoc == nil {
		return astro.Subject{}, 0, fmt.Errorf("birth location %d unavailable", u.BirthLocationID)
	}
	curLoc, err := h.users.GetLocation(u.CurrentLocationID)
	if err != nil || curLoc == nil {
		return astro.Subject{}, 0, fmt.Errorf("current location %d unavailable", u.CurrentLocationID)
	}

	subject := astro.Subject{
		BirthAt:      u.BirthAt,
		BirthPlace:   astro.Location{Longitude: birthLoc.Longitude, Latitude: birthLoc.Latitude, Altitude: birthLoc.Altitude},
		CurrentPlace: astro.Location{Longitude: curLoc.Longitude, Latitude: curLoc.Latitude, Altitude: curLoc.Altitude},
	}

	offset, err := h.offsets.OffsetHoursAt(subject.CurrentPlace, at)
	if err != nil {
		return astro.Subject{}, 0, err
	}
	return subject, offset, nil
}

func (h *Handler) handleForecast(ctx context.Context, userID int64, req *protocol.ForecastRequest) (string, error) {
	date, err := time.Parse(protocol.DateLayout, req.Date)
	if err != nil {
		return "", fmt.Errorf("%w: bad date %q", astro.ErrDomain, req.Date)
	}

	if h.cache != nil {
		cached, err := h.cache.GetDaily(ctx, userID, req.Date)
		if err != nil {
			h.logger.Warn("forecast cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached.Render(h.dateLayout, h.timeLayout), nil
		}
	}

	subject, offset, err := h.subject(userID, date)
	if err != nil {
		return "", err
	}

	daily, err := h.builder.BuildDaily(ctx, subject, date, offset)
	if err != nil {
		return "", err
	}

	if h.cache != nil {
		if err := h.cache.SetDaily(ctx, userID, req.Date, daily); err != nil {
			h.logger.Warn("forecast cache write failed", zap.Error(err))
		}
	}

	return daily.Render(h.dateLayout, h.timeLayout), nil
}

func (h *Handler) handleEvents(ctx context.Context, userID int64, req *protocol.EventsRequest) (string, error) {
	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		return "", fmt.Errorf("%w: bad start %q", astro.ErrDomain, req.Start)
	}
	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		return "", fmt.Errorf("%w: bad end %q", astro.ErrDomain, req.End)
	}

	subject, offset, err := h.subject(userID, start)
	if err != nil {
		return "", err
	}

	events, err := h.engine.EventsOnPeriod(ctx, start.UTC(), end.UTC(), subject)
	if err != nil {
		return "", err
	}

	if len(events) == 0 {
		return "No aspects in this period", nil
	}

	local := time.Duration(offset) * time.Hour
	var b strings.Builder
	for _, ev := range events {
		line := fmt.Sprintf("%s %d° %s", ev.Transit, ev.Aspect, ev.Natal)
		if ev.HasPeak {
			line += fmt.Sprintf(" (peak %s)", ev.Peak.Add(local).Format(h.timeLayout))
		}
		b.WriteString(line + "\n")
	}
	return b.String(), nil
}

func (h *Handler) handleVoidMoon(ctx context.Context, userID int64, req *protocol.VoidMoonRequest) (string, error) {
	date, err := time.Parse(protocol.DateLayout, req.Date)
	if err != nil {
		return "", fmt.Errorf("%w: bad date %q", astro.ErrDomain, req.Date)
	}

	subject, offset, err := h.subject(userID, date)
	if err != nil {
		return "", err
	}

	period, err := h.engine.VoidMoonPeriod(ctx, date, subject, offset)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("Void-of-course moon: %s – %s",
		period.Start.Format(h.timeLayout), period.End.Format(h.timeLayout)), nil
}

func (h *Handler) handleBestDay(ctx context.Context, userID int64, req *protocol.BestDayRequest) (string, error) {
	date, err := time.Parse(protocol.DateLayout, req.Date)
	if err != nil {
		return "", fmt.Errorf("%w: bad date %q", astro.ErrDomain, req.Date)
	}
	activity, ok := forecast.ActivityByName(req.Activity)
	if !ok {
		return "", fmt.Errorf("%w: unknown activity %q", astro.ErrDomain, req.Activity)
	}

	subject, offset, err := h.subject(userID, date)
	if err != nil {
		return "", err
	}

	scores, best, err := h.builder.BestDay(ctx, subject, date, req.Days, offset, activity)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Best day for %s: %s\n", activity, scores[best].Date.Format(h.dateLayout))
	for _, s := range scores {
		fmt.Fprintf(&b, "%s: %+d\n", s.Date.Format(h.dateLayout), s.Score)
	}
	return b.String(), nil
}
