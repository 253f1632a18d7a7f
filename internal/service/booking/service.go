package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"randevu/internal/domain"
	"randevu/internal/schedule"
	"randevu/internal/store"
)

var (
	// ErrInvalidTime covers both unparseable timestamps and instants that are
	// not exactly on the slot grid.
	ErrInvalidTime = errors.New("invalid time selection")
	ErrClosedDay   = errors.New("closed on sundays")
	// ErrExpired means the requested slot is not strictly in the future.
	ErrExpired      = errors.New("time no longer available")
	ErrCodeMismatch = errors.New("confirmation code mismatch")
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// Clock supplies the current time; injected so tests can pin "now" without
// touching process state.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

const maxNameLen = 80

const defaultRevealTTL = 15 * time.Minute

type Service struct {
	repo      store.AppointmentRepository
	sessions  store.SessionStore
	clock     Clock
	loc       *time.Location
	revealTTL time.Duration
}

func NewService(repo store.AppointmentRepository, sessions store.SessionStore, clock Clock, loc *time.Location, revealTTL time.Duration) *Service {
	if revealTTL <= 0 {
		revealTTL = defaultRevealTTL
	}
	return &Service{
		repo:      repo,
		sessions:  sessions,
		clock:     clock,
		loc:       loc,
		revealTTL: revealTTL,
	}
}

func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) now() time.Time {
	return s.clock.Now().In(s.loc)
}

// Weeks returns the days offered on the booking page: the rest of this week
// plus all of next week, Sundays excluded.
func (s *Service) Weeks() schedule.Weeks {
	return schedule.WeekBuckets(s.now(), s.loc)
}

// AvailableSlots returns the bookable slot instants for the given day: past
// days and Sundays yield nothing, same-day slots at or before now are dropped,
// and each remaining candidate is checked against the store.
func (s *Service) AvailableSlots(ctx context.Context, day time.Time) ([]time.Time, error) {
	now := s.now()
	d := schedule.DayOf(day, s.loc)
	if d.Before(schedule.DayOf(now, s.loc)) {
		return nil, nil
	}

	var out []time.Time
	for _, slot := range schedule.CandidateSlots(d, s.loc) {
		if schedule.SameDay(d, now, s.loc) && !slot.After(now) {
			continue
		}
		booked, err := s.repo.ExistsAt(ctx, slot)
		if err != nil {
			return nil, err
		}
		if booked {
			continue
		}
		out = append(out, slot)
	}
	return out, nil
}

// Slot is one entry of the booking grid; unavailable slots are kept so the
// page can render them disabled instead of hiding them.
type Slot struct {
	Start     time.Time
	Available bool
}

func (s *Service) AnnotatedSlots(ctx context.Context, day time.Time) ([]Slot, error) {
	now := s.now()
	d := schedule.DayOf(day, s.loc)
	if d.Before(schedule.DayOf(now, s.loc)) || schedule.IsSunday(d, s.loc) {
		return nil, nil
	}

	candidates := schedule.CandidateSlots(d, s.loc)
	out := make([]Slot, 0, len(candidates))
	for _, slot := range candidates {
		past := schedule.SameDay(d, now, s.loc) && !slot.After(now)
		booked, err := s.repo.ExistsAt(ctx, slot)
		if err != nil {
			return nil, err
		}
		out = append(out, Slot{Start: slot, Available: !past && !booked})
	}
	return out, nil
}

type BookInput struct {
	FirstName     string
	LastName      string
	TherapyType   string
	SessionFormat string
	// Start is the raw timestamp from the form, RFC3339 or a civil
	// "2006-01-02T15:04[:05]" interpreted in the practice timezone.
	Start     string
	SessionID string
}

// Book validates the request and attempts the atomic insert. The slot-grid and
// freshness checks are advisory; the storage unique constraint is what decides
// a race, surfacing as store.ErrSlotTaken.
func (s *Service) Book(ctx context.Context, in BookInput) (domain.Appointment, error) {
	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	if first == "" {
		return domain.Appointment{}, validationError("first_name is required")
	}
	if len([]rune(first)) > maxNameLen {
		return domain.Appointment{}, validationError("first_name too long")
	}
	if len([]rune(last)) > maxNameLen {
		return domain.Appointment{}, validationError("last_name too long")
	}
	therapy := domain.TherapyType(in.TherapyType)
	if !therapy.Valid() {
		return domain.Appointment{}, validationError("invalid therapy_type")
	}
	format := domain.SessionFormat(in.SessionFormat)
	if !format.Valid() {
		return domain.Appointment{}, validationError("invalid session_format")
	}

	start, err := s.parseStart(in.Start)
	if err != nil {
		return domain.Appointment{}, ErrInvalidTime
	}
	if schedule.IsSunday(start, s.loc) {
		return domain.Appointment{}, ErrClosedDay
	}
	if !onSlotGrid(start, schedule.CandidateSlots(start, s.loc)) {
		return domain.Appointment{}, ErrInvalidTime
	}
	if !start.After(s.now()) {
		return domain.Appointment{}, ErrExpired
	}

	code, err := domain.NewCancelCode()
	if err != nil {
		return domain.Appointment{}, err
	}

	appt, err := s.repo.Create(ctx, domain.Appointment{
		FirstName:     first,
		LastName:      last,
		StartTime:     start,
		TherapyType:   therapy,
		SessionFormat: format,
		CancelCode:    code,
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	if in.SessionID != "" {
		// The booking is already persisted; a lost reveal flag only means the
		// confirmation page will not display the code.
		_ = s.sessions.Put(ctx, revealKey(in.SessionID, appt.CancelCode), "1", s.revealTTL)
	}

	return appt, nil
}

func (s *Service) parseStart(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(s.loc), nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, raw, s.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidTime
}

func onSlotGrid(start time.Time, candidates []time.Time) bool {
	for _, c := range candidates {
		if start.Equal(c) {
			return true
		}
	}
	return false
}

// FindByCode resolves an appointment by its cancel code. An empty code is
// absent by definition and never reaches the store.
func (s *Service) FindByCode(ctx context.Context, code string) (domain.Appointment, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Appointment{}, store.ErrNotFound
	}
	return s.repo.FindByCode(ctx, code)
}

// CheckCode is a lightweight existence probe for client-side validation.
func (s *Service) CheckCode(ctx context.Context, code string) (bool, error) {
	_, err := s.FindByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ConsumeReveal reports whether the cancel code should be shown to this
// session, true at most once per booking.
func (s *Service) ConsumeReveal(ctx context.Context, sessionID, code string) (bool, error) {
	if sessionID == "" || code == "" {
		return false, nil
	}
	_, ok, err := s.sessions.Take(ctx, revealKey(sessionID, code))
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Cancel deletes the appointment matching code, but only when the supplied
// confirmation matches exactly; on mismatch the record is untouched.
func (s *Service) Cancel(ctx context.Context, code, confirm string) error {
	appt, err := s.FindByCode(ctx, code)
	if err != nil {
		return err
	}
	if strings.TrimSpace(confirm) != appt.CancelCode {
		return ErrCodeMismatch
	}
	return s.repo.Delete(ctx, appt.ID)
}

// ListAppointments enumerates every appointment, start time ascending.
func (s *Service) ListAppointments(ctx context.Context) ([]domain.Appointment, error) {
	return s.repo.List(ctx)
}

func revealKey(sessionID, code string) string {
	return "reveal:" + sessionID + ":" + code
}
