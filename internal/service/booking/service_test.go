package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"randevu/internal/domain"
	"randevu/internal/schedule"
	"randevu/internal/store"
)

type fakeRepo struct {
	createFn     func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	existsAtFn   func(ctx context.Context, start time.Time) (bool, error)
	findByCodeFn func(ctx context.Context, code string) (domain.Appointment, error)
	deleteFn     func(ctx context.Context, id uuid.UUID) error
	listFn       func(ctx context.Context) ([]domain.Appointment, error)
}

func (f *fakeRepo) Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if f.createFn == nil {
		panic("Create not configured")
	}
	return f.createFn(ctx, appt)
}

func (f *fakeRepo) ExistsAt(ctx context.Context, start time.Time) (bool, error) {
	if f.existsAtFn == nil {
		return false, nil
	}
	return f.existsAtFn(ctx, start)
}

func (f *fakeRepo) FindByCode(ctx context.Context, code string) (domain.Appointment, error) {
	if f.findByCodeFn == nil {
		panic("FindByCode not configured")
	}
	return f.findByCodeFn(ctx, code)
}

func (f *fakeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if f.deleteFn == nil {
		panic("Delete not configured")
	}
	return f.deleteFn(ctx, id)
}

func (f *fakeRepo) List(ctx context.Context) ([]domain.Appointment, error) {
	if f.listFn == nil {
		panic("List not configured")
	}
	return f.listFn(ctx)
}

type fakeSessions struct {
	values map[string]string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{values: make(map[string]string)}
}

func (f *fakeSessions) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	f.values[key] = value
	return nil
}

func (f *fakeSessions) Take(ctx context.Context, key string) (string, bool, error) {
	val, ok := f.values[key]
	if ok {
		delete(f.values, key)
	}
	return val, ok, nil
}

func istanbul(t *testing.T) *time.Location {
	t.Helper()
	loc, err := schedule.LoadLocation()
	if err != nil {
		t.Fatalf("LoadLocation error: %v", err)
	}
	return loc
}

// newService pins "now" to Monday 2026-03-02 10:00 Istanbul unless overridden.
func newService(t *testing.T, repo *fakeRepo, sessions *fakeSessions, now time.Time) *Service {
	t.Helper()
	loc := istanbul(t)
	if now.IsZero() {
		now = time.Date(2026, 3, 2, 10, 0, 0, 0, loc)
	}
	if sessions == nil {
		sessions = newFakeSessions()
	}
	return NewService(repo, sessions, ClockFunc(func() time.Time { return now }), loc, 0)
}

func TestBook_Success(t *testing.T) {
	loc := istanbul(t)
	var created domain.Appointment

	repo := &fakeRepo{
		createFn: func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
			created = appt
			appt.ID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
			return appt, nil
		},
	}
	sessions := newFakeSessions()
	svc := newService(t, repo, sessions, time.Time{})

	appt, err := svc.Book(context.Background(), BookInput{
		FirstName:     "  Ada ",
		LastName:      "Lovelace",
		TherapyType:   "cbt",
		SessionFormat: "online",
		Start:         "2026-03-03T11:00:00+03:00",
		SessionID:     "sess-1",
	})
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}

	if created.FirstName != "Ada" {
		t.Fatalf("first_name = %q, want %q", created.FirstName, "Ada")
	}
	want := time.Date(2026, 3, 3, 11, 0, 0, 0, loc)
	if !created.StartTime.Equal(want) {
		t.Fatalf("start_time = %v, want %v", created.StartTime, want)
	}
	if len(appt.CancelCode) != 8 {
		t.Fatalf("len(cancel_code) = %d, want 8", len(appt.CancelCode))
	}
	if len(sessions.values) != 1 {
		t.Fatalf("reveal flags = %d, want 1", len(sessions.values))
	}
}

func TestBook_AcceptsCivilTimestamp(t *testing.T) {
	loc := istanbul(t)
	var created domain.Appointment

	repo := &fakeRepo{
		createFn: func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
			created = appt
			return appt, nil
		},
	}
	svc := newService(t, repo, nil, time.Time{})

	_, err := svc.Book(context.Background(), BookInput{
		FirstName:     "Ada",
		TherapyType:   "mindfulness",
		SessionFormat: "face_to_face",
		Start:         "2026-03-03T14:00",
	})
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}
	want := time.Date(2026, 3, 3, 14, 0, 0, 0, loc)
	if !created.StartTime.Equal(want) {
		t.Fatalf("start_time = %v, want %v", created.StartTime, want)
	}
}

func TestBook_ValidationFailures(t *testing.T) {
	repo := &fakeRepo{
		createFn: func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
			t.Fatalf("Create must not be reached")
			return appt, nil
		},
	}
	svc := newService(t, repo, nil, time.Time{})

	base := BookInput{
		FirstName:     "Ada",
		LastName:      "Lovelace",
		TherapyType:   "cbt",
		SessionFormat: "online",
		Start:         "2026-03-03T11:00:00+03:00",
	}

	tests := []struct {
		name    string
		mutate  func(in *BookInput)
		wantErr error
	}{
		{
			name:    "unparseable timestamp",
			mutate:  func(in *BookInput) { in.Start = "next tuesday" },
			wantErr: ErrInvalidTime,
		},
		{
			name:    "sunday",
			mutate:  func(in *BookInput) { in.Start = "2026-03-08T10:00:00+03:00" },
			wantErr: ErrClosedDay,
		},
		{
			name:    "off-grid hour",
			mutate:  func(in *BookInput) { in.Start = "2026-03-03T12:00:00+03:00" },
			wantErr: ErrInvalidTime,
		},
		{
			name:    "off-grid minutes",
			mutate:  func(in *BookInput) { in.Start = "2026-03-03T11:30:00+03:00" },
			wantErr: ErrInvalidTime,
		},
		{
			name:    "slot equal to now is expired",
			mutate:  func(in *BookInput) { in.Start = "2026-03-02T10:00:00+03:00" },
			wantErr: ErrExpired,
		},
		{
			name:    "slot in the past is expired",
			mutate:  func(in *BookInput) { in.Start = "2026-03-02T09:00:00+03:00" },
			wantErr: ErrExpired,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.mutate(&in)
			_, err := svc.Book(context.Background(), in)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Book err = %v, want %v", err, tc.wantErr)
			}
		})
	}

	t.Run("missing first name", func(t *testing.T) {
		in := base
		in.FirstName = "   "
		_, err := svc.Book(context.Background(), in)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("error type = %T, want *ValidationError", err)
		}
	})

	t.Run("unknown therapy type", func(t *testing.T) {
		in := base
		in.TherapyType = "hypnosis"
		_, err := svc.Book(context.Background(), in)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("error type = %T, want *ValidationError", err)
		}
	})
}

func TestBook_PropagatesSlotTaken(t *testing.T) {
	repo := &fakeRepo{
		createFn: func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
			return domain.Appointment{}, store.ErrSlotTaken
		},
	}
	svc := newService(t, repo, nil, time.Time{})

	_, err := svc.Book(context.Background(), BookInput{
		FirstName:     "Ada",
		TherapyType:   "cbt",
		SessionFormat: "online",
		Start:         "2026-03-03T11:00:00+03:00",
	})
	if !errors.Is(err, store.ErrSlotTaken) {
		t.Fatalf("Book err = %v, want %v", err, store.ErrSlotTaken)
	}
}

func TestAvailableSlots_FiltersPastAndBooked(t *testing.T) {
	loc := istanbul(t)
	now := time.Date(2026, 3, 2, 10, 30, 0, 0, loc)
	booked := time.Date(2026, 3, 2, 15, 0, 0, 0, loc)

	repo := &fakeRepo{
		existsAtFn: func(ctx context.Context, start time.Time) (bool, error) {
			return start.Equal(booked), nil
		},
	}
	svc := newService(t, repo, nil, now)

	slots, err := svc.AvailableSlots(context.Background(), now)
	if err != nil {
		t.Fatalf("AvailableSlots error: %v", err)
	}

	wantHours := []int{11, 14, 16}
	if len(slots) != len(wantHours) {
		t.Fatalf("len(slots) = %d, want %d (%v)", len(slots), len(wantHours), slots)
	}
	for i, s := range slots {
		if s.In(loc).Hour() != wantHours[i] {
			t.Fatalf("slot[%d] hour = %d, want %d", i, s.In(loc).Hour(), wantHours[i])
		}
		if !s.After(now) {
			t.Fatalf("slot %v not after now %v", s, now)
		}
	}
}

func TestAvailableSlots_PastDayEmpty(t *testing.T) {
	loc := istanbul(t)
	repo := &fakeRepo{
		existsAtFn: func(ctx context.Context, start time.Time) (bool, error) {
			t.Fatalf("store must not be queried for past days")
			return false, nil
		},
	}
	svc := newService(t, repo, nil, time.Time{})

	slots, err := svc.AvailableSlots(context.Background(), time.Date(2026, 2, 27, 0, 0, 0, 0, loc))
	if err != nil {
		t.Fatalf("AvailableSlots error: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("len(slots) = %d, want 0", len(slots))
	}
}

func TestAvailableSlots_FutureDayFull(t *testing.T) {
	loc := istanbul(t)
	repo := &fakeRepo{}
	svc := newService(t, repo, nil, time.Time{})

	slots, err := svc.AvailableSlots(context.Background(), time.Date(2026, 3, 5, 0, 0, 0, 0, loc))
	if err != nil {
		t.Fatalf("AvailableSlots error: %v", err)
	}
	if len(slots) != len(schedule.SlotHours) {
		t.Fatalf("len(slots) = %d, want %d", len(slots), len(schedule.SlotHours))
	}
}

func TestAnnotatedSlots_KeepsFullGrid(t *testing.T) {
	loc := istanbul(t)
	now := time.Date(2026, 3, 2, 10, 30, 0, 0, loc)
	booked := time.Date(2026, 3, 2, 15, 0, 0, 0, loc)

	repo := &fakeRepo{
		existsAtFn: func(ctx context.Context, start time.Time) (bool, error) {
			return start.Equal(booked), nil
		},
	}
	svc := newService(t, repo, nil, now)

	slots, err := svc.AnnotatedSlots(context.Background(), now)
	if err != nil {
		t.Fatalf("AnnotatedSlots error: %v", err)
	}
	if len(slots) != len(schedule.SlotHours) {
		t.Fatalf("len(slots) = %d, want %d", len(slots), len(schedule.SlotHours))
	}

	wantAvailable := map[int]bool{9: false, 10: false, 11: true, 14: true, 15: false, 16: true}
	for _, s := range slots {
		h := s.Start.In(loc).Hour()
		if s.Available != wantAvailable[h] {
			t.Fatalf("slot %02d:00 available = %v, want %v", h, s.Available, wantAvailable[h])
		}
	}
}

func TestAnnotatedSlots_SundayNil(t *testing.T) {
	loc := istanbul(t)
	svc := newService(t, &fakeRepo{}, nil, time.Time{})

	slots, err := svc.AnnotatedSlots(context.Background(), time.Date(2026, 3, 8, 0, 0, 0, 0, loc))
	if err != nil {
		t.Fatalf("AnnotatedSlots error: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("len(slots) = %d, want 0 for Sunday", len(slots))
	}
}

func TestWeeks_StartsToday(t *testing.T) {
	loc := istanbul(t)
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, loc)
	svc := newService(t, &fakeRepo{}, nil, now)

	w := svc.Weeks()
	if len(w.ThisWeek) == 0 || !w.ThisWeek[0].Equal(schedule.DayOf(now, loc)) {
		t.Fatalf("ThisWeek[0] = %v, want today", w.ThisWeek)
	}
	if len(w.NextWeek) != 6 {
		t.Fatalf("len(NextWeek) = %d, want 6", len(w.NextWeek))
	}
}

func TestFindByCode_EmptyCodeSkipsStore(t *testing.T) {
	repo := &fakeRepo{
		findByCodeFn: func(ctx context.Context, code string) (domain.Appointment, error) {
			t.Fatalf("store must not be queried for empty code")
			return domain.Appointment{}, nil
		},
	}
	svc := newService(t, repo, nil, time.Time{})

	_, err := svc.FindByCode(context.Background(), "   ")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("FindByCode err = %v, want %v", err, store.ErrNotFound)
	}
}

func TestConsumeReveal_OneShot(t *testing.T) {
	repo := &fakeRepo{
		createFn: func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
			return appt, nil
		},
	}
	sessions := newFakeSessions()
	svc := newService(t, repo, sessions, time.Time{})

	appt, err := svc.Book(context.Background(), BookInput{
		FirstName:     "Ada",
		TherapyType:   "cbt",
		SessionFormat: "online",
		Start:         "2026-03-03T11:00:00+03:00",
		SessionID:     "sess-1",
	})
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}

	ok, err := svc.ConsumeReveal(context.Background(), "sess-1", appt.CancelCode)
	if err != nil {
		t.Fatalf("ConsumeReveal error: %v", err)
	}
	if !ok {
		t.Fatalf("first ConsumeReveal = false, want true")
	}

	ok, err = svc.ConsumeReveal(context.Background(), "sess-1", appt.CancelCode)
	if err != nil {
		t.Fatalf("ConsumeReveal error: %v", err)
	}
	if ok {
		t.Fatalf("second ConsumeReveal = true, want false")
	}
}

func TestConsumeReveal_OtherSessionSeesNothing(t *testing.T) {
	sessions := newFakeSessions()
	repo := &fakeRepo{
		createFn: func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
			return appt, nil
		},
	}
	svc := newService(t, repo, sessions, time.Time{})

	appt, err := svc.Book(context.Background(), BookInput{
		FirstName:     "Ada",
		TherapyType:   "cbt",
		SessionFormat: "online",
		Start:         "2026-03-03T11:00:00+03:00",
		SessionID:     "sess-1",
	})
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}

	ok, err := svc.ConsumeReveal(context.Background(), "sess-2", appt.CancelCode)
	if err != nil {
		t.Fatalf("ConsumeReveal error: %v", err)
	}
	if ok {
		t.Fatalf("foreign session ConsumeReveal = true, want false")
	}
}

func TestCancel_MismatchKeepsRecord(t *testing.T) {
	appt := domain.Appointment{
		ID:         uuid.MustParse("00000000-0000-0000-0000-000000000002"),
		CancelCode: "ABC123",
	}
	repo := &fakeRepo{
		findByCodeFn: func(ctx context.Context, code string) (domain.Appointment, error) {
			return appt, nil
		},
		deleteFn: func(ctx context.Context, id uuid.UUID) error {
			t.Fatalf("Delete must not be reached on mismatch")
			return nil
		},
	}
	svc := newService(t, repo, nil, time.Time{})

	err := svc.Cancel(context.Background(), "ABC123", "WRONG")
	if !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("Cancel err = %v, want %v", err, ErrCodeMismatch)
	}
}

func TestCancel_Success(t *testing.T) {
	appt := domain.Appointment{
		ID:         uuid.MustParse("00000000-0000-0000-0000-000000000003"),
		CancelCode: "ABC123",
	}
	var deleted uuid.UUID
	repo := &fakeRepo{
		findByCodeFn: func(ctx context.Context, code string) (domain.Appointment, error) {
			return appt, nil
		},
		deleteFn: func(ctx context.Context, id uuid.UUID) error {
			deleted = id
			return nil
		},
	}
	svc := newService(t, repo, nil, time.Time{})

	if err := svc.Cancel(context.Background(), "ABC123", "ABC123"); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if deleted != appt.ID {
		t.Fatalf("deleted id = %s, want %s", deleted, appt.ID)
	}
}

func TestCancel_UnknownCode(t *testing.T) {
	repo := &fakeRepo{
		findByCodeFn: func(ctx context.Context, code string) (domain.Appointment, error) {
			return domain.Appointment{}, store.ErrNotFound
		},
	}
	svc := newService(t, repo, nil, time.Time{})

	if err := svc.Cancel(context.Background(), "nope", "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Cancel err = %v, want %v", err, store.ErrNotFound)
	}
}

func TestCheckCode(t *testing.T) {
	repo := &fakeRepo{
		findByCodeFn: func(ctx context.Context, code string) (domain.Appointment, error) {
			if code == "known" {
				return domain.Appointment{CancelCode: code}, nil
			}
			return domain.Appointment{}, store.ErrNotFound
		},
	}
	svc := newService(t, repo, nil, time.Time{})

	ok, err := svc.CheckCode(context.Background(), "known")
	if err != nil || !ok {
		t.Fatalf("CheckCode(known) = %v, %v, want true, nil", ok, err)
	}
	ok, err = svc.CheckCode(context.Background(), "unknown")
	if err != nil || ok {
		t.Fatalf("CheckCode(unknown) = %v, %v, want false, nil", ok, err)
	}
	ok, err = svc.CheckCode(context.Background(), "")
	if err != nil || ok {
		t.Fatalf("CheckCode(empty) = %v, %v, want false, nil", ok, err)
	}
}
