package schedule

import "time"

// TimezoneName is the practice's civil timezone. All slot arithmetic happens
// in this zone regardless of where the server runs.
const TimezoneName = "Europe/Istanbul"

// SlotHours is the fixed daily schedule: a morning block and an afternoon
// block with a lunch break between. There are no holiday exceptions; the
// practice is closed on Sundays only.
var SlotHours = []int{9, 10, 11, 14, 15, 16}

func LoadLocation() (*time.Location, error) {
	return time.LoadLocation(TimezoneName)
}

func IsSunday(t time.Time, loc *time.Location) bool {
	return t.In(loc).Weekday() == time.Sunday
}

// DayOf truncates an instant to midnight of its civil date in loc.
func DayOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// SameDay reports whether two instants fall on the same civil date in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return DayOf(a, loc).Equal(DayOf(b, loc))
}

// CandidateSlots returns the slot start instants for the civil date of day,
// ascending. Sundays have no slots.
func CandidateSlots(day time.Time, loc *time.Location) []time.Time {
	local := day.In(loc)
	if local.Weekday() == time.Sunday {
		return nil
	}
	out := make([]time.Time, 0, len(SlotHours))
	for _, h := range SlotHours {
		out = append(out, time.Date(local.Year(), local.Month(), local.Day(), h, 0, 0, 0, loc))
	}
	return out
}

// Weeks holds the bookable days offered on the booking page, as midnight
// instants in the practice timezone.
type Weeks struct {
	ThisWeek []time.Time
	NextWeek []time.Time
}

// WeekBuckets buckets the bookable days around today: this week's
// Monday..Saturday trimmed to days on or after today, and the following
// Monday..Saturday in full. Sundays are never offered.
func WeekBuckets(today time.Time, loc *time.Location) Weeks {
	day := DayOf(today, loc)
	thisMonday := mondayOf(day, loc)
	nextMonday := thisMonday.AddDate(0, 0, 7)

	var w Weeks
	for i := 0; i < 6; i++ {
		d := thisMonday.AddDate(0, 0, i)
		if !d.Before(day) {
			w.ThisWeek = append(w.ThisWeek, d)
		}
	}
	for i := 0; i < 6; i++ {
		w.NextWeek = append(w.NextWeek, nextMonday.AddDate(0, 0, i))
	}
	return w
}

func mondayOf(day time.Time, loc *time.Location) time.Time {
	offset := int(day.In(loc).Weekday()) - 1
	if day.In(loc).Weekday() == time.Sunday {
		offset = 6
	}
	return day.AddDate(0, 0, -offset)
}
