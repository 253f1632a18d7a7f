package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type TherapyType string

const (
	TherapyTypeCBT         TherapyType = "cbt"
	TherapyTypeCouples     TherapyType = "couples"
	TherapyTypeMindfulness TherapyType = "mindfulness"
)

func (t TherapyType) Valid() bool {
	switch t {
	case TherapyTypeCBT, TherapyTypeCouples, TherapyTypeMindfulness:
		return true
	}
	return false
}

func (t TherapyType) Label() string {
	switch t {
	case TherapyTypeCBT:
		return "Cognitive Behavioral Therapy"
	case TherapyTypeCouples:
		return "Couples Counseling"
	case TherapyTypeMindfulness:
		return "Mindfulness Therapy"
	}
	return string(t)
}

type SessionFormat string

const (
	SessionFormatFaceToFace SessionFormat = "face_to_face"
	SessionFormatOnline     SessionFormat = "online"
)

func (f SessionFormat) Valid() bool {
	switch f {
	case SessionFormatFaceToFace, SessionFormatOnline:
		return true
	}
	return false
}

func (f SessionFormat) Label() string {
	switch f {
	case SessionFormatFaceToFace:
		return "Face to Face Session"
	case SessionFormatOnline:
		return "Online Session"
	}
	return string(f)
}

// SessionDuration is the length of every therapy session; slots are spaced so
// sessions never overlap.
const SessionDuration = time.Hour

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID            uuid.UUID     `bun:"id,pk,type:uuid"`
	FirstName     string        `bun:"first_name,notnull"`
	LastName      string        `bun:"last_name"`
	StartTime     time.Time     `bun:"start_time,notnull"`
	TherapyType   TherapyType   `bun:"therapy_type,notnull"`
	SessionFormat SessionFormat `bun:"session_format,notnull"`
	CancelCode    string        `bun:"cancel_code,notnull"`
	CreatedAt     time.Time     `bun:"created_at,notnull"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); !ok {
		return nil
	}
	if a.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		a.ID = id
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (a Appointment) EndTime() time.Time {
	return a.StartTime.Add(SessionDuration)
}

// DisplayName is the client name shown on shared views: first name plus last
// initial ("Steven J."), or just the first name when no last name was given.
func (a Appointment) DisplayName() string {
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + string([]rune(a.LastName)[0]) + "."
}
