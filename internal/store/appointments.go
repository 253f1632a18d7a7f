package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"randevu/internal/domain"
)

// AppointmentRepository is the persistence collaborator of the booking core.
// Create must be a single atomic insert: the double-booking guarantee rests on
// the storage-level uniqueness of start_time, never on a prior read.
type AppointmentRepository interface {
	Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	ExistsAt(ctx context.Context, start time.Time) (bool, error)
	FindByCode(ctx context.Context, code string) (domain.Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]domain.Appointment, error)
}
