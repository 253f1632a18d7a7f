package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"randevu/internal/domain"
	"randevu/internal/store"
)

const (
	startTimeConstraint  = "appointments_start_time_key"
	cancelCodeConstraint = "appointments_cancel_code_key"
)

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

// Create is a single INSERT. The unique constraint on start_time is the only
// double-booking guard; there is no existence check first.
func (r *AppointmentRepo) Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	if _, err := r.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Appointment{}, insertError(err)
	}
	return m, nil
}

// insertError maps postgres unique violations onto store sentinels so callers
// never inspect driver errors.
func insertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case startTimeConstraint:
			return store.ErrSlotTaken
		case cancelCodeConstraint:
			return store.ErrCodeConflict
		}
	}
	return err
}

func (r *AppointmentRepo) ExistsAt(ctx context.Context, start time.Time) (bool, error) {
	return r.db.NewSelect().
		Model((*domain.Appointment)(nil)).
		Where("start_time = ?", start).
		Exists(ctx)
}

func (r *AppointmentRepo) FindByCode(ctx context.Context, code string) (domain.Appointment, error) {
	var a domain.Appointment
	err := r.db.NewSelect().
		Model(&a).
		Where("cancel_code = ?", code).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Appointment{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Appointment{}, err
	}
	return a, nil
}

func (r *AppointmentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*domain.Appointment)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *AppointmentRepo) List(ctx context.Context) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
