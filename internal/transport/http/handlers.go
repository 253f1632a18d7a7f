package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"randevu/internal/domain"
	"randevu/internal/schedule"
	"randevu/internal/service/booking"
	"randevu/internal/store"
)

const (
	// codeCookie mirrors the reference code back to the client so the
	// appointments page can prefill it.
	codeCookie    = "appointment_code"
	sessionCookie = "randevu_session"
)

type bookingService interface {
	Weeks() schedule.Weeks
	AnnotatedSlots(ctx context.Context, day time.Time) ([]booking.Slot, error)
	Book(ctx context.Context, in booking.BookInput) (domain.Appointment, error)
	FindByCode(ctx context.Context, code string) (domain.Appointment, error)
	ConsumeReveal(ctx context.Context, sessionID, code string) (bool, error)
	Cancel(ctx context.Context, code, confirm string) error
	CheckCode(ctx context.Context, code string) (bool, error)
	ListAppointments(ctx context.Context) ([]domain.Appointment, error)
	Location() *time.Location
}

type Handler struct {
	svc           bookingService
	log           *slog.Logger
	codeCookieAge time.Duration
}

func NewHandler(svc bookingService, log *slog.Logger, codeCookieAge time.Duration) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if codeCookieAge <= 0 {
		codeCookieAge = 30 * 24 * time.Hour
	}
	return &Handler{
		svc:           svc,
		log:           log.With(slog.String("component", "http.booking")),
		codeCookieAge: codeCookieAge,
	}
}

type slotPayload struct {
	Start     string `json:"start"`
	Hour      string `json:"hour"`
	Available bool   `json:"available"`
}

type dayPayload struct {
	Date    string        `json:"date"`
	Weekday string        `json:"weekday"`
	Slots   []slotPayload `json:"slots"`
}

type slotsResponse struct {
	ThisWeek []dayPayload `json:"this_week"`
	NextWeek []dayPayload `json:"next_week"`
}

// Slots renders the two-week booking grid: every candidate slot of every
// offered day, tagged available or not.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("route", "Slots"))

	weeks := h.svc.Weeks()
	resp := slotsResponse{ThisWeek: []dayPayload{}, NextWeek: []dayPayload{}}

	for _, day := range weeks.ThisWeek {
		p, err := h.dayPayload(r.Context(), day)
		if err != nil {
			log.Error("slot listing failed", slog.Any("err", err), slog.Time("day", day))
			h.writeError(w, http.StatusInternalServerError, "internal", "Something went wrong.")
			return
		}
		resp.ThisWeek = append(resp.ThisWeek, p)
	}
	for _, day := range weeks.NextWeek {
		p, err := h.dayPayload(r.Context(), day)
		if err != nil {
			log.Error("slot listing failed", slog.Any("err", err), slog.Time("day", day))
			h.writeError(w, http.StatusInternalServerError, "internal", "Something went wrong.")
			return
		}
		resp.NextWeek = append(resp.NextWeek, p)
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) dayPayload(ctx context.Context, day time.Time) (dayPayload, error) {
	slots, err := h.svc.AnnotatedSlots(ctx, day)
	if err != nil {
		return dayPayload{}, err
	}
	p := dayPayload{
		Date:    day.Format("2006-01-02"),
		Weekday: day.Weekday().String(),
		Slots:   make([]slotPayload, 0, len(slots)),
	}
	for _, s := range slots {
		p.Slots = append(p.Slots, slotPayload{
			Start:     s.Start.Format(time.RFC3339),
			Hour:      s.Start.Format("15:04"),
			Available: s.Available,
		})
	}
	return p, nil
}

type bookRequest struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	TherapyType   string `json:"therapy_type"`
	SessionFormat string `json:"session_format"`
	Start         string `json:"start"`
}

type appointmentPayload struct {
	ID            string `json:"id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	DisplayName   string `json:"display_name"`
	Start         string `json:"start"`
	End           string `json:"end"`
	TherapyType   string `json:"therapy_type"`
	TherapyLabel  string `json:"therapy_label"`
	SessionFormat string `json:"session_format"`
	FormatLabel   string `json:"format_label"`
	CreatedAt     string `json:"created_at"`
}

func (h *Handler) appointmentPayload(a domain.Appointment) appointmentPayload {
	loc := h.svc.Location()
	return appointmentPayload{
		ID:            a.ID.String(),
		FirstName:     a.FirstName,
		LastName:      a.LastName,
		DisplayName:   a.DisplayName(),
		Start:         a.StartTime.In(loc).Format(time.RFC3339),
		End:           a.EndTime().In(loc).Format(time.RFC3339),
		TherapyType:   string(a.TherapyType),
		TherapyLabel:  a.TherapyType.Label(),
		SessionFormat: string(a.SessionFormat),
		FormatLabel:   a.SessionFormat.Label(),
		CreatedAt:     a.CreatedAt.In(loc).Format(time.RFC3339),
	}
}

// Book submits a booking. On success the cancel code is returned once in the
// body, mirrored into a long-lived cookie, and a one-shot reveal flag is
// parked on the caller's session for the confirmation view.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("route", "Book"))

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_json"))
		h.writeError(w, http.StatusBadRequest, "bad_request", "Request body must be valid JSON.")
		return
	}

	sessionID := h.sessionID(w, r)

	appt, err := h.svc.Book(r.Context(), booking.BookInput{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		TherapyType:   req.TherapyType,
		SessionFormat: req.SessionFormat,
		Start:         req.Start,
		SessionID:     sessionID,
	})
	if err != nil {
		h.writeBookingError(w, log, err)
		return
	}

	log.Info(
		"appointment booked",
		slog.String("appointment_id", appt.ID.String()),
		slog.Time("start_time", appt.StartTime),
		slog.String("therapy_type", string(appt.TherapyType)),
	)

	http.SetCookie(w, &http.Cookie{
		Name:     codeCookie,
		Value:    appt.CancelCode,
		Path:     "/",
		MaxAge:   int(h.codeCookieAge.Seconds()),
		SameSite: http.SameSiteLaxMode,
	})

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"appointment": h.appointmentPayload(appt),
		"cancel_code": appt.CancelCode,
	})
}

func (h *Handler) writeBookingError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, booking.ErrInvalidTime):
		log.Warn("booking rejected", slog.String("reason", "invalid_time"))
		h.writeError(w, http.StatusBadRequest, "invalid_time", "Selected time is not valid.")
	case errors.Is(err, booking.ErrClosedDay):
		log.Warn("booking rejected", slog.String("reason", "closed_day"))
		h.writeError(w, http.StatusBadRequest, "closed_day", "Selected date is not available (Sunday).")
	case errors.Is(err, booking.ErrExpired):
		log.Warn("booking rejected", slog.String("reason", "expired"))
		h.writeError(w, http.StatusConflict, "expired", "This time is no longer available.")
	case errors.Is(err, store.ErrSlotTaken):
		log.Info("booking lost slot race")
		h.writeError(w, http.StatusConflict, "slot_taken", "That time slot was just booked by someone else. Please pick another.")
	default:
		var vErr *booking.ValidationError
		if errors.As(err, &vErr) {
			log.Warn("invalid request", slog.Any("err", err))
			h.writeError(w, http.StatusBadRequest, "validation", vErr.Error())
			return
		}
		log.Error("booking failed", slog.Any("err", err))
		h.writeError(w, http.StatusInternalServerError, "internal", "Something went wrong.")
	}
}

// Confirmation shows a freshly booked appointment. The cancel code rides along
// exactly once per session, on the first visit after booking.
func (h *Handler) Confirmation(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("route", "Confirmation"))
	code := chi.URLParam(r, "code")

	appt, err := h.svc.FindByCode(r.Context(), code)
	if err != nil {
		h.writeLookupError(w, log, err)
		return
	}

	show, err := h.svc.ConsumeReveal(r.Context(), h.sessionID(w, r), appt.CancelCode)
	if err != nil {
		log.Error("reveal lookup failed", slog.Any("err", err))
		show = false
	}

	resp := map[string]any{
		"appointment": h.appointmentPayload(appt),
		"show_code":   show,
	}
	if show {
		resp["cancel_code"] = appt.CancelCode
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Lookup resolves an appointment by code; an unknown or missing code is a
// normal outcome, not an error.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("route", "Lookup"))
	code := r.URL.Query().Get("code")

	appt, err := h.svc.FindByCode(r.Context(), code)
	if errors.Is(err, store.ErrNotFound) {
		h.writeJSON(w, http.StatusOK, map[string]any{"found": false})
		return
	}
	if err != nil {
		log.Error("lookup failed", slog.Any("err", err))
		h.writeError(w, http.StatusInternalServerError, "internal", "Something went wrong.")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"found":       true,
		"appointment": h.appointmentPayload(appt),
	})
}

type cancelRequest struct {
	ConfirmCode string `json:"confirm_code"`
}

// Cancel deletes an appointment after the client re-types its reference code;
// on success the code cookie is cleared.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("route", "Cancel"))
	code := chi.URLParam(r, "code")

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_json"))
		h.writeError(w, http.StatusBadRequest, "bad_request", "Request body must be valid JSON.")
		return
	}

	if err := h.svc.Cancel(r.Context(), code, req.ConfirmCode); err != nil {
		switch {
		case errors.Is(err, booking.ErrCodeMismatch):
			log.Warn("cancel rejected", slog.String("reason", "code_mismatch"))
			h.writeError(w, http.StatusBadRequest, "code_mismatch", "Reference code does not match. Please try again.")
		case errors.Is(err, store.ErrNotFound):
			log.Info("cancel for unknown code")
			h.writeError(w, http.StatusNotFound, "not_found", "Appointment not found.")
		default:
			log.Error("cancel failed", slog.Any("err", err))
			h.writeError(w, http.StatusInternalServerError, "internal", "Something went wrong.")
		}
		return
	}

	log.Info("appointment cancelled")

	http.SetCookie(w, &http.Cookie{
		Name:     codeCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		SameSite: http.SameSiteLaxMode,
	})

	h.writeJSON(w, http.StatusOK, map[string]any{"cancelled": true})
}

// Check is the client-side validation probe: does this code exist at all.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("route", "Check"))

	ok, err := h.svc.CheckCode(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		log.Error("check failed", slog.Any("err", err))
		h.writeError(w, http.StatusInternalServerError, "internal", "Something went wrong.")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": ok})
}

// AdminList enumerates every appointment, start time ascending.
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("route", "AdminList"))

	appts, err := h.svc.ListAppointments(r.Context())
	if err != nil {
		log.Error("list failed", slog.Any("err", err))
		h.writeError(w, http.StatusInternalServerError, "internal", "Something went wrong.")
		return
	}

	out := make([]appointmentPayload, 0, len(appts))
	for _, a := range appts {
		out = append(out, h.appointmentPayload(a))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"appointments": out})
}

func (h *Handler) writeLookupError(w http.ResponseWriter, log *slog.Logger, err error) {
	if errors.Is(err, store.ErrNotFound) {
		log.Info("appointment not found")
		h.writeError(w, http.StatusNotFound, "not_found", "Appointment not found.")
		return
	}
	log.Error("lookup failed", slog.Any("err", err))
	h.writeError(w, http.StatusInternalServerError, "internal", "Something went wrong.")
}

// sessionID returns the caller's session identifier, minting a cookie-backed
// one on first contact. The session only scopes ephemeral state such as the
// one-shot code reveal.
func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	id := hex.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("response encode failed", slog.Any("err", err))
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}
