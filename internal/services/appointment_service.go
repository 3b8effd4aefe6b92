// Package services – AppointmentService
//
// AppointmentService owns the clinic agenda. Every write that can move a
// booking (create, replace with a new slot, patch) runs the read-check-write
// sequence under a per-day lock and inside one transaction, so two concurrent
// requests can never both book overlapping slots.
//
// Observability: public methods open OpenTelemetry spans; refused bookings are
// counted in Prometheus and logged at warn level through the request logger.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-dental-backend/internal/domain"
	"github.com/tbourn/go-dental-backend/internal/repo"
	"github.com/tbourn/go-dental-backend/internal/scheduling"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// IdempotencyScopeAppointments scopes Idempotency-Key records for bookings.
const IdempotencyScopeAppointments = "appointments"

const maxUpdateAttempts = 3

// errDayMoved signals that the appointment changed day between the unlocked
// read and the locked one; the update is retried under the new day's lock.
var errDayMoved = errors.New("appointment moved to another day")

// AppointmentService manages bookings on the agenda.
type AppointmentService struct {
	DB     *gorm.DB
	Locker scheduling.Locker

	// Location is the clinic zone used to turn date+time into instants.
	Location *time.Location
	Hours    scheduling.BusinessHours

	// EnforceHoursOnUpdate extends the business-hours gate to replace and
	// patch. Off by default: only new bookings are gated.
	EnforceHoursOnUpdate bool

	// DefaultDuration is stored when a booking carries no duration.
	DefaultDuration int
	// LockTimeout bounds how long a write waits for the day lock.
	LockTimeout time.Duration
	// IdempotencyTTL is how long an Idempotency-Key replays its booking.
	IdempotencyTTL time.Duration
}

// NewAppointmentService returns a service with the default clinic policy:
// UTC, 07:00–22:00, 60 minute bookings, in-process locks.
func NewAppointmentService(db *gorm.DB, locker scheduling.Locker, loc *time.Location) *AppointmentService {
	if locker == nil {
		locker = scheduling.NewLocalLocker()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AppointmentService{
		DB:              db,
		Locker:          locker,
		Location:        loc,
		Hours:           scheduling.DefaultBusinessHours,
		DefaultDuration: domain.DefaultDurationMinutes,
		LockTimeout:     5 * time.Second,
		IdempotencyTTL:  24 * time.Hour,
	}
}

// NewAppointment is the input of Create. Value is a pointer so that an
// absent price can be told apart from a free appointment.
type NewAppointment struct {
	Date             string
	Time             string
	Duration         int
	Title            string
	ClientID         string
	ClientName       string
	Value            *float64
	Note             string
	ProfessionalID   *string
	ProfessionalName *string
}

// AppointmentChanges carries the fields present in a replace or patch
// request; nil means "not sent".
type AppointmentChanges struct {
	Date             *string
	Time             *string
	Duration         *int
	Title            *string
	ClientID         *string
	ClientName       *string
	Value            *float64
	Note             *string
	ProfessionalID   *string
	ProfessionalName *string
	Completed        *bool
}

// TouchesSlot reports whether the changes move or resize the booking.
// Empty date or time strings count as absent.
func (c AppointmentChanges) TouchesSlot() bool {
	return present(c.Date) || present(c.Time) || c.Duration != nil
}

func present(s *string) bool { return s != nil && strings.TrimSpace(*s) != "" }

// Create books a new appointment after the business-hours gate and the
// conflict check against every appointment on the same date.
func (s *AppointmentService) Create(ctx context.Context, in NewAppointment) (*domain.Appointment, error) {
	a, _, err := s.create(ctx, "", "", in)
	return a, err
}

// CreateIdempotent is Create keyed by (userID, key). A repeated key returns
// the appointment booked the first time and replayed=true.
func (s *AppointmentService) CreateIdempotent(ctx context.Context, userID, key string, in NewAppointment) (a *domain.Appointment, replayed bool, err error) {
	return s.create(ctx, userID, strings.TrimSpace(key), in)
}

func (s *AppointmentService) create(ctx context.Context, userID, key string, in NewAppointment) (*domain.Appointment, bool, error) {
	tr := otel.Tracer("services/AppointmentService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("appointment.date", in.Date),
			attribute.String("appointment.time", in.Time),
			attribute.Bool("idempotent", key != ""),
		),
	)
	defer span.End()

	a, err := s.prepare(ctx, in)
	if err != nil {
		return nil, false, err
	}

	replayed := false
	err = s.withDayLock(ctx, a.Date, func(tx *gorm.DB) error {
		if key != "" {
			prev, err := s.replay(ctx, tx, userID, key)
			if err != nil {
				return err
			}
			if prev != nil {
				a, replayed = prev, true
				return nil
			}
		}
		if err := s.checkFree(ctx, tx, "create", a.Date, a.Time, a.Duration, ""); err != nil {
			return err
		}
		if err := repo.CreateAppointment(ctx, tx, a); err != nil {
			return err
		}
		if key != "" {
			idem := repo.IdemKey{UserID: userID, Scope: IdempotencyScopeAppointments, Key: key}
			if _, err := repo.SaveIdempotency(ctx, tx, idem, a.ID, http.StatusCreated, time.Now().UTC(), s.IdempotencyTTL); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	span.SetAttributes(attribute.String("appointment.id", a.ID), attribute.Bool("replayed", replayed))
	return a, replayed, nil
}

// replay returns the appointment recorded for key, or nil when there is none.
// A record whose appointment was deleted since is dropped so the key books
// again.
func (s *AppointmentService) replay(ctx context.Context, tx *gorm.DB, userID, key string) (*domain.Appointment, error) {
	idem := repo.IdemKey{UserID: userID, Scope: IdempotencyScopeAppointments, Key: key}
	rec, err := repo.GetIdempotency(ctx, tx, idem, time.Now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	prev, err := repo.GetAppointment(ctx, tx, rec.ResourceID)
	if err == nil {
		return prev, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	return nil, repo.DeleteIdempotency(ctx, tx, idem)
}

// prepare validates a create request and builds the row to insert.
func (s *AppointmentService) prepare(ctx context.Context, in NewAppointment) (*domain.Appointment, error) {
	var miss []string
	for _, f := range []struct{ name, v string }{
		{"date", in.Date},
		{"time", in.Time},
		{"title", in.Title},
		{"client_id", in.ClientID},
		{"client_name", in.ClientName},
	} {
		if strings.TrimSpace(f.v) == "" {
			miss = append(miss, f.name)
		}
	}
	if in.Value == nil {
		miss = append(miss, "value")
	}
	if len(miss) > 0 {
		return nil, missing(miss...)
	}

	date, clock, err := normalizeSlot(in.Date, in.Time)
	if err != nil {
		return nil, err
	}
	if in.Duration < 0 {
		return nil, invalid("duration", "must be positive")
	}
	if *in.Value < 0 {
		return nil, invalid("value", "must not be negative")
	}
	if err := s.gate(ctx, clock); err != nil {
		return nil, err
	}

	return &domain.Appointment{
		Date:             date,
		Time:             clock,
		Duration:         s.duration(in.Duration),
		Title:            strings.TrimSpace(in.Title),
		ClientID:         strings.TrimSpace(in.ClientID),
		ClientName:       strings.TrimSpace(in.ClientName),
		Value:            *in.Value,
		Note:             in.Note,
		ProfessionalID:   blankToNil(in.ProfessionalID),
		ProfessionalName: blankToNil(in.ProfessionalName),
	}, nil
}

// Replace applies the sent fields. The conflict check runs only when the
// date, time or duration is among them; the stored values fill in the rest.
func (s *AppointmentService) Replace(ctx context.Context, id string, ch AppointmentChanges) (*domain.Appointment, error) {
	tr := otel.Tracer("services/AppointmentService")
	ctx, span := tr.Start(ctx, "Replace",
		trace.WithAttributes(
			attribute.String("appointment.id", id),
			attribute.Bool("slot.changed", ch.TouchesSlot()),
		),
	)
	defer span.End()

	return s.update(ctx, "replace", id, ch, ch.TouchesSlot())
}

// Patch applies the sent fields, including completed, and always re-checks
// the merged slot against the rest of the day.
func (s *AppointmentService) Patch(ctx context.Context, id string, ch AppointmentChanges) (*domain.Appointment, error) {
	tr := otel.Tracer("services/AppointmentService")
	ctx, span := tr.Start(ctx, "Patch",
		trace.WithAttributes(attribute.String("appointment.id", id)),
	)
	defer span.End()

	return s.update(ctx, "patch", id, ch, true)
}

// Complete marks the appointment as done. No conflict check is involved.
func (s *AppointmentService) Complete(ctx context.Context, id string) (*domain.Appointment, error) {
	tr := otel.Tracer("services/AppointmentService")
	ctx, span := tr.Start(ctx, "Complete",
		trace.WithAttributes(attribute.String("appointment.id", id)),
	)
	defer span.End()

	if err := repo.UpdateAppointment(ctx, s.DB, id, map[string]any{"completed": true}); err != nil {
		return nil, appointmentErr(err)
	}
	a, err := repo.GetAppointment(ctx, s.DB, id)
	return a, appointmentErr(err)
}

func (s *AppointmentService) update(ctx context.Context, op, id string, ch AppointmentChanges, check bool) (*domain.Appointment, error) {
	cols, err := s.columns(ch)
	if err != nil {
		return nil, err
	}

	if !check {
		if err := repo.UpdateAppointment(ctx, s.DB, id, cols); err != nil {
			return nil, appointmentErr(err)
		}
		a, err := repo.GetAppointment(ctx, s.DB, id)
		return a, appointmentErr(err)
	}

	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		cur, err := repo.GetAppointment(ctx, s.DB, id)
		if err != nil {
			return nil, appointmentErr(err)
		}
		day := cur.Date
		if d, ok := cols["date"].(string); ok {
			day = d
		}

		var out *domain.Appointment
		err = s.withDayLock(ctx, day, func(tx *gorm.DB) error {
			cur, err := repo.GetAppointment(ctx, tx, id)
			if err != nil {
				return err
			}
			if _, moving := cols["date"]; !moving && cur.Date != day {
				return errDayMoved
			}

			clock := cur.Time
			if c, ok := cols["time"].(string); ok {
				clock = c
			}
			dur := cur.Duration
			if d, ok := cols["duration"].(int); ok {
				dur = d
			}
			if s.EnforceHoursOnUpdate {
				if err := s.gate(ctx, clock); err != nil {
					return err
				}
			}
			if err := s.checkFree(ctx, tx, op, day, clock, dur, id); err != nil {
				return err
			}
			if err := repo.UpdateAppointment(ctx, tx, id, cols); err != nil {
				return err
			}
			out, err = repo.GetAppointment(ctx, tx, id)
			return err
		})
		if errors.Is(err, errDayMoved) || isSerializationFailure(err) {
			logFrom(ctx).Debug().Str("appointment_id", id).Int("attempt", attempt).Err(err).Msg("retrying appointment update")
			continue
		}
		if err != nil {
			return nil, appointmentErr(err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("update appointment %s: %w", id, errDayMoved)
}

// columns validates the sent fields and maps them to column updates.
func (s *AppointmentService) columns(ch AppointmentChanges) (map[string]any, error) {
	cols := map[string]any{}

	if present(ch.Date) {
		d := strings.TrimSpace(*ch.Date)
		if _, err := time.Parse(domain.DateLayout, d); err != nil {
			return nil, invalid("date", "must be yyyy-mm-dd")
		}
		cols["date"] = d
	}
	if present(ch.Time) {
		c, err := scheduling.NormalizeClock(strings.TrimSpace(*ch.Time))
		if err != nil {
			return nil, invalid("time", "must be HH:mm")
		}
		cols["time"] = c
	}
	if ch.Duration != nil {
		if *ch.Duration < 0 {
			return nil, invalid("duration", "must be positive")
		}
		cols["duration"] = s.duration(*ch.Duration)
	}
	for _, f := range []struct {
		col string
		v   *string
	}{
		{"title", ch.Title},
		{"client_id", ch.ClientID},
		{"client_name", ch.ClientName},
	} {
		if f.v == nil {
			continue
		}
		v := strings.TrimSpace(*f.v)
		if v == "" {
			return nil, invalid(f.col, "must not be empty")
		}
		cols[f.col] = v
	}
	if ch.Value != nil {
		if *ch.Value < 0 {
			return nil, invalid("value", "must not be negative")
		}
		cols["value"] = *ch.Value
	}
	if ch.Note != nil {
		cols["note"] = *ch.Note
	}
	if ch.ProfessionalID != nil {
		cols["professional_id"] = blankToNil(ch.ProfessionalID)
	}
	if ch.ProfessionalName != nil {
		cols["professional_name"] = blankToNil(ch.ProfessionalName)
	}
	if ch.Completed != nil {
		cols["completed"] = *ch.Completed
	}
	return cols, nil
}

// Get returns one appointment.
func (s *AppointmentService) Get(ctx context.Context, id string) (*domain.Appointment, error) {
	a, err := repo.GetAppointment(ctx, s.DB, id)
	return a, appointmentErr(err)
}

// List returns a page of the agenda ordered by date and time, with the total
// number of matches.
func (s *AppointmentService) List(ctx context.Context, f repo.AppointmentFilter, page, pageSize int) ([]domain.Appointment, int64, error) {
	tr := otel.Tracer("services/AppointmentService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("filter.date", f.Date),
			attribute.String("filter.start_date", f.StartDate),
			attribute.String("filter.end_date", f.EndDate),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}

	total, err := repo.CountAppointments(ctx, s.DB, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Appointment{}, 0, nil
	}
	items, err := repo.ListAppointmentsPage(ctx, s.DB, f, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Fingerprint returns the count and latest update of the filtered agenda,
// the inputs of the list ETag.
func (s *AppointmentService) Fingerprint(ctx context.Context, f repo.AppointmentFilter) (int64, *time.Time, error) {
	return repo.AppointmentsStats(ctx, s.DB, f)
}

// Stats sums bookings and revenue over the filtered agenda.
func (s *AppointmentService) Stats(ctx context.Context, f repo.AppointmentFilter) (repo.AppointmentTotals, error) {
	tr := otel.Tracer("services/AppointmentService")
	ctx, span := tr.Start(ctx, "Stats",
		trace.WithAttributes(
			attribute.String("filter.start_date", f.StartDate),
			attribute.String("filter.end_date", f.EndDate),
		),
	)
	defer span.End()

	return repo.SumAppointments(ctx, s.DB, f)
}

// Delete removes an appointment. Freeing a slot needs no check.
func (s *AppointmentService) Delete(ctx context.Context, id string) error {
	tr := otel.Tracer("services/AppointmentService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("appointment.id", id)),
	)
	defer span.End()

	return appointmentErr(repo.DeleteAppointment(ctx, s.DB, id))
}

// withDayLock runs fn in a transaction while holding the lock for date.
func (s *AppointmentService) withDayLock(ctx context.Context, date string, fn func(tx *gorm.DB) error) error {
	lockCtx := ctx
	if s.LockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, s.LockTimeout)
		defer cancel()
	}
	unlock, err := s.Locker.Lock(lockCtx, scheduling.DayKey(date))
	if err != nil {
		return fmt.Errorf("lock agenda %s: %w", date, err)
	}
	defer unlock()

	return s.DB.WithContext(ctx).Transaction(fn, repo.TxOptions(s.DB))
}

// checkFree returns a *ConflictError when the slot overlaps another
// appointment on date. excludeID is the appointment being edited.
func (s *AppointmentService) checkFree(ctx context.Context, tx *gorm.DB, op, date, clock string, duration int, excludeID string) error {
	candidate, err := scheduling.Slot{Date: date, Time: clock, Duration: duration}.Interval(s.Location)
	if err != nil {
		return invalid("time", "invalid date or time")
	}
	existing, err := repo.ListAppointmentsOnDate(ctx, tx, date, excludeID)
	if err != nil {
		return err
	}

	lg := logFrom(ctx)
	hit, found := scheduling.FindConflict(candidate, existing, s.Location, func(a domain.Appointment, err error) {
		lg.Warn().Err(err).Str("appointment_id", a.ID).Msg("skipping unparseable appointment in conflict check")
	})
	if !found {
		return nil
	}

	appointmentConflicts.WithLabelValues(op).Inc()
	lg.Warn().
		Str("operation", op).
		Str("date", date).
		Str("start_time", clock).
		Int("duration", scheduling.EffectiveDuration(duration)).
		Str("conflicting_id", hit.ID).
		Msg("appointment time conflict")
	return &ConflictError{
		Date:          date,
		Time:          clock,
		Duration:      scheduling.EffectiveDuration(duration),
		ConflictingID: hit.ID,
		ConflictsAt:   hit.Time,
	}
}

// gate rejects start times outside business hours.
func (s *AppointmentService) gate(ctx context.Context, clock string) error {
	if s.Hours.Within(clock) {
		return nil
	}
	appointmentsRejectedHours.Inc()
	logFrom(ctx).Warn().Str("start_time", clock).Str("hours", s.Hours.String()).Msg("appointment outside business hours")
	return &ValidationError{
		Fields: []string{"time"},
		Reason: "must be within business hours " + s.Hours.String(),
		Err:    ErrOutsideBusinessHours,
	}
}

func (s *AppointmentService) duration(d int) int {
	if d > 0 {
		return d
	}
	if s.DefaultDuration > 0 {
		return s.DefaultDuration
	}
	return domain.DefaultDurationMinutes
}

// normalizeSlot validates a date and a clock and returns them in storage form.
func normalizeSlot(date, clock string) (string, string, error) {
	date = strings.TrimSpace(date)
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return "", "", invalid("date", "must be yyyy-mm-dd")
	}
	c, err := scheduling.NormalizeClock(strings.TrimSpace(clock))
	if err != nil {
		return "", "", invalid("time", "must be HH:mm")
	}
	return date, c, nil
}

func appointmentErr(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrAppointmentNotFound
	}
	return err
}

// isSerializationFailure matches Postgres SQLSTATE 40001.
func isSerializationFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "40001") || strings.Contains(msg, "could not serialize")
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// logFrom returns the request logger carried by ctx, or the global logger.
func logFrom(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
