package attendance

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"qrattend/internal/apperr"
	"qrattend/internal/metrics"
	"qrattend/internal/realtime"
	"qrattend/internal/secret"
)

// Credentials is the part of the secret rotator the service needs.
type Credentials interface {
	Accepts(s string) bool
	Rotate(ctx context.Context) (secret.Issued, error)
}

// Service validates check-ins, resets sessions and files notices, publishing
// one event per state change.
type Service struct {
	store   Store
	creds   Credentials
	pub     realtime.Publisher
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewService wires the service. m may be nil.
func NewService(store Store, creds Credentials, pub realtime.Publisher, log *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{store: store, creds: creds, pub: pub, log: log, metrics: m}
}

// CheckIn marks userID present if presented matches the current or previous
// secret. A user who is already present is re-marked and re-announced.
func (s *Service) CheckIn(ctx context.Context, userID int64, presented string) (Record, error) {
	if userID <= 0 {
		s.metrics.CheckIn("invalid")
		return Record{}, apperr.Validation("userId required")
	}
	if !s.creds.Accepts(presented) {
		s.metrics.CheckIn("rejected")
		return Record{}, apperr.Unauthorized("invalid or expired secret")
	}

	rec, err := s.store.MarkStatus(ctx, userID, Present)
	if err != nil {
		s.metrics.CheckIn("failed")
		return Record{}, s.internal(err, "mark present", zap.Int64("user_id", userID))
	}

	s.metrics.CheckIn("accepted")
	s.pub.Publish(attendanceEvent(rec))
	return rec, nil
}

// ResetReport summarizes a ResetAll run.
type ResetReport struct {
	Reset  int
	Failed int
}

// ResetAll marks every record not present, then rotates the secret so the
// new session starts with a fresh code. Per-record failures are logged and
// skipped; running it again finishes the job.
func (s *Service) ResetAll(ctx context.Context) (ResetReport, error) {
	var report ResetReport
	records, err := s.store.Records(ctx)
	if err != nil {
		return report, s.internal(err, "list records")
	}

	var errs []error
	for _, rec := range records {
		updated, err := s.store.MarkStatus(ctx, rec.UserID, NotPresent)
		if err != nil {
			report.Failed++
			errs = append(errs, err)
			s.log.Error("reset record failed", zap.Int64("user_id", rec.UserID), zap.Error(err))
			continue
		}
		report.Reset++
		s.pub.Publish(attendanceEvent(updated))
	}
	if report.Failed > 0 {
		s.log.Warn("attendance reset incomplete", zap.Int("reset", report.Reset), zap.Int("failed", report.Failed))
	}

	if _, err := s.creds.Rotate(ctx); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return report, apperr.Internal(errors.Join(errs...), "reset attendance")
	}
	s.log.Info("attendance reset", zap.Int("records", report.Reset))
	return report, nil
}

// Records lists all attendance records.
func (s *Service) Records(ctx context.Context) ([]Record, error) {
	recs, err := s.store.Records(ctx)
	if err != nil {
		return nil, s.internal(err, "list records")
	}
	return recs, nil
}

// FileAbsence stores an absence request and announces it.
func (s *Service) FileAbsence(ctx context.Context, a Absence) (Absence, error) {
	if a.UserID <= 0 {
		return Absence{}, apperr.Validation("user id required")
	}
	if !validAbsenceType(a.Type) {
		return Absence{}, apperr.Validation("type must be one of %s, %s, %s", AbsenceSick, AbsenceHoliday, AbsenceOther)
	}
	if a.Status == "" {
		a.Status = AbsencePending
	}
	if !validAbsenceStatus(a.Status) {
		return Absence{}, apperr.Validation("status must be one of %s, %s, %s", AbsencePending, AbsenceApproved, AbsenceRejected)
	}
	saved, err := s.store.CreateAbsence(ctx, a)
	if err != nil {
		return Absence{}, s.internal(err, "create absence", zap.Int64("user_id", a.UserID))
	}
	s.pub.Publish(realtime.AbsenceEvent{
		ID:      saved.ID,
		UserID:  saved.UserID,
		Kind:    saved.Type,
		Message: saved.Message,
		Status:  saved.Status,
	})
	return saved, nil
}

// PostMessage stores a message and announces it.
func (s *Service) PostMessage(ctx context.Context, m Message) (Message, error) {
	if m.Sender == "" || m.Subject == "" || m.Body == "" {
		return Message{}, apperr.Validation("sender, subject and body are required")
	}
	saved, err := s.store.CreateMessage(ctx, m)
	if err != nil {
		return Message{}, s.internal(err, "create message")
	}
	s.pub.Publish(realtime.MessageEvent{
		ID:        saved.ID,
		Sender:    saved.Sender,
		Subject:   saved.Subject,
		Body:      saved.Body,
		CreatedAt: saved.CreatedAt,
	})
	return saved, nil
}

// internal passes client-facing errors through and wraps everything else.
func (s *Service) internal(err error, msg string, fields ...zap.Field) error {
	if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrValidation) {
		return err
	}
	s.log.Error(msg, append(fields, zap.Error(err))...)
	return apperr.Internal(err, msg)
}

func attendanceEvent(rec Record) realtime.AttendanceEvent {
	return realtime.AttendanceEvent{
		ID:     rec.ID,
		UserID: rec.UserID,
		User:   rec.Username,
		Status: string(rec.Status),
	}
}
