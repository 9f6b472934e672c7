package attendance

import (
	"context"
	"time"
)

// Status of a user's attendance record.
type Status string

const (
	Present    Status = "present"
	NotPresent Status = "not present"
)

// User is the subset of a user account the attendance core needs.
type User struct {
	ID       int64
	Username string
}

// Record is one user's attendance state.
type Record struct {
	ID        int64
	UserID    int64
	Username  string
	Status    Status
	UpdatedAt time.Time
}

// Absence kinds and review states, as stored.
const (
	AbsenceSick    = "syg"
	AbsenceHoliday = "ferie"
	AbsenceOther   = "andet"

	AbsencePending  = "afventer"
	AbsenceApproved = "godkendt"
	AbsenceRejected = "afvist"
)

func validAbsenceType(t string) bool {
	switch t {
	case AbsenceSick, AbsenceHoliday, AbsenceOther:
		return true
	}
	return false
}

func validAbsenceStatus(s string) bool {
	switch s {
	case AbsencePending, AbsenceApproved, AbsenceRejected:
		return true
	}
	return false
}

// Absence is an absence request filed by a user.
type Absence struct {
	ID        int64
	UserID    int64
	Type      string
	Message   string
	Status    string
	CreatedAt time.Time
}

// Message is a posted notice.
type Message struct {
	ID        int64
	Sender    string
	Subject   string
	Body      string
	CreatedAt time.Time
}

// Store is the persistence collaborator. Implementations must make
// MarkStatus atomic per user and return apperr.ErrNotFound for unknown users.
type Store interface {
	// EnsureUser upserts the user and creates a not-present record if none exists.
	EnsureUser(ctx context.Context, u User) error
	MarkStatus(ctx context.Context, userID int64, status Status) (Record, error)
	Records(ctx context.Context) ([]Record, error)
	CreateAbsence(ctx context.Context, a Absence) (Absence, error)
	CreateMessage(ctx context.Context, m Message) (Message, error)
	Ping(ctx context.Context) error
	Close() error
}
