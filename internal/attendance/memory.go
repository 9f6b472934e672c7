package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"qrattend/internal/apperr"
)

// MemoryStore keeps everything in process. Used for dev and tests.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[int64]string
	records  map[int64]*Record
	absences []Absence
	messages []Message
	seq      struct{ record, absence, message int64 }
	now      func() time.Time
}

// NewMemoryStore creates a store pre-populated with users.
func NewMemoryStore(users ...User) *MemoryStore {
	s := &MemoryStore{
		users:   make(map[int64]string),
		records: make(map[int64]*Record),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, u := range users {
		_ = s.EnsureUser(context.Background(), u)
	}
	return s
}

func (s *MemoryStore) EnsureUser(_ context.Context, u User) error {
	if u.ID <= 0 || u.Username == "" {
		return apperr.Validation("user id and username required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u.Username
	if _, ok := s.records[u.ID]; !ok {
		s.seq.record++
		s.records[u.ID] = &Record{ID: s.seq.record, UserID: u.ID, Status: NotPresent, UpdatedAt: s.now()}
	}
	return nil
}

func (s *MemoryStore) MarkStatus(_ context.Context, userID int64, status Status) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.users[userID]
	if !ok {
		return Record{}, apperr.NotFound("user %d", userID)
	}
	rec, ok := s.records[userID]
	if !ok {
		s.seq.record++
		rec = &Record{ID: s.seq.record, UserID: userID}
		s.records[userID] = rec
	}
	rec.Status = status
	rec.UpdatedAt = s.now()
	out := *rec
	out.Username = name
	return out, nil
}

func (s *MemoryStore) Records(_ context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		r := *rec
		r.Username = s.users[r.UserID]
		out = append(out, r)
	}
	sortRecords(out)
	return out, nil
}

func (s *MemoryStore) CreateAbsence(_ context.Context, a Absence) (Absence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[a.UserID]; !ok {
		return Absence{}, apperr.NotFound("user %d", a.UserID)
	}
	s.seq.absence++
	a.ID = s.seq.absence
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	s.absences = append(s.absences, a)
	return a, nil
}

func (s *MemoryStore) CreateMessage(_ context.Context, m Message) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq.message++
	m.ID = s.seq.message
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	s.messages = append(s.messages, m)
	return m, nil
}

func sortRecords(recs []Record) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
