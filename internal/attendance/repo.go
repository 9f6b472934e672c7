package attendance

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"qrattend/internal/apperr"
)

// Dialect selects placeholder style and DDL.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// Repository persists attendance data in Postgres or SQLite.
type Repository struct {
	db      *sql.DB
	dialect Dialect
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB, dialect Dialect) *Repository {
	return &Repository{db: db, dialect: dialect}
}

var schemas = map[Dialect]string{
	Postgres: `
	CREATE TABLE IF NOT EXISTS users (
		id        BIGINT PRIMARY KEY,
		username  TEXT NOT NULL UNIQUE
	);
	CREATE TABLE IF NOT EXISTS attendance (
		id          BIGSERIAL PRIMARY KEY,
		user_id     BIGINT NOT NULL UNIQUE REFERENCES users(id),
		status      TEXT NOT NULL DEFAULT 'not present',
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS absences (
		id          BIGSERIAL PRIMARY KEY,
		user_id     BIGINT NOT NULL REFERENCES users(id),
		type        TEXT NOT NULL,
		message     TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT 'afventer',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS messages (
		id          BIGSERIAL PRIMARY KEY,
		sender      TEXT NOT NULL,
		subject     TEXT NOT NULL,
		body        TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	SQLite: `
	CREATE TABLE IF NOT EXISTS users (
		id        INTEGER PRIMARY KEY,
		username  TEXT NOT NULL UNIQUE
	);
	CREATE TABLE IF NOT EXISTS attendance (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id     INTEGER NOT NULL UNIQUE REFERENCES users(id),
		status      TEXT NOT NULL DEFAULT 'not present',
		updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS absences (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id     INTEGER NOT NULL REFERENCES users(id),
		type        TEXT NOT NULL,
		message     TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT 'afventer',
		created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS messages (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		sender      TEXT NOT NULL,
		subject     TEXT NOT NULL,
		body        TEXT NOT NULL,
		created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
}

// Migrate creates the tables if they do not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemas[r.dialect], ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (r *Repository) rebind(query string) string {
	if r.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func (r *Repository) username(ctx context.Context, userID int64) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx, r.rebind(`SELECT username FROM users WHERE id = ?`), userID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.NotFound("user %d", userID)
	}
	if err != nil {
		return "", errors.Wrapf(err, "lookup user %d", userID)
	}
	return name, nil
}

// EnsureUser upserts the user and its initial record.
func (r *Repository) EnsureUser(ctx context.Context, u User) error {
	if u.ID <= 0 || u.Username == "" {
		return apperr.Validation("user id and username required")
	}
	if _, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO users (id, username) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET username = excluded.username
	`), u.ID, u.Username); err != nil {
		return errors.Wrapf(err, "upsert user %d", u.ID)
	}
	if _, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO attendance (user_id, status, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING
	`), u.ID, string(NotPresent), time.Now().UTC()); err != nil {
		return errors.Wrapf(err, "init record for user %d", u.ID)
	}
	return nil
}

// MarkStatus upserts the user's record in one statement.
func (r *Repository) MarkStatus(ctx context.Context, userID int64, status Status) (Record, error) {
	name, err := r.username(ctx, userID)
	if err != nil {
		return Record{}, err
	}
	rec := Record{UserID: userID, Username: name}
	var st string
	err = r.db.QueryRowContext(ctx, r.rebind(`
		INSERT INTO attendance (user_id, status, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at
		RETURNING id, status, updated_at
	`), userID, string(status), time.Now().UTC()).Scan(&rec.ID, &st, &rec.UpdatedAt)
	if err != nil {
		return Record{}, errors.Wrapf(err, "mark user %d %s", userID, status)
	}
	rec.Status = Status(st)
	return rec, nil
}

// Records returns every attendance record joined with its username.
func (r *Repository) Records(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.user_id, u.username, a.status, a.updated_at
		FROM attendance a
		JOIN users u ON u.id = a.user_id
		ORDER BY a.id
	`)
	if err != nil {
		return nil, errors.Wrap(err, "list records")
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var rec Record
		var st string
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Username, &st, &rec.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan record")
		}
		rec.Status = Status(st)
		res = append(res, rec)
	}
	return res, errors.Wrap(rows.Err(), "iterate records")
}

// CreateAbsence stores an absence request for an existing user.
func (r *Repository) CreateAbsence(ctx context.Context, a Absence) (Absence, error) {
	if _, err := r.username(ctx, a.UserID); err != nil {
		return Absence{}, err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	err := r.db.QueryRowContext(ctx, r.rebind(`
		INSERT INTO absences (user_id, type, message, status, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`), a.UserID, a.Type, a.Message, a.Status, a.CreatedAt).Scan(&a.ID)
	if err != nil {
		return Absence{}, errors.Wrap(err, "insert absence")
	}
	return a, nil
}

// CreateMessage stores a message.
func (r *Repository) CreateMessage(ctx context.Context, m Message) (Message, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	err := r.db.QueryRowContext(ctx, r.rebind(`
		INSERT INTO messages (sender, subject, body, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`), m.Sender, m.Subject, m.Body, m.CreatedAt).Scan(&m.ID)
	if err != nil {
		return Message{}, errors.Wrap(err, "insert message")
	}
	return m, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}
