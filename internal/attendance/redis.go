package attendance

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"qrattend/internal/apperr"
)

// RedisStore keeps attendance state in Redis hashes keyed by user id.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore builds a store; all keys live under prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "qrattend"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(name string) string { return s.prefix + ":" + name }

func (s *RedisStore) recordKeys() []string {
	return []string{
		s.key("users"),
		s.key("attendance:id"),
		s.key("attendance:status"),
		s.key("attendance:updated"),
		s.key("attendance:seq"),
	}
}

// markScript updates one user's status. Returns nil for unknown users,
// otherwise {record id, username}.
var markScript = redis.NewScript(`
local name = redis.call('HGET', KEYS[1], ARGV[1])
if not name then return false end
local id = redis.call('HGET', KEYS[2], ARGV[1])
if not id then
  id = redis.call('INCR', KEYS[5])
  redis.call('HSET', KEYS[2], ARGV[1], id)
end
redis.call('HSET', KEYS[3], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[4], ARGV[1], ARGV[3])
return {tonumber(id), name}
`)

// ensureScript upserts a user and creates its record if missing.
var ensureScript = redis.NewScript(`
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
if redis.call('HEXISTS', KEYS[2], ARGV[1]) == 0 then
  local id = redis.call('INCR', KEYS[5])
  redis.call('HSET', KEYS[2], ARGV[1], id)
  redis.call('HSET', KEYS[3], ARGV[1], ARGV[3])
  redis.call('HSET', KEYS[4], ARGV[1], ARGV[4])
end
return 1
`)

func (s *RedisStore) EnsureUser(ctx context.Context, u User) error {
	if u.ID <= 0 || u.Username == "" {
		return apperr.Validation("user id and username required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	err := ensureScript.Run(ctx, s.client, s.recordKeys(), u.ID, u.Username, string(NotPresent), now).Err()
	return errors.Wrapf(err, "ensure user %d", u.ID)
}

func (s *RedisStore) MarkStatus(ctx context.Context, userID int64, status Status) (Record, error) {
	now := time.Now().UTC()
	res, err := markScript.Run(ctx, s.client, s.recordKeys(), userID, string(status), now.Format(time.RFC3339Nano)).Slice()
	if errors.Is(err, redis.Nil) {
		return Record{}, apperr.NotFound("user %d", userID)
	}
	if err != nil {
		return Record{}, errors.Wrapf(err, "mark user %d %s", userID, status)
	}
	if len(res) != 2 {
		return Record{}, errors.Errorf("mark user %d: unexpected reply %v", userID, res)
	}
	id, _ := res[0].(int64)
	name, _ := res[1].(string)
	return Record{ID: id, UserID: userID, Username: name, Status: status, UpdatedAt: now}, nil
}

func (s *RedisStore) Records(ctx context.Context) ([]Record, error) {
	var users, ids, statuses, updated *redis.MapStringStringCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		users = p.HGetAll(ctx, s.key("users"))
		ids = p.HGetAll(ctx, s.key("attendance:id"))
		statuses = p.HGetAll(ctx, s.key("attendance:status"))
		updated = p.HGetAll(ctx, s.key("attendance:updated"))
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "list records")
	}

	out := make([]Record, 0, len(ids.Val()))
	for field, rawID := range ids.Val() {
		userID, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		id, _ := strconv.ParseInt(rawID, 10, 64)
		at, _ := time.Parse(time.RFC3339Nano, updated.Val()[field])
		out = append(out, Record{
			ID:        id,
			UserID:    userID,
			Username:  users.Val()[field],
			Status:    Status(statuses.Val()[field]),
			UpdatedAt: at,
		})
	}
	sortRecords(out)
	return out, nil
}

type absenceDoc struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type messageDoc struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *RedisStore) CreateAbsence(ctx context.Context, a Absence) (Absence, error) {
	ok, err := s.client.HExists(ctx, s.key("users"), strconv.FormatInt(a.UserID, 10)).Result()
	if err != nil {
		return Absence{}, errors.Wrap(err, "lookup user")
	}
	if !ok {
		return Absence{}, apperr.NotFound("user %d", a.UserID)
	}
	id, err := s.client.Incr(ctx, s.key("absences:seq")).Result()
	if err != nil {
		return Absence{}, errors.Wrap(err, "allocate absence id")
	}
	a.ID = id
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	doc, _ := json.Marshal(absenceDoc(a))
	if err := s.client.RPush(ctx, s.key("absences"), doc).Err(); err != nil {
		return Absence{}, errors.Wrap(err, "store absence")
	}
	return a, nil
}

func (s *RedisStore) CreateMessage(ctx context.Context, m Message) (Message, error) {
	id, err := s.client.Incr(ctx, s.key("messages:seq")).Result()
	if err != nil {
		return Message{}, errors.Wrap(err, "allocate message id")
	}
	m.ID = id
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	doc, _ := json.Marshal(messageDoc(m))
	if err := s.client.RPush(ctx, s.key("messages"), doc).Err(); err != nil {
		return Message{}, errors.Wrap(err, "store message")
	}
	return m, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
