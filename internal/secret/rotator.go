package secret

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"qrattend/internal/metrics"
	"qrattend/internal/realtime"
)

// Credential is the pair of currently accepted check-in secrets. The zero
// value means no credential has been issued yet.
type Credential struct {
	Current  string
	Previous string
	IssuedAt time.Time
}

// Valid reports whether s is the current or the immediately previous secret.
func (c Credential) Valid(s string) bool {
	if s == "" {
		return false
	}
	return s == c.Current || (c.Previous != "" && s == c.Previous)
}

// Issued is a credential together with the rendering of its current value.
type Issued struct {
	Credential
	QRCode string
}

// Generator produces a new random secret.
type Generator func() (string, error)

// RandomHex returns a generator of n crypto-random bytes, hex encoded.
func RandomHex(n int) Generator {
	return func() (string, error) {
		buf := make([]byte, n)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		return hex.EncodeToString(buf), nil
	}
}

// Rotator owns the credential pair. Rotations are serialized by rotateMu;
// the pair itself is guarded by mu, which is never held while generating,
// rendering or publishing.
type Rotator struct {
	rotateMu sync.Mutex

	mu     sync.RWMutex
	issued Issued

	generate  Generator
	renderer  Renderer
	publisher realtime.Publisher
	now       func() time.Time
	log       *zap.Logger
	metrics   *metrics.Metrics
}

// NewRotator creates a rotator in the uninitialized state. m may be nil.
func NewRotator(gen Generator, renderer Renderer, pub realtime.Publisher, log *zap.Logger, m *metrics.Metrics) *Rotator {
	return &Rotator{
		generate:  gen,
		renderer:  renderer,
		publisher: pub,
		now:       time.Now,
		log:       log,
		metrics:   m,
	}
}

// Snapshot returns a consistent copy of the credential pair.
func (r *Rotator) Snapshot() Credential {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.issued.Credential
}

// Accepts reports whether s is valid against the current snapshot.
func (r *Rotator) Accepts(s string) bool {
	return r.Snapshot().Valid(s)
}

// Rotate generates and renders a new secret, then commits it as current and
// moves the old current to previous. On failure nothing changes. A qr event
// is published after a successful commit.
func (r *Rotator) Rotate(ctx context.Context) (Issued, error) {
	r.rotateMu.Lock()
	defer r.rotateMu.Unlock()
	return r.rotateLocked(ctx)
}

// TryRotate rotates unless a rotation is already in flight, in which case it
// returns false without waiting.
func (r *Rotator) TryRotate(ctx context.Context) (Issued, bool, error) {
	if !r.rotateMu.TryLock() {
		r.metrics.Rotation("coalesced")
		return Issued{}, false, nil
	}
	defer r.rotateMu.Unlock()
	issued, err := r.rotateLocked(ctx)
	return issued, true, err
}

// Latest returns the current issued credential, rotating once if none exists yet.
func (r *Rotator) Latest(ctx context.Context) (Issued, error) {
	r.mu.RLock()
	issued := r.issued
	r.mu.RUnlock()
	if issued.Current != "" {
		return issued, nil
	}

	r.rotateMu.Lock()
	defer r.rotateMu.Unlock()
	// Another caller may have initialized it while we waited.
	r.mu.RLock()
	issued = r.issued
	r.mu.RUnlock()
	if issued.Current != "" {
		return issued, nil
	}
	return r.rotateLocked(ctx)
}

func (r *Rotator) rotateLocked(ctx context.Context) (Issued, error) {
	if err := ctx.Err(); err != nil {
		return Issued{}, err
	}

	value, err := r.generate()
	if err != nil {
		return Issued{}, r.fail("generate secret", err)
	}
	img, err := r.renderer.Render(value)
	if err != nil {
		return Issued{}, r.fail("render secret", err)
	}

	r.mu.Lock()
	next := Issued{
		Credential: Credential{
			Current:  value,
			Previous: r.issued.Current,
			IssuedAt: r.now(),
		},
		QRCode: img,
	}
	r.issued = next
	r.mu.Unlock()

	r.metrics.Rotation("ok")
	r.log.Debug("secret rotated", zap.Time("issued_at", next.IssuedAt))
	r.publisher.Publish(realtime.QREvent{QRCode: next.QRCode, Content: next.Current})
	return next, nil
}

func (r *Rotator) fail(step string, err error) error {
	r.metrics.Rotation("failed")
	r.log.Error("secret rotation failed", zap.String("step", step), zap.Error(err))
	return fmt.Errorf("%s: %w", step, err)
}
