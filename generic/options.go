package generic

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// LockTTL bounds how long an entity lock survives a crashed holder.
const LockTTL = 10 * time.Second

// Options are the ambient dependencies shared by every lifecycle and budget
// component. Zero values are replaced with SystemClock, a no-op logger and
// a no-op observer. A nil Locker means no locking.
type Options struct {
	Clock    Clock
	Logger   *zap.Logger
	Observer Observer
	Locker   Locker
}

type Option func(*Options)

func WithClock(c Clock) Option {
	return func(o *Options) { o.Clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func WithObserver(obs Observer) Option {
	return func(o *Options) { o.Observer = obs }
}

func WithLocker(l Locker) Option {
	return func(o *Options) { o.Locker = l }
}

// NewOptions applies opts over the defaults.
func NewOptions(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	if o.Clock == nil {
		o.Clock = SystemClock{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Observer == nil {
		o.Observer = NopObserver{}
	}
	return o
}

// Locked runs fn while holding key, or just runs fn when no Locker is
// configured. Unlock uses a context that outlives cancellation of ctx.
func (o Options) Locked(ctx context.Context, key string, fn func() error) error {
	if o.Locker == nil {
		return fn()
	}
	unlock, err := o.Locker.Lock(ctx, key, LockTTL)
	if err != nil {
		return fmt.Errorf("lock %s: %w", key, err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			o.Logger.Warn("unlock failed", zap.String("key", key), zap.Error(err))
		}
	}()
	return fn()
}
