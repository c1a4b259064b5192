package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

// Subscription selects changes by table, event type and an optional filter.
type Subscription struct {
	Table  string
	Event  string
	Filter *Filter
}

func (s Subscription) matches(c Change) bool {
	if s.Table != "" && s.Table != c.Table {
		return false
	}
	if s.Event != "" && s.Event != EventAll && s.Event != c.Type {
		return false
	}
	return s.Filter == nil || s.Filter.Matches(c.Row())
}

type subscriber struct {
	sub Subscription
	fn  func(Change)
}

// Listener is the part of *pgx.Conn the feed uses.
type Listener interface {
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// Dialer opens a connection that already LISTENs on the feed channel.
type Dialer func(ctx context.Context) (Listener, error)

// PostgresDialer connects to dsn and listens on channel.
func PostgresDialer(dsn, channel string) Dialer {
	return func(ctx context.Context) (Listener, error) {
		conn, err := pgx.Connect(ctx, dsn)
		if err != nil {
			return nil, err
		}
		if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
			conn.Close(ctx)
			return nil, err
		}
		return conn, nil
	}
}

const (
	minReconnectDelay = 500 * time.Millisecond
	maxReconnectDelay = 30 * time.Second
)

// Hydrator completes a change before it is dispatched, for columns the
// trigger leaves out of the payload.
type Hydrator func(ctx context.Context, c Change) (Change, error)

// Feed fans change notifications out to subscribers.
type Feed struct {
	dial Dialer
	log  logrus.FieldLogger

	// Hydrate runs once per change when set. On error the change is
	// dispatched as received.
	Hydrate Hydrator

	mu   sync.RWMutex
	next int64
	subs map[int64]subscriber
}

func NewFeed(dial Dialer, log logrus.FieldLogger) *Feed {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Feed{dial: dial, log: log, subs: make(map[int64]subscriber)}
}

// Subscribe registers fn for changes matching sub and returns a function that
// removes it.
func (f *Feed) Subscribe(sub Subscription, fn func(Change)) (unsubscribe func()) {
	f.mu.Lock()
	f.next++
	id := f.next
	f.subs[id] = subscriber{sub: sub, fn: fn}
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// Dispatch delivers c to every matching subscriber and returns how many
// received it.
func (f *Feed) Dispatch(c Change) int {
	f.mu.RLock()
	targets := make([]func(Change), 0, len(f.subs))
	for _, s := range f.subs {
		if s.sub.matches(c) {
			targets = append(targets, s.fn)
		}
	}
	f.mu.RUnlock()

	for _, fn := range targets {
		fn(c)
	}
	return len(targets)
}

// Len returns the number of active subscriptions.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Run listens for notifications until ctx is done, reconnecting with
// exponential backoff when the connection drops.
func (f *Feed) Run(ctx context.Context) {
	delay := minReconnectDelay
	for {
		err := f.listen(ctx, func() { delay = minReconnectDelay })
		if ctx.Err() != nil {
			return
		}
		f.log.WithError(err).WithField("retry_in", delay.String()).Warn("realtime feed disconnected")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (f *Feed) listen(ctx context.Context, connected func()) error {
	conn, err := f.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	connected()
	f.log.Info("realtime feed listening")

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if n == nil {
			return errors.New("empty notification")
		}
		c, err := ParseChange([]byte(n.Payload))
		if err != nil {
			f.log.WithError(err).Warn("realtime feed skipped payload")
			continue
		}
		if f.Hydrate != nil {
			full, err := f.Hydrate(ctx, c)
			if err != nil {
				f.log.WithError(err).WithField("table", c.Table).Warn("realtime feed hydrate")
			} else {
				c = full
			}
		}
		f.Dispatch(c)
	}
}
