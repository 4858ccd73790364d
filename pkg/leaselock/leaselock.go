// Package leaselock serializes maintenance jobs across worker replicas
// with a Postgres-backed lease. A lease is a row in app_locks with a
// TTL; the holder renews it in the background and loses the lease
// context when renewal fails, so long jobs notice eviction mid-run.
package leaselock

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	// ErrBusy means another holder has the lease and Wait was off.
	ErrBusy = errors.New("lease lock busy")
	// ErrLost means the lease expired or was taken over mid-run.
	ErrLost = errors.New("lease lock lost")
)

type conn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Client acquires named leases backed by the app_locks table.
type Client struct {
	db conn
}

type Options struct {
	// TTL is how long the lease survives without renewal. Default 5m.
	TTL time.Duration
	// RenewEvery is the renewal period. Default TTL/2.
	RenewEvery time.Duration

	// Wait retries acquisition instead of returning ErrBusy.
	Wait         bool
	WaitInterval time.Duration
	WaitJitter   time.Duration

	// HolderPrefix prepends an identifier to the random holder token,
	// making lease rows attributable in the table.
	HolderPrefix string
}

// Lease is a held lock. Context is canceled with ErrLost when a renewal
// fails, so work done under the lease should run off it.
type Lease struct {
	Name   string
	Holder string

	Context context.Context

	client *Client
	cancel context.CancelCauseFunc

	stopOnce sync.Once
	stopCh   chan struct{}
}

func New(pool *pgxpool.Pool) *Client {
	return &Client{db: pool}
}

// WithLease runs fn under the named lease and releases it afterwards.
func (c *Client) WithLease(ctx context.Context, name string, opts Options, fn func(ctx context.Context) error) error {
	lease, err := c.Acquire(ctx, name, opts)
	if err != nil {
		return err
	}
	defer func() {
		_ = lease.Release(context.Background())
	}()
	return fn(lease.Context)
}

func (c *Client) Acquire(ctx context.Context, name string, opts Options) (*Lease, error) {
	if name == "" {
		return nil, errors.New("lease name is empty")
	}

	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	ttlMs := opts.TTL.Milliseconds()
	if opts.RenewEvery <= 0 || opts.RenewEvery >= opts.TTL {
		opts.RenewEvery = max(opts.TTL/2, time.Second)
	}
	if opts.WaitInterval <= 0 {
		opts.WaitInterval = 250 * time.Millisecond
	}
	if opts.WaitJitter < 0 {
		opts.WaitJitter = 0
	}

	token, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	holder := opts.HolderPrefix + token

	acquireOnce := func(ctx context.Context) (bool, error) {
		var returnedName string
		err := c.db.QueryRow(ctx, tryAcquireSQL, name, holder, ttlMs).Scan(&returnedName)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return false, nil
			}
			return false, err
		}
		return returnedName != "", nil
	}

	for {
		ok, err := acquireOnce(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if !opts.Wait {
			return nil, ErrBusy
		}
		if err := sleepWithJitter(ctx, opts.WaitInterval, opts.WaitJitter); err != nil {
			return nil, err
		}
	}

	leaseCtx, cancel := context.WithCancelCause(ctx)
	l := &Lease{
		Name:    name,
		Holder:  holder,
		Context: leaseCtx,
		client:  c,
		cancel:  cancel,
		stopCh:  make(chan struct{}),
	}

	go l.renewLoop(opts, ttlMs)

	return l, nil
}

func (l *Lease) Release(ctx context.Context) error {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		l.cancel(context.Canceled)
	})

	_, err := l.client.db.Exec(ctx, releaseSQL, l.Name, l.Holder)
	return err
}

func (l *Lease) renewLoop(opts Options, ttlMs int64) {
	t := time.NewTicker(opts.RenewEvery)
	defer t.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-l.Context.Done():
			return
		case <-t.C:
			if err := l.renewOnce(ttlMs); err != nil {
				l.cancel(err)
				return
			}
		}
	}
}

func (l *Lease) renewOnce(ttlMs int64) error {
	for attempt := range 3 {
		renewCtx, cancel := context.WithTimeout(l.Context, 15*time.Second)
		var returnedName string
		err := l.client.db.QueryRow(renewCtx, renewSQL, l.Name, l.Holder, ttlMs).Scan(&returnedName)
		cancel()
		if err == nil {
			return nil
		}
		// No row: someone else took the lease over after expiry.
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLost
		}
		if attempt == 2 {
			return err
		}
		if err := sleepWithJitter(l.Context, 200*time.Millisecond, 0); err != nil {
			return err
		}
	}
	return ErrLost
}

func sleepWithJitter(ctx context.Context, base, jitter time.Duration) error {
	d := base
	if jitter > 0 {
		d += time.Duration(rand.Int64N(int64(jitter) + 1))
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const tryAcquireSQL = `
INSERT INTO app_locks (name, holder, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (name) DO UPDATE
SET holder     = EXCLUDED.holder,
    expires_at = EXCLUDED.expires_at
WHERE app_locks.expires_at < now()
   OR app_locks.holder = EXCLUDED.holder
RETURNING name;
`

const renewSQL = `
UPDATE app_locks
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE name = $1 AND holder = $2
RETURNING name;
`

const releaseSQL = `
DELETE FROM app_locks
WHERE name = $1 AND holder = $2;
`
