package listener

import (
	"context"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"

	"ad-delivery-engine/internal/storage"
)

// burstWindow bounds how long a notification burst may defer the refresh.
const burstWindow = 200 * time.Millisecond

// waiter is the blocking-notification side of a pgx connection.
type waiter interface {
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
}

// ListenAndRefresh blocks on Postgres LISTEN/NOTIFY and calls refresh
// whenever campaign data changes, so the served snapshot stays close to
// the backend's state without polling aggressively.
func ListenAndRefresh(ctx context.Context, st *storage.Store, refresh func(context.Context) error, channel string, baseBackoff time.Duration) {
	conn, err := st.PgxPool().Acquire(ctx)
	if err != nil {
		log.Error().Err(err).Msg("acquire conn for listen")
		return
	}
	defer conn.Release()

	if channel == "" {
		channel = st.ListenChannel()
	}
	if _, err = conn.Exec(ctx, "LISTEN "+channel); err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("listen")
		return
	}
	log.Info().Str("channel", channel).Msg("listening for campaign changes")

	run(ctx, conn.Conn(), refresh, baseBackoff)
}

// run is the notification loop. A burst of notifications is absorbed for
// one burstWindow and answered with a single refresh after the burst, so
// no notification is ever dropped and the snapshot never lags by more
// than the window.
func run(ctx context.Context, w waiter, refresh func(context.Context) error, baseBackoff time.Duration) {
	for {
		ntf, err := w.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("listener stopped")
				return
			}
			backoff := jitter(baseBackoff)
			log.Error().Err(err).Dur("retry_in", backoff).Msg("notify wait error")
			time.Sleep(backoff)
			continue
		}

		drainBurst(ctx, w)
		if ctx.Err() != nil {
			log.Info().Msg("listener stopped")
			return
		}

		log.Info().Str("channel", ntf.Channel).Msg("campaign change; refreshing snapshot")
		if err := refresh(ctx); err != nil {
			log.Error().Err(err).Msg("refresh snapshot error")
		}
	}
}

// drainBurst absorbs further notifications until the window passes
// quietly. The deadline is fixed at entry, so a continuous stream still
// refreshes at least once per window.
func drainBurst(ctx context.Context, w waiter) {
	deadline := time.Now().Add(burstWindow)
	for {
		dctx, cancel := context.WithDeadline(ctx, deadline)
		_, err := w.WaitForNotification(dctx)
		cancel()
		if err != nil {
			return
		}
	}
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	factor := 0.5 + rand.Float64() // 0.5x-1.5x
	return time.Duration(float64(base) * factor)
}
