package main

import (
	"context"
	"time"
)

const (
	subscriptionCleanerInterval = time.Hour
	subscriptionCleanerTimeout  = 1 * time.Minute
)

// startSubscriptionCleaner expires lapsed subscriptions and removes stale
// sessions and verification codes once an hour.
func startSubscriptionCleaner(ctx context.Context, app *application) {
	if app.subscriptionService == nil {
		return
	}
	log := app.log.WithField("job", "subscription_cleaner")

	go func() {
		ticker := time.NewTicker(subscriptionCleanerInterval)
		defer ticker.Stop()

		runOnce := func() {
			runCtx, cancel := context.WithTimeout(ctx, subscriptionCleanerTimeout)
			defer cancel()
			now := time.Now().UTC()

			expired, err := app.subscriptionService.ExpireDue(runCtx, now)
			if err != nil {
				log.WithError(err).Error("expire subscriptions")
			} else if expired > 0 {
				log.WithField("count", expired).Info("expired subscriptions")
			}

			if n, err := app.userRepo.DeleteExpiredSessions(runCtx, now); err != nil {
				log.WithError(err).Error("delete expired sessions")
			} else if n > 0 {
				log.WithField("count", n).Debug("deleted expired sessions")
			}
			if n, err := app.userRepo.DeleteExpiredCodes(runCtx, now); err != nil {
				log.WithError(err).Error("delete expired codes")
			} else if n > 0 {
				log.WithField("count", n).Debug("deleted expired codes")
			}
		}

		runOnce()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runOnce()
			}
		}
	}()
}
