package cron

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"credential-service/internal/repository"
)

// StartSessionPurge schedules a daily purge of sessions that are both
// expired and revoked. Rows that are expired but never revoked are kept:
// they still matter for reuse detection. Returns the scheduler so the
// caller can stop it on shutdown.
func StartSessionPurge(sessions repository.SessionRepository) *gocron.Scheduler {
	s := gocron.NewScheduler(time.UTC)

	s.Every(1).Day().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		deleted, err := sessions.DeleteExpired(ctx, time.Now())
		if err != nil {
			log.Printf("[CRON] session purge failed: %v", err)
			return
		}
		if deleted > 0 {
			log.Printf("[CRON] purged %d expired sessions", deleted)
		}
	})

	s.StartAsync()
	return s
}
