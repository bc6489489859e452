// Package scheduler runs the recurring daily verse broadcast.
package scheduler

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gracechurch/tidings"
)

const (
	DefaultSpec    = "0 6 * * *"
	DefaultSubject = "Daily Bible Verse"
	DefaultVerse   = "The Lord is my shepherd; I shall not want. (Psalm 23:1)"

	runTimeout = 5 * time.Minute
)

// Deliverer sends a broadcast without an admin principal.
type Deliverer interface {
	Deliver(ctx context.Context, req *tidings.BroadcastRequest) (*tidings.BroadcastResult, error)
}

// DailyVerse broadcasts one verse a day to the daily verse topic.
type DailyVerse struct {
	cron      *cron.Cron
	deliverer Deliverer

	Spec    string
	Topic   string
	Subject string
	Verses  []string

	Logger zerolog.Logger
	now    func() time.Time
}

// NewDailyVerse returns a job configured from config, with defaults for empty fields
func NewDailyVerse(config *tidings.Config, d Deliverer) *DailyVerse {
	dv := config.Newsletter.DailyVerse
	j := &DailyVerse{
		cron:      cron.New(),
		deliverer: d,
		Spec:      dv.Cron.Spec,
		Topic:     dv.Topic,
		Subject:   dv.Subject,
		Verses:    dv.Verses,
		Logger:    log.Logger.With().Str("component", "scheduler").Logger(),
		now:       time.Now,
	}
	if j.Spec == "" {
		j.Spec = DefaultSpec
	}
	if j.Topic == "" {
		j.Topic = tidings.TopicDailyVerse
	}
	if j.Subject == "" {
		j.Subject = DefaultSubject
	}
	if len(j.Verses) == 0 {
		j.Verses = []string{DefaultVerse}
	}
	return j
}

// Start schedules the job and starts the cron runner in its own goroutine
func (j *DailyVerse) Start() error {
	if _, err := j.cron.AddFunc(j.Spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		_ = j.Run(ctx)
	}); err != nil {
		return errors.Wrapf(err, "invalid cron spec %q", j.Spec)
	}
	j.cron.Start()
	j.Logger.Info().Str("spec", j.Spec).Str("topic", j.Topic).Msg("daily verse scheduled")
	return nil
}

// Stop stops the runner and waits for a running job to finish
func (j *DailyVerse) Stop() {
	<-j.cron.Stop().Done()
}

// Verse returns the verse for the day of t.
func (j *DailyVerse) Verse(t time.Time) string {
	return j.Verses[t.YearDay()%len(j.Verses)]
}

// Run sends today's verse once.
func (j *DailyVerse) Run(ctx context.Context) error {
	res, err := j.deliverer.Deliver(ctx, &tidings.BroadcastRequest{
		Topic:   j.Topic,
		Subject: j.Subject,
		Message: j.Verse(j.now()),
	})
	if err != nil {
		j.Logger.Error().Err(err).Msg("failed to send daily verse")
		return err
	}
	j.Logger.Info().Int("recipients", res.Recipients).Str("broadcast_id", res.ID).Msg("daily verse sent")
	return nil
}
