package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gracechurch/tidings"
)

type fakeDeliverer struct {
	reqs []*tidings.BroadcastRequest
	err  error
}

func (f *fakeDeliverer) Deliver(_ context.Context, req *tidings.BroadcastRequest) (*tidings.BroadcastResult, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &tidings.BroadcastResult{ID: "id", Recipients: 2}, nil
}

func TestNewDailyVerse_Defaults(t *testing.T) {
	j := NewDailyVerse(new(tidings.Config), &fakeDeliverer{})

	assert.Equal(t, "0 6 * * *", j.Spec)
	assert.Equal(t, "daily_verse", j.Topic)
	assert.Equal(t, "Daily Bible Verse", j.Subject)
	assert.Equal(t, []string{DefaultVerse}, j.Verses)
}

func TestDailyVerse_Verse(t *testing.T) {
	cfg := new(tidings.Config)
	cfg.Newsletter.DailyVerse.Verses = []string{"first", "second", "third"}
	j := NewDailyVerse(cfg, &fakeDeliverer{})

	jan1 := time.Date(2026, time.January, 1, 6, 0, 0, 0, time.UTC)
	assert.Equal(t, "second", j.Verse(jan1))
	assert.Equal(t, "third", j.Verse(jan1.AddDate(0, 0, 1)))
	assert.Equal(t, "first", j.Verse(jan1.AddDate(0, 0, 2)))
}

func TestDailyVerse_Run(t *testing.T) {
	d := &fakeDeliverer{}
	j := NewDailyVerse(new(tidings.Config), d)
	j.Logger = zerolog.Nop()

	require.NoError(t, j.Run(context.Background()))
	require.Len(t, d.reqs, 1)
	assert.Equal(t, &tidings.BroadcastRequest{
		Topic:   "daily_verse",
		Subject: "Daily Bible Verse",
		Message: DefaultVerse,
	}, d.reqs[0])

	d.err = errors.New("smtp down")
	assert.Error(t, j.Run(context.Background()))
}

func TestDailyVerse_StartInvalidSpec(t *testing.T) {
	j := NewDailyVerse(new(tidings.Config), &fakeDeliverer{})
	j.Spec = "every morning"

	assert.Error(t, j.Start())
}

func TestDailyVerse_StartStop(t *testing.T) {
	j := NewDailyVerse(new(tidings.Config), &fakeDeliverer{})
	j.Logger = zerolog.Nop()

	require.NoError(t, j.Start())
	assert.Len(t, j.cron.Entries(), 1)
	j.Stop()
}
