// Package storetest holds the behaviour every tidings.SubscriptionService
// implementation must share.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gracechurch/tidings"
)

// Run runs the store suite. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) tidings.SubscriptionService) {
	tests := []struct {
		name string
		fn   func(t *testing.T, ss tidings.SubscriptionService)
	}{
		{"SubscribeFreshEmail", testSubscribeFreshEmail},
		{"UpsertUpdatesProfile", testUpsertUpdatesProfile},
		{"SetTopicsIdempotent", testSetTopicsIdempotent},
		{"SetTopicsReplaces", testSetTopicsReplaces},
		{"SetTopicsDeduplicates", testSetTopicsDeduplicates},
		{"SetTopicsUnknownSubscriber", testSetTopicsUnknownSubscriber},
		{"SetTopicsAtomic", testSetTopicsAtomic},
		{"PaddedTopicLabels", testPaddedTopicLabels},
		{"RemoveMembershipIdempotent", testRemoveMembershipIdempotent},
		{"RemoveMembershipUnknownEmail", testRemoveMembershipUnknownEmail},
		{"RemoveMembershipByID", testRemoveMembershipByID},
		{"FindByEmail", testFindByEmail},
		{"List", testList},
		{"ExampleScenario", testExampleScenario},
		{"ConcurrentUpsert", testConcurrentUpsert},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

func subscribe(t *testing.T, ss tidings.SubscriptionService, email string, topics ...string) int {
	t.Helper()
	ctx := context.Background()
	id, err := ss.UpsertSubscriber(ctx, "Name of "+email, email, "")
	require.NoError(t, err)
	require.NoError(t, ss.SetTopics(ctx, id, topics))
	return id
}

func emails(t *testing.T, ss tidings.SubscriptionService, topic string) []string {
	t.Helper()
	members, err := ss.MembersOf(context.Background(), topic)
	require.NoError(t, err)
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.Email)
	}
	return out
}

func testSubscribeFreshEmail(t *testing.T, ss tidings.SubscriptionService) {
	ctx := context.Background()
	id := subscribe(t, ss, "a@x.com", "events", "daily_verse")

	members, err := ss.MembersOf(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, []tidings.Member{{SubscriberID: id, Email: "a@x.com"}}, members)
	assert.Equal(t, []string{"a@x.com"}, emails(t, ss, "daily_verse"))
	assert.Empty(t, emails(t, ss, "general"))

	topics, err := ss.TopicsOf(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"daily_verse", "events"}, topics)
}

func testUpsertUpdatesProfile(t *testing.T, ss tidings.SubscriptionService) {
	ctx := context.Background()
	id, err := ss.UpsertSubscriber(ctx, "Ann", "a@x.com", "555-0100")
	require.NoError(t, err)

	again, err := ss.UpsertSubscriber(ctx, "Ann Lee", "a@x.com", "")
	require.NoError(t, err)
	assert.Equal(t, id, again)

	s, err := ss.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, id, s.ID)
	assert.Equal(t, "Ann Lee", s.Name)
	assert.Equal(t, "", s.Phone)

	other, err := ss.UpsertSubscriber(ctx, "Bob", "A@x.com", "")
	require.NoError(t, err)
	assert.NotEqual(t, id, other, "emails are case-sensitive as stored")
}

func testSetTopicsIdempotent(t *testing.T, ss tidings.SubscriptionService) {
	ctx := context.Background()
	id := subscribe(t, ss, "a@x.com", "events", "general")
	require.NoError(t, ss.SetTopics(ctx, id, []string{"events", "general"}))

	topics, err := ss.TopicsOf(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"events", "general"}, topics)
	assert.Equal(t, []string{"a@x.com"}, emails(t, ss, "events"))
}

func testSetTopicsReplaces(t *testing.T, ss tidings.SubscriptionService) {
	ctx := context.Background()
	id := subscribe(t, ss, "a@x.com", "events", "general")
	require.NoError(t, ss.SetTopics(ctx, id, []string{"daily_verse"}))

	assert.Empty(t, emails(t, ss, "events"))
	assert.Empty(t, emails(t, ss, "general"))
	assert.Equal(t, []string{"a@x.com"}, emails(t, ss, "daily_verse"))

	require.NoError(t, ss.SetTopics(ctx, id, nil))
	topics, err := ss.TopicsOf(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, topics)
}

func testSetTopicsDeduplicates(t *testing.T, ss tidings.SubscriptionService) {
	ctx := context.Background()
	id := subscribe(t, ss, "a@x.com", "events", " events", "events ", "")

	topics, err := ss.TopicsOf(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"events"}, topics)
	assert.Equal(t, []string{"a@x.com"}, emails(t, ss, "events"))
}

func testSetTopicsUnknownSubscriber(t *testing.T, ss tidings.SubscriptionService) {
	err := ss.SetTopics(context.Background(), 4242, []string{"events"})
	assert.Equal(t, tidings.ErrNotFound, tidings.ErrorCode(err))
	assert.Empty(t, emails(t, ss, "events"))
}

func testRemoveMembershipIdempotent(t *testing.T, ss tidings.SubscriptionService) {
	ctx := context.Background()
	subscribe(t, ss, "a@x.com", "events", "daily_verse")

	removed, err := ss.RemoveMembership(ctx, "a@x.com", "daily_verse")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, emails(t, ss, "daily_verse"))

	removed, err = ss.RemoveMembership(ctx, "a@x.com", "daily_verse")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, []string{"a@x.com"}, emails(t, ss, "events"))
}

func testRemoveMembershipUnknownEmail(t *testing.T, ss tidings.SubscriptionService) {
	ctx := context.Background()
	subscribe(t, ss, "a@x.com", "events")
	before, err := ss.List(ctx)
	require.NoError(t, err)

	removed, err := ss.RemoveMembership(ctx, "nobody@x.com", "events")
	require.NoError(t, err)
	assert.False(t, removed)

	after, err := ss.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func testRemoveMembershipByID(t *testing.T, ss tidings.SubscriptionService) {
	ctx := context.Background()
	id := subscribe(t, ss, "a@x.com", "events", "general")

	removed, err := ss.RemoveMembershipByID(ctx, id, "general")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = ss.RemoveMembershipByID(ctx, id, "general")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = ss.RemoveMembershipByID(ctx, id+1000, "events")
	require.NoError(t, err)
	assert.False(t, removed)

	topics, err := ss.TopicsOf(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"events"}, topics)
}

func testFindByEmail(t *testing.T, ss tidings.SubscriptionService) {
	ctx := context.Background()
	_, err := ss.FindByEmail(ctx, "missing@x.com")
	assert.Equal(t, tidings.ErrNotFound, tidings.ErrorCode(err))

	id, err := ss.UpsertSubscriber(ctx, "Ann", "a@x.com", "555-0100")
	require.NoError(t, err)
	s, err := ss.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, id, s.ID)
	assert.Equal(t, "Ann", s.Name)
	assert.Equal(t, "555-0100", s.Phone)
	assert.False(t, s.CreatedAt.IsZero())
}

func testList(t *testing.T, ss tidings.SubscriptionService) {
	ctx := context.Background()
	b := subscribe(t, ss, "b@x.com", "general", "events")
	a := subscribe(t, ss, "a@x.com")

	rows, err := ss.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, a, rows[0].ID)
	assert.Equal(t, "a@x.com", rows[0].Email)
	assert.Nil(t, rows[0].Category)

	assert.Equal(t, b, rows[1].ID)
	require.NotNil(t, rows[1].Category)
	assert.Equal(t, "events", *rows[1].Category)
	require.NotNil(t, rows[2].Category)
	assert.Equal(t, "general", *rows[2].Category)
	assert.Equal(t, "Name of b@x.com", rows[2].Name)
}

func testExampleScenario(t *testing.T, ss tidings.SubscriptionService) {
	ctx := context.Background()
	subscribe(t, ss, "a@x.com", "events", "daily_verse")
	subscribe(t, ss, "b@x.com", "daily_verse")

	assert.Equal(t, []string{"a@x.com", "b@x.com"}, emails(t, ss, "daily_verse"))
	assert.Equal(t, []string{"a@x.com"}, emails(t, ss, "events"))

	removed, err := ss.RemoveMembership(ctx, "a@x.com", "daily_verse")
	require.NoError(t, err)
	assert.True(t, removed)

	assert.Equal(t, []string{"b@x.com"}, emails(t, ss, "daily_verse"))
	assert.Equal(t, []string{"a@x.com"}, emails(t, ss, "events"))
}

func testConcurrentUpsert(t *testing.T, ss tidings.SubscriptionService) {
	ctx := context.Background()
	const n = 8

	var wg sync.WaitGroup
	ids := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = ss.UpsertSubscriber(ctx, fmt.Sprintf("Ann %d", i), "a@x.com", "")
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	rows, err := ss.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

// Readers must observe the old or the new membership set, never the empty
// set in between the delete and the inserts of a replace.
func testSetTopicsAtomic(t *testing.T, ss tidings.SubscriptionService) {
	ctx := context.Background()
	id := subscribe(t, ss, "a@x.com", "events")

	const (
		writers    = 4
		readers    = 4
		iterations = 25
	)
	sets := [][]string{{"events"}, {"events", "general"}, {"daily_verse", "events"}}

	var (
		wg          sync.WaitGroup
		emptyReads  int64
		readErrors  int64
		writeErrors int64
		done        = make(chan struct{})
	)

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				if err := ss.SetTopics(ctx, id, sets[(w+i)%len(sets)]); err != nil {
					atomic.AddInt64(&writeErrors, 1)
				}
			}
		}(w)
	}

	var rg sync.WaitGroup
	for r := 0; r < readers; r++ {
		rg.Add(1)
		go func() {
			defer rg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				members, err := ss.MembersOf(ctx, "events")
				if err != nil {
					atomic.AddInt64(&readErrors, 1)
					continue
				}
				if len(members) == 0 {
					atomic.AddInt64(&emptyReads, 1)
				}
			}
		}()
	}

	wg.Wait()
	close(done)
	rg.Wait()

	assert.Zero(t, atomic.LoadInt64(&writeErrors), "write errors")
	assert.Zero(t, atomic.LoadInt64(&readErrors), "read errors")
	assert.Zero(t, atomic.LoadInt64(&emptyReads), "empty reads")

	topics, err := ss.TopicsOf(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, topics, "events")
}

func testPaddedTopicLabels(t *testing.T, ss tidings.SubscriptionService) {
	ctx := context.Background()
	id := subscribe(t, ss, "a@x.com", " events ", "general")

	assert.Equal(t, []string{"a@x.com"}, emails(t, ss, " events "))
	assert.Equal(t, []string{"a@x.com"}, emails(t, ss, "events"))

	removed, err := ss.RemoveMembership(ctx, "a@x.com", " events ")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, emails(t, ss, "events"))

	removed, err = ss.RemoveMembershipByID(ctx, id, "general\n")
	require.NoError(t, err)
	assert.True(t, removed)

	topics, err := ss.TopicsOf(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, topics)
}
