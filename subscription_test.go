package tidings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTopics(t *testing.T) {
	assert.Equal(t, []string{}, NormalizeTopics(nil))
	assert.Equal(t, []string{"daily_verse", "events"}, NormalizeTopics([]string{" events", "daily_verse", "", "events ", "  "}))
	assert.Equal(t, []string{"Events", "events"}, NormalizeTopics([]string{"events", "Events"}))
}

func TestSortMembers(t *testing.T) {
	members := []Member{{3, "c@x.com"}, {1, "b@x.com"}, {2, "a@x.com"}}
	SortMembers(members)
	assert.Equal(t, []Member{{2, "a@x.com"}, {1, "b@x.com"}, {3, "c@x.com"}}, members)
}

func TestUnsubscribeStatusOf(t *testing.T) {
	assert.Equal(t, StatusRemoved, UnsubscribeStatusOf(true))
	assert.Equal(t, StatusAlreadyUnsubscribed, UnsubscribeStatusOf(false))
}

func TestAdminContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, AdminFromContext(ctx))
	assert.Equal(t, ErrUnauthorized, ErrorCode(RequireAdmin(AdminFromContext(ctx))))

	admin := &Admin{ID: 1, Email: "pastor@x.com"}
	ctx = NewContextWithAdmin(ctx, admin)
	assert.Same(t, admin, AdminFromContext(ctx))
	assert.NoError(t, RequireAdmin(AdminFromContext(ctx)))
}

func TestUnsubscribeLinks(t *testing.T) {
	assert.Equal(t,
		"https://grace.church/api/unsubscribe?category=daily_verse&email=a%40x.com&hash=abc%3D",
		UnsubscribeURL("https://grace.church/", TopicDailyVerse, "a@x.com", "abc="))
	assert.Equal(t,
		"https://grace.church/api/unsubscribe?category=events&email=a%40x.com",
		UnsubscribeURL("https://grace.church", TopicEvents, "a@x.com", ""))
	assert.Equal(t,
		"https://grace.church/api/unsubscribe/form?category=events",
		UnsubscribeFormURL("https://grace.church", TopicEvents))
}

func TestSubscriptionRequest_AllTopics(t *testing.T) {
	req := &SubscriptionRequest{Topics: []string{"events"}, Categories: []string{"daily_verse", "events"}}
	assert.Equal(t, []string{"daily_verse", "events"}, req.AllTopics())
	assert.Equal(t, []string{}, (&SubscriptionRequest{}).AllTopics())
}

func TestNormalizeTopic(t *testing.T) {
	assert.Equal(t, "events", NormalizeTopic(" events\t"))
	assert.Equal(t, "daily_verse", NormalizeTopic("daily_verse"))
	assert.Equal(t, "", NormalizeTopic("  "))
}
