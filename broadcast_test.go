package tidings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	req := &BroadcastRequest{Topic: TopicDailyVerse, Subject: "Verse", Message: "Psalm 23"}

	t.Run("no members", func(t *testing.T) {
		assert.Nil(t, NewEnvelope("id-0", "church@x.com", nil, req))
		assert.Nil(t, NewEnvelope("id-0", "church@x.com", []Member{}, req))
	})

	t.Run("single member", func(t *testing.T) {
		e := NewEnvelope("id-1", "church@x.com", []Member{{SubscriberID: 1, Email: "a@x.com"}}, req)
		assert.Equal(t, "a@x.com", e.To)
		assert.Empty(t, e.Bcc)
		assert.Equal(t, []string{"a@x.com"}, e.Recipients())
	})

	t.Run("primary and blind copies", func(t *testing.T) {
		members := []Member{
			{SubscriberID: 1, Email: "a@x.com"},
			{SubscriberID: 2, Email: "b@x.com"},
			{SubscriberID: 3, Email: "c@x.com"},
		}
		e := NewEnvelope("id-2", "church@x.com", members, req)
		require.Equal(t, "a@x.com", e.To)
		assert.Equal(t, []string{"b@x.com", "c@x.com"}, e.Bcc)
		assert.NotContains(t, e.Bcc, e.To)
		assert.ElementsMatch(t, []string{"a@x.com", "b@x.com", "c@x.com"}, e.Recipients())
		assert.Equal(t, "church@x.com", e.From)
		assert.Equal(t, "Verse", e.Subject)
		assert.Equal(t, "Psalm 23", e.Body)
		assert.Equal(t, TopicDailyVerse, e.Topic)
	})
}

func TestBroadcastRequest_Validate(t *testing.T) {
	var nilReq *BroadcastRequest
	assert.Equal(t, ErrInvalid, ErrorCode(nilReq.Validate()))
	assert.Equal(t, ErrInvalid, ErrorCode((&BroadcastRequest{Subject: "s", Message: "m"}).Validate()))
	assert.Equal(t, ErrInvalid, ErrorCode((&BroadcastRequest{Topic: "events", Message: "m"}).Validate()))
	assert.Equal(t, ErrInvalid, ErrorCode((&BroadcastRequest{Topic: "events", Subject: "s", Message: "  "}).Validate()))
	assert.NoError(t, (&BroadcastRequest{Topic: "events", Subject: "s", Message: "m"}).Validate())
}

func TestBroadcastRequest_ValidateNormalizesTopic(t *testing.T) {
	req := &BroadcastRequest{Topic: " events ", Subject: "s", Message: "m"}
	require.NoError(t, req.Validate())
	assert.Equal(t, "events", req.Topic)

	assert.Equal(t, ErrInvalid, ErrorCode((&BroadcastRequest{Topic: "   ", Subject: "s", Message: "m"}).Validate()))
}
