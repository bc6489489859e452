package gmail

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/gracechurch/tidings"
	"github.com/gracechurch/tidings/pkg/hash"
)

type fakeSender struct {
	from   string
	to     []string
	raw    bytes.Buffer
	calls  int
	closed bool
	err    error
}

func (f *fakeSender) Send(from string, to []string, msg io.WriterTo) error {
	f.calls++
	f.from = from
	f.to = to
	if _, err := msg.WriteTo(&f.raw); err != nil {
		return err
	}
	return f.err
}

func (f *fakeSender) Close() error {
	f.closed = true
	return nil
}

func newTestService(sender *fakeSender) *mailService {
	cfg := new(tidings.Config)
	cfg.Newsletter.From = "Grace Church <church@grace.church>"
	cfg.Newsletter.Product.Name = "Grace Church"
	cfg.Newsletter.HMAC.Secret = "da02e221bc331c9875c5e1299fa8d765"

	return &mailService{
		Config:    cfg,
		ServerURL: "https://grace.church",
		dial: func() (gomail.SendCloser, error) {
			return sender, nil
		},
	}
}

func headerSection(raw string) string {
	if i := strings.Index(raw, "\r\n\r\n"); i >= 0 {
		return raw[:i]
	}
	return raw
}

func TestSend_HidesBlindCopies(t *testing.T) {
	sender := new(fakeSender)
	ms := newTestService(sender)

	e := &tidings.Envelope{
		ID:             "4f1c",
		To:             "a@x.com",
		Bcc:            []string{"b@x.com", "c@x.com"},
		Subject:        "Sunday service",
		Body:           "See you at **10am**.",
		Topic:          tidings.TopicEvents,
		UnsubscribeURL: tidings.UnsubscribeFormURL("https://grace.church", tidings.TopicEvents),
	}
	require.NoError(t, ms.Send(context.Background(), e))

	assert.Equal(t, 1, sender.calls)
	assert.True(t, sender.closed)
	assert.Equal(t, "church@grace.church", sender.from)
	assert.ElementsMatch(t, []string{"a@x.com", "b@x.com", "c@x.com"}, sender.to)

	raw := sender.raw.String()
	headers := headerSection(raw)
	assert.Contains(t, headers, "To: a@x.com")
	assert.Contains(t, headers, "Subject: Sunday service")
	assert.Contains(t, headers, "X-Broadcast-ID: 4f1c")
	assert.NotContains(t, raw, "b@x.com")
	assert.NotContains(t, raw, "c@x.com")
	assert.NotContains(t, headers, "Bcc")
}

func TestSend_Errors(t *testing.T) {
	t.Run("dispatch failure", func(t *testing.T) {
		sender := &fakeSender{err: errors.New("454 quota exceeded")}
		ms := newTestService(sender)

		err := ms.Send(context.Background(), &tidings.Envelope{To: "a@x.com", Subject: "s", Body: "b"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota exceeded")
		assert.True(t, sender.closed)
	})

	t.Run("dial failure", func(t *testing.T) {
		ms := newTestService(nil)
		ms.dial = func() (gomail.SendCloser, error) {
			return nil, errors.New("connection refused")
		}

		err := ms.Send(context.Background(), &tidings.Envelope{To: "a@x.com", Subject: "s", Body: "b"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("cancelled context", func(t *testing.T) {
		sender := new(fakeSender)
		ms := newTestService(sender)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.Error(t, ms.Send(ctx, &tidings.Envelope{To: "a@x.com", Subject: "s", Body: "b"}))
		assert.Equal(t, 0, sender.calls)
	})

	t.Run("no primary recipient", func(t *testing.T) {
		sender := new(fakeSender)
		ms := newTestService(sender)

		assert.Error(t, ms.Send(context.Background(), &tidings.Envelope{Subject: "s", Body: "b"}))
		assert.Equal(t, 0, sender.calls)
	})
}

func TestRenderBroadcast(t *testing.T) {
	ms := newTestService(nil)
	e := &tidings.Envelope{
		Body:           "The Lord is my shepherd",
		Topic:          tidings.TopicDailyVerse,
		UnsubscribeURL: "https://grace.church/api/unsubscribe/form?category=daily_verse",
	}

	htmlBody, textBody, err := ms.renderBroadcast(e)
	require.NoError(t, err)
	assert.Contains(t, htmlBody, "The Lord is my shepherd")
	assert.Contains(t, htmlBody, "https://grace.church/api/unsubscribe/form?category=daily_verse")
	assert.Contains(t, textBody, "The Lord is my shepherd")
}

func TestSendWelcomeEmail(t *testing.T) {
	sender := new(fakeSender)
	ms := newTestService(sender)
	s := &tidings.Subscriber{ID: 1, Name: "Ann", Email: "a@x.com"}

	require.NoError(t, ms.SendWelcomeEmail(context.Background(), s, []string{"daily_verse", "events"}))
	assert.Equal(t, []string{"a@x.com"}, sender.to)
	assert.Contains(t, headerSection(sender.raw.String()), "Subject: Thank you for subscribing")
}

func TestRenderWelcome_SignsLinks(t *testing.T) {
	ms := newTestService(nil)
	s := &tidings.Subscriber{ID: 1, Name: "Ann", Email: "a@x.com"}

	htmlBody, err := ms.renderWelcome(s, []string{"events"})
	require.NoError(t, err)
	assert.Contains(t, htmlBody, "Unsubscribe from events")
	assert.Contains(t, htmlBody, "category=events")
	assert.Contains(t, htmlBody, "email=a%40x.com")
	assert.Contains(t, htmlBody, "hash=")

	link, err := ms.unsubscribeURL("a@x.com", "events")
	require.NoError(t, err)
	expected, err := hash.SignUnsubscribe("a@x.com", "events", ms.Config.Newsletter.HMAC.Secret)
	require.NoError(t, err)
	assert.Equal(t, tidings.UnsubscribeURL("https://grace.church", "events", "a@x.com", expected), link)

	ms.Config.Newsletter.HMAC.Secret = ""
	link, err = ms.unsubscribeURL("a@x.com", "events")
	require.NoError(t, err)
	assert.NotContains(t, link, "hash=")
}

func TestRenderBroadcast_PlainTextIsVerbatim(t *testing.T) {
	ms := newTestService(nil)
	e := &tidings.Envelope{
		Body:           "Meet at daily_verse_group *after* service.\n\nBring 2 < 3 friends.",
		Topic:          tidings.TopicEvents,
		UnsubscribeURL: "https://grace.church/api/unsubscribe/form?category=events",
	}

	htmlBody, textBody, err := ms.renderBroadcast(e)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(textBody, e.Body))
	assert.Contains(t, textBody, "You receive this message because you subscribed to events.")
	assert.Contains(t, textBody, e.UnsubscribeURL)

	assert.Contains(t, htmlBody, "daily_verse_group")
	assert.Contains(t, htmlBody, "*after*")
	assert.NotContains(t, htmlBody, "<em>")
	assert.Contains(t, htmlBody, "Bring 2 &lt; 3 friends.")
}

func TestRenderBroadcast_HTMLBody(t *testing.T) {
	ms := newTestService(nil)
	e := &tidings.Envelope{
		Body:           "<p>Choir practice is <strong>cancelled</strong>.</p>",
		Topic:          tidings.TopicGeneral,
		UnsubscribeURL: "https://grace.church/api/unsubscribe/form?category=general",
	}

	htmlBody, textBody, err := ms.renderBroadcast(e)
	require.NoError(t, err)
	assert.Contains(t, htmlBody, "<strong>cancelled</strong>")
	assert.Contains(t, htmlBody, `href="https://grace.church/api/unsubscribe/form?category=general"`)
	assert.True(t, strings.HasPrefix(textBody, e.Body))
}
