package tidings

import (
	"context"
	"sort"
	"strings"
	"time"
)

// SubscriptionService is the interface that wraps methods related to
// subscribers and their topic memberships.
type SubscriptionService interface {
	// UpsertSubscriber creates a subscriber for a new email or updates
	// name and phone of the existing one, returning its id.
	UpsertSubscriber(ctx context.Context, name, email, phone string) (int, error)
	// SetTopics replaces the whole membership set of a subscriber.
	SetTopics(ctx context.Context, subscriberID int, topics []string) error
	// MembersOf returns every member of topic ordered by email.
	MembersOf(ctx context.Context, topic string) ([]Member, error)
	// RemoveMembership removes a single membership by subscriber email.
	// It reports false when there was nothing to remove.
	RemoveMembership(ctx context.Context, email, topic string) (bool, error)
	// RemoveMembershipByID is RemoveMembership addressed by subscriber id.
	RemoveMembershipByID(ctx context.Context, subscriberID int, topic string) (bool, error)
	FindByEmail(ctx context.Context, email string) (*Subscriber, error)
	TopicsOf(ctx context.Context, subscriberID int) ([]string, error)
	List(ctx context.Context) ([]SubscriptionRow, error)
}

// Subscriber represents a recipient identified by email
type Subscriber struct {
	ID        int       `json:"id" storm:"id,increment"`
	Name      string    `json:"name"`
	Email     string    `json:"email" storm:"unique"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Membership records that a subscriber opted into a topic.
type Membership struct {
	ID           int    `storm:"id,increment"`
	Key          string `storm:"unique"`
	SubscriberID int    `storm:"index"`
	Topic        string `storm:"index"`
	CreatedAt    time.Time
}

// Member is a subscriber as seen from a topic.
type Member struct {
	SubscriberID int
	Email        string
}

// SubscriptionRow is one line of the admin listing. Category is nil for
// subscribers without any membership.
type SubscriptionRow struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Category *string `json:"category"`
}

// Well known topics
const (
	TopicDailyVerse = "daily_verse"
	TopicEvents     = "events"
	TopicGeneral    = "general"
)

// UnsubscribeStatus is the coarse outcome of a membership removal
type UnsubscribeStatus string

const (
	StatusRemoved             UnsubscribeStatus = "removed"
	StatusAlreadyUnsubscribed UnsubscribeStatus = "already-unsubscribed"
)

// UnsubscribeStatusOf converts a store removal result into a status.
func UnsubscribeStatusOf(removed bool) UnsubscribeStatus {
	if removed {
		return StatusRemoved
	}
	return StatusAlreadyUnsubscribed
}

// NormalizeTopic returns the stored form of a topic label. Every read and
// write of a membership goes through it.
func NormalizeTopic(topic string) string {
	return strings.TrimSpace(topic)
}

// NormalizeTopics trims, drops empty labels and de-duplicates topics.
// The result is sorted.
func NormalizeTopics(topics []string) []string {
	seen := make(map[string]struct{}, len(topics))
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		t = NormalizeTopic(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// SortMembers orders members by email, then id.
func SortMembers(members []Member) {
	sort.Slice(members, func(i, j int) bool {
		if members[i].Email != members[j].Email {
			return members[i].Email < members[j].Email
		}
		return members[i].SubscriberID < members[j].SubscriberID
	})
}

type SubscriptionRequest struct {
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Phone  string   `json:"phone"`
	Topics []string `json:"topics"`
	// Categories is accepted from older sign-up forms.
	Categories []string `json:"categories,omitempty"`
}

// AllTopics returns the normalized union of Topics and Categories.
func (r *SubscriptionRequest) AllTopics() []string {
	return NormalizeTopics(append(append([]string{}, r.Topics...), r.Categories...))
}

type SubscriptionResponse struct {
	Message string `json:"message"`
}

// RemoveMembershipRequest is the body of an admin membership removal.
type RemoveMembershipRequest struct {
	SubscriptionID int    `json:"subscriptionId"`
	Category       string `json:"category"`
}
