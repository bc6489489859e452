package bolt

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/asdine/storm/v3"
	"github.com/go-errors/errors"

	"github.com/gracechurch/tidings"
)

type subscriptionService struct {
	db *DB
}

func NewSubscriptionService(db *DB) tidings.SubscriptionService {
	return &subscriptionService{
		db: db,
	}
}

func membershipKey(subscriberID int, topic string) string {
	return fmt.Sprintf("%d/%s", subscriberID, topic)
}

// UpsertSubscriber saves a new subscriber or updates name and phone of an existing email.
// Writable bolt transactions are serialized, so the lookup and the save cannot race.
func (ss *subscriptionService) UpsertSubscriber(ctx context.Context, name, email, phone string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	tx, err := ss.db.stormDB.Begin(true)
	if err != nil {
		return 0, tidings.StorageError("bolt.UpsertSubscriber", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	var s tidings.Subscriber
	switch err := tx.One("Email", email, &s); {
	case errors.Is(err, storm.ErrNotFound):
		s = tidings.Subscriber{Email: email, CreatedAt: now}
	case err != nil:
		return 0, tidings.StorageError("bolt.UpsertSubscriber", err)
	}
	s.Name = name
	s.Phone = phone
	s.UpdatedAt = now

	if err := tx.Save(&s); err != nil {
		return 0, tidings.StorageError("bolt.UpsertSubscriber", errors.Errorf("failed to save: %v", err))
	}
	if err := tx.Commit(); err != nil {
		return 0, tidings.StorageError("bolt.UpsertSubscriber", err)
	}

	return s.ID, nil
}

// SetTopics replaces all memberships of a subscriber in one transaction
func (ss *subscriptionService) SetTopics(ctx context.Context, subscriberID int, topics []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := ss.db.stormDB.Begin(true)
	if err != nil {
		return tidings.StorageError("bolt.SetTopics", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var s tidings.Subscriber
	if err := tx.One("ID", subscriberID, &s); err != nil {
		if errors.Is(err, storm.ErrNotFound) {
			return tidings.Errorf(tidings.ErrNotFound, "Subscriber %d not found.", subscriberID)
		}
		return tidings.StorageError("bolt.SetTopics", err)
	}

	var existing []tidings.Membership
	if err := tx.Find("SubscriberID", subscriberID, &existing); err != nil && !errors.Is(err, storm.ErrNotFound) {
		return tidings.StorageError("bolt.SetTopics", err)
	}
	for i := range existing {
		if err := tx.DeleteStruct(&existing[i]); err != nil {
			return tidings.StorageError("bolt.SetTopics", errors.Errorf("failed to delete: %v", err))
		}
	}

	now := time.Now().UTC()
	for _, topic := range tidings.NormalizeTopics(topics) {
		m := tidings.Membership{
			Key:          membershipKey(subscriberID, topic),
			SubscriberID: subscriberID,
			Topic:        topic,
			CreatedAt:    now,
		}
		if err := tx.Save(&m); err != nil {
			return tidings.StorageError("bolt.SetTopics", errors.Errorf("failed to save: %v", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return tidings.StorageError("bolt.SetTopics", err)
	}

	return nil
}

// MembersOf finds all subscribers of a topic
func (ss *subscriptionService) MembersOf(ctx context.Context, topic string) ([]tidings.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := ss.db.stormDB.Begin(false)
	if err != nil {
		return nil, tidings.StorageError("bolt.MembersOf", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var memberships []tidings.Membership
	if err := tx.Find("Topic", tidings.NormalizeTopic(topic), &memberships); err != nil && !errors.Is(err, storm.ErrNotFound) {
		return nil, tidings.StorageError("bolt.MembersOf", errors.Errorf("failed to find by topic: %v", err))
	}

	members := make([]tidings.Member, 0, len(memberships))
	for _, m := range memberships {
		var s tidings.Subscriber
		if err := tx.One("ID", m.SubscriberID, &s); err != nil {
			return nil, tidings.StorageError("bolt.MembersOf", errors.Errorf("failed to find subscriber %d: %v", m.SubscriberID, err))
		}
		members = append(members, tidings.Member{SubscriberID: s.ID, Email: s.Email})
	}
	tidings.SortMembers(members)

	return members, nil
}

// RemoveMembership unsubscribes an email from a topic
func (ss *subscriptionService) RemoveMembership(ctx context.Context, email, topic string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	tx, err := ss.db.stormDB.Begin(true)
	if err != nil {
		return false, tidings.StorageError("bolt.RemoveMembership", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var s tidings.Subscriber
	if err := tx.One("Email", email, &s); err != nil {
		if errors.Is(err, storm.ErrNotFound) {
			return false, nil
		}
		return false, tidings.StorageError("bolt.RemoveMembership", errors.Errorf("failed to find by email: %v", err))
	}

	return removeMembership(tx, s.ID, topic, "bolt.RemoveMembership")
}

// RemoveMembershipByID unsubscribes a subscriber from a topic
func (ss *subscriptionService) RemoveMembershipByID(ctx context.Context, subscriberID int, topic string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	tx, err := ss.db.stormDB.Begin(true)
	if err != nil {
		return false, tidings.StorageError("bolt.RemoveMembershipByID", err)
	}
	defer tx.Rollback() //nolint:errcheck

	return removeMembership(tx, subscriberID, topic, "bolt.RemoveMembershipByID")
}

func removeMembership(tx storm.Node, subscriberID int, topic, op string) (bool, error) {
	var m tidings.Membership
	if err := tx.One("Key", membershipKey(subscriberID, tidings.NormalizeTopic(topic)), &m); err != nil {
		if errors.Is(err, storm.ErrNotFound) {
			return false, nil
		}
		return false, tidings.StorageError(op, err)
	}

	if err := tx.DeleteStruct(&m); err != nil {
		return false, tidings.StorageError(op, errors.Errorf("failed to delete: %v", err))
	}
	if err := tx.Commit(); err != nil {
		return false, tidings.StorageError(op, err)
	}

	return true, nil
}

// FindByEmail finds a subscriber by email
func (ss *subscriptionService) FindByEmail(ctx context.Context, email string) (*tidings.Subscriber, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var s tidings.Subscriber
	if err := ss.db.stormDB.One("Email", email, &s); err != nil {
		if errors.Is(err, storm.ErrNotFound) {
			return nil, tidings.Errorf(tidings.ErrNotFound, "Subscriber %s not found.", email)
		}
		return nil, tidings.StorageError("bolt.FindByEmail", err)
	}

	return &s, nil
}

// TopicsOf returns the topics of a subscriber
func (ss *subscriptionService) TopicsOf(ctx context.Context, subscriberID int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var memberships []tidings.Membership
	if err := ss.db.stormDB.Find("SubscriberID", subscriberID, &memberships); err != nil && !errors.Is(err, storm.ErrNotFound) {
		return nil, tidings.StorageError("bolt.TopicsOf", err)
	}

	topics := make([]string, 0, len(memberships))
	for _, m := range memberships {
		topics = append(topics, m.Topic)
	}
	sort.Strings(topics)

	return topics, nil
}

// List returns every subscriber with each of its topics
func (ss *subscriptionService) List(ctx context.Context) ([]tidings.SubscriptionRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := ss.db.stormDB.Begin(false)
	if err != nil {
		return nil, tidings.StorageError("bolt.List", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var subscribers []tidings.Subscriber
	if err := tx.All(&subscribers); err != nil {
		return nil, tidings.StorageError("bolt.List", err)
	}
	var memberships []tidings.Membership
	if err := tx.All(&memberships); err != nil {
		return nil, tidings.StorageError("bolt.List", err)
	}

	topics := make(map[int][]string)
	for _, m := range memberships {
		topics[m.SubscriberID] = append(topics[m.SubscriberID], m.Topic)
	}

	sort.Slice(subscribers, func(i, j int) bool {
		return subscribers[i].Email < subscribers[j].Email
	})

	list := make([]tidings.SubscriptionRow, 0, len(subscribers)+len(memberships))
	for _, s := range subscribers {
		row := tidings.SubscriptionRow{ID: s.ID, Name: s.Name, Email: s.Email}
		categories := topics[s.ID]
		if len(categories) == 0 {
			list = append(list, row)
			continue
		}
		sort.Strings(categories)
		for _, c := range categories {
			c := c
			row.Category = &c
			list = append(list, row)
		}
	}

	return list, nil
}
