package sqlite

import (
	"context"
	"database/sql"
	"errors"

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

// UpsertSubscriber inserts a subscriber or updates name and phone of an existing email
func (ss *subscriptionService) UpsertSubscriber(ctx context.Context, name, email, phone string) (int, error) {
	var id int
	err := ss.db.sqlDB.QueryRowContext(ctx, `
		INSERT INTO subscriptions (name, email, phone)
		VALUES (?, ?, ?)
		ON CONFLICT (email)
		DO UPDATE SET name = excluded.name, phone = excluded.phone, updated_at = CURRENT_TIMESTAMP
		RETURNING id`, name, email, phone).Scan(&id)
	if err != nil {
		return 0, tidings.StorageError("sqlite.UpsertSubscriber", err)
	}
	return id, nil
}

// SetTopics replaces the memberships of a subscriber in one transaction
func (ss *subscriptionService) SetTopics(ctx context.Context, subscriberID int, topics []string) error {
	const op = "sqlite.SetTopics"

	tx, err := ss.db.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return tidings.StorageError(op, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var id int
	if err := tx.QueryRowContext(ctx, `SELECT id FROM subscriptions WHERE id = ?`, subscriberID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tidings.Errorf(tidings.ErrNotFound, "Subscriber %d not found.", subscriberID)
		}
		return tidings.StorageError(op, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM subscription_categories WHERE subscription_id = ?`, subscriberID); err != nil {
		return tidings.StorageError(op, err)
	}

	for _, topic := range tidings.NormalizeTopics(topics) {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO subscription_categories (subscription_id, category)
			VALUES (?, ?)
			ON CONFLICT DO NOTHING`, subscriberID, topic)
		if err != nil {
			return tidings.StorageError(op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return tidings.StorageError(op, err)
	}
	committed = true

	return nil
}

// MembersOf finds all subscribers of a topic
func (ss *subscriptionService) MembersOf(ctx context.Context, topic string) ([]tidings.Member, error) {
	topic = tidings.NormalizeTopic(topic)
	rows, err := ss.db.sqlDB.QueryContext(ctx, `
		SELECT s.id, s.email
		FROM subscriptions s
		JOIN subscription_categories sc ON s.id = sc.subscription_id
		WHERE sc.category = ?
		ORDER BY s.email, s.id`, topic)
	if err != nil {
		return nil, tidings.StorageError("sqlite.MembersOf", err)
	}
	defer rows.Close()

	members := make([]tidings.Member, 0)
	for rows.Next() {
		var m tidings.Member
		if err := rows.Scan(&m.SubscriberID, &m.Email); err != nil {
			return nil, tidings.StorageError("sqlite.MembersOf", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, tidings.StorageError("sqlite.MembersOf", err)
	}

	return members, nil
}

// RemoveMembership unsubscribes an email from a topic
func (ss *subscriptionService) RemoveMembership(ctx context.Context, email, topic string) (bool, error) {
	topic = tidings.NormalizeTopic(topic)
	res, err := ss.db.sqlDB.ExecContext(ctx, `
		DELETE FROM subscription_categories
		WHERE category = ?
		AND subscription_id = (SELECT id FROM subscriptions WHERE email = ?)`, topic, email)
	if err != nil {
		return false, tidings.StorageError("sqlite.RemoveMembership", err)
	}
	return removed(res, "sqlite.RemoveMembership")
}

// RemoveMembershipByID unsubscribes a subscriber from a topic
func (ss *subscriptionService) RemoveMembershipByID(ctx context.Context, subscriberID int, topic string) (bool, error) {
	topic = tidings.NormalizeTopic(topic)
	res, err := ss.db.sqlDB.ExecContext(ctx, `
		DELETE FROM subscription_categories
		WHERE subscription_id = ? AND category = ?`, subscriberID, topic)
	if err != nil {
		return false, tidings.StorageError("sqlite.RemoveMembershipByID", err)
	}
	return removed(res, "sqlite.RemoveMembershipByID")
}

func removed(res sql.Result, op string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, tidings.StorageError(op, err)
	}
	return n > 0, nil
}

// FindByEmail finds a subscriber by email
func (ss *subscriptionService) FindByEmail(ctx context.Context, email string) (*tidings.Subscriber, error) {
	var s tidings.Subscriber
	err := ss.db.sqlDB.QueryRowContext(ctx, `
		SELECT id, name, email, phone, created_at, updated_at
		FROM subscriptions WHERE email = ?`, email).
		Scan(&s.ID, &s.Name, &s.Email, &s.Phone, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tidings.Errorf(tidings.ErrNotFound, "Subscriber %s not found.", email)
		}
		return nil, tidings.StorageError("sqlite.FindByEmail", err)
	}
	return &s, nil
}

// TopicsOf returns the topics of a subscriber
func (ss *subscriptionService) TopicsOf(ctx context.Context, subscriberID int) ([]string, error) {
	rows, err := ss.db.sqlDB.QueryContext(ctx, `
		SELECT category FROM subscription_categories
		WHERE subscription_id = ?
		ORDER BY category`, subscriberID)
	if err != nil {
		return nil, tidings.StorageError("sqlite.TopicsOf", err)
	}
	defer rows.Close()

	topics := make([]string, 0)
	for rows.Next() {
		var topic string
		if err := rows.Scan(&topic); err != nil {
			return nil, tidings.StorageError("sqlite.TopicsOf", err)
		}
		topics = append(topics, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, tidings.StorageError("sqlite.TopicsOf", err)
	}

	return topics, nil
}

// List returns every subscriber with each of its topics
func (ss *subscriptionService) List(ctx context.Context) ([]tidings.SubscriptionRow, error) {
	rows, err := ss.db.sqlDB.QueryContext(ctx, `
		SELECT s.id, s.name, s.email, sc.category
		FROM subscriptions s
		LEFT JOIN subscription_categories sc ON s.id = sc.subscription_id
		ORDER BY s.email, sc.category`)
	if err != nil {
		return nil, tidings.StorageError("sqlite.List", err)
	}
	defer rows.Close()

	list := make([]tidings.SubscriptionRow, 0)
	for rows.Next() {
		var (
			r        tidings.SubscriptionRow
			category sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Email, &category); err != nil {
			return nil, tidings.StorageError("sqlite.List", err)
		}
		if category.Valid {
			r.Category = &category.String
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, tidings.StorageError("sqlite.List", err)
	}

	return list, nil
}
