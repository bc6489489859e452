package postgres

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
		VALUES ($1, $2, $3)
		ON CONFLICT (email)
		DO UPDATE SET name = EXCLUDED.name, phone = EXCLUDED.phone, updated_at = NOW()
		RETURNING id`, name, email, phone).Scan(&id)
	if err != nil {
		return 0, tidings.StorageError("postgres.UpsertSubscriber", err)
	}
	return id, nil
}

// SetTopics replaces the memberships of a subscriber in one transaction
func (ss *subscriptionService) SetTopics(ctx context.Context, subscriberID int, topics []string) error {
	const op = "postgres.SetTopics"

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

	// Locking the subscriber row serializes concurrent replaces for it.
	var id int
	if err := tx.QueryRowContext(ctx, `SELECT id FROM subscriptions WHERE id = $1 FOR UPDATE`, subscriberID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tidings.Errorf(tidings.ErrNotFound, "Subscriber %d not found.", subscriberID)
		}
		return tidings.StorageError(op, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM subscription_categories WHERE subscription_id = $1`, subscriberID); err != nil {
		return tidings.StorageError(op, err)
	}

	for _, topic := range tidings.NormalizeTopics(topics) {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO subscription_categories (subscription_id, category)
			VALUES ($1, $2)
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
		WHERE sc.category = $1
		ORDER BY s.email, s.id`, topic)
	if err != nil {
		return nil, tidings.StorageError("postgres.MembersOf", err)
	}
	defer rows.Close()

	members := make([]tidings.Member, 0)
	for rows.Next() {
		var m tidings.Member
		if err := rows.Scan(&m.SubscriberID, &m.Email); err != nil {
			return nil, tidings.StorageError("postgres.MembersOf", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, tidings.StorageError("postgres.MembersOf", err)
	}

	return members, nil
}

// RemoveMembership unsubscribes an email from a topic
func (ss *subscriptionService) RemoveMembership(ctx context.Context, email, topic string) (bool, error) {
	topic = tidings.NormalizeTopic(topic)
	res, err := ss.db.sqlDB.ExecContext(ctx, `
		DELETE FROM subscription_categories
		WHERE category = $1
		AND subscription_id = (SELECT id FROM subscriptions WHERE email = $2)`, topic, email)
	if err != nil {
		return false, tidings.StorageError("postgres.RemoveMembership", err)
	}
	return removed(res, "postgres.RemoveMembership")
}

// RemoveMembershipByID unsubscribes a subscriber from a topic
func (ss *subscriptionService) RemoveMembershipByID(ctx context.Context, subscriberID int, topic string) (bool, error) {
	topic = tidings.NormalizeTopic(topic)
	res, err := ss.db.sqlDB.ExecContext(ctx, `
		DELETE FROM subscription_categories
		WHERE subscription_id = $1 AND category = $2`, subscriberID, topic)
	if err != nil {
		return false, tidings.StorageError("postgres.RemoveMembershipByID", err)
	}
	return removed(res, "postgres.RemoveMembershipByID")
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
		FROM subscriptions WHERE email = $1`, email).
		Scan(&s.ID, &s.Name, &s.Email, &s.Phone, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tidings.Errorf(tidings.ErrNotFound, "Subscriber %s not found.", email)
		}
		return nil, tidings.StorageError("postgres.FindByEmail", err)
	}
	return &s, nil
}

// TopicsOf returns the topics of a subscriber
func (ss *subscriptionService) TopicsOf(ctx context.Context, subscriberID int) ([]string, error) {
	rows, err := ss.db.sqlDB.QueryContext(ctx, `
		SELECT category FROM subscription_categories
		WHERE subscription_id = $1
		ORDER BY category`, subscriberID)
	if err != nil {
		return nil, tidings.StorageError("postgres.TopicsOf", err)
	}
	defer rows.Close()

	topics := make([]string, 0)
	for rows.Next() {
		var topic string
		if err := rows.Scan(&topic); err != nil {
			return nil, tidings.StorageError("postgres.TopicsOf", err)
		}
		topics = append(topics, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, tidings.StorageError("postgres.TopicsOf", err)
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
		return nil, tidings.StorageError("postgres.List", err)
	}
	defer rows.Close()

	list := make([]tidings.SubscriptionRow, 0)
	for rows.Next() {
		var (
			r        tidings.SubscriptionRow
			category sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Email, &category); err != nil {
			return nil, tidings.StorageError("postgres.List", err)
		}
		if category.Valid {
			r.Category = &category.String
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, tidings.StorageError("postgres.List", err)
	}

	return list, nil
}
