package invites

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bananalabs-oss/hatcher/internal/models"
	"github.com/uptrace/bun"
)

// SQLStore keeps invites in the invites table. Expired rows are purged
// whenever a new invite is sent.
type SQLStore struct {
	db *bun.DB
}

func NewSQLStore(db *bun.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Send(ctx context.Context, inv *models.Invite) error {
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*models.Invite)(nil)).
			Where("sender_id = ? AND receiver_id = ?", inv.SenderID, inv.ReceiverID).
			Exec(ctx)
		if err != nil {
			return err
		}

		_, err = tx.NewDelete().
			Model((*models.Invite)(nil)).
			Where("created_at <= ?", cutoff(time.Unix(inv.Timestamp, 0))).
			Exec(ctx)
		if err != nil {
			return err
		}

		_, err = tx.NewInsert().Model(inv).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("send invite: %w", err)
	}
	return nil
}

func (s *SQLStore) Latest(ctx context.Context, receiverID string, now time.Time) (*models.Invite, error) {
	inv := new(models.Invite)
	err := s.db.NewSelect().
		Model(inv).
		Where("receiver_id = ?", receiverID).
		Where("created_at > ?", cutoff(now)).
		OrderExpr("created_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoInvite
	}
	if err != nil {
		return nil, fmt.Errorf("check invites: %w", err)
	}
	return inv, nil
}

func (s *SQLStore) Clear(ctx context.Context, id string) error {
	_, err := s.db.NewDelete().
		Model((*models.Invite)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("clear invite: %w", err)
	}
	return nil
}
