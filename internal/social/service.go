package social

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bananalabs-oss/hatcher/internal/models"
	"github.com/uptrace/bun"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrSelfFriend   = errors.New("cannot befriend yourself")
)

// FriendView is a friend's public profile plus the party they are in, if any.
type FriendView struct {
	UserID    string `bun:"user_id"    json:"user_id"`
	Name      string `bun:"name"       json:"name"`
	Avatar    string `bun:"avatar"     json:"avatar"`
	Level     int    `bun:"level"      json:"level"`
	Earned    int64  `bun:"earned"     json:"earned"`
	Hatched   int    `bun:"hatched"    json:"hatched"`
	PartyCode string `bun:"party_code" json:"party_code"`
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// SyncUser creates or replaces the caller's global profile.
func (s *Service) SyncUser(ctx context.Context, u *models.GlobalUser) error {
	_, err := s.db.NewInsert().
		Model(u).
		On("CONFLICT (user_id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("avatar = EXCLUDED.avatar").
		Set("level = EXCLUDED.level").
		Set("earned = EXCLUDED.earned").
		Set("hatched = EXCLUDED.hatched").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("sync user %s: %w", u.UserID, err)
	}
	return nil
}

func (s *Service) GetUser(ctx context.Context, userID string) (*models.GlobalUser, error) {
	u := new(models.GlobalUser)
	err := s.db.NewSelect().
		Model(u).
		Where("user_id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	return u, nil
}

// AddFriend links two users in both directions. Adding an existing friend
// is a no-op.
func (s *Service) AddFriend(ctx context.Context, userID, friendID string) error {
	if userID == friendID {
		return ErrSelfFriend
	}

	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*models.GlobalUser)(nil)).
			Where("user_id = ?", friendID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return ErrUserNotFound
		}

		edges := []models.Friend{
			{UserID: userID, FriendID: friendID},
			{UserID: friendID, FriendID: userID},
		}
		_, err = tx.NewInsert().
			Model(&edges).
			Ignore().
			Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("add friend: %w", err)
	}
	return nil
}

func (s *Service) ListFriends(ctx context.Context, userID string) ([]FriendView, error) {
	friends := []FriendView{}
	err := s.db.NewSelect().
		Model((*models.Friend)(nil)).
		ColumnExpr("gu.user_id, gu.name, gu.avatar, gu.level, gu.earned, gu.hatched").
		ColumnExpr("COALESCE(pl.party_code, '') AS party_code").
		Join("JOIN global_users AS gu ON gu.user_id = f.friend_id").
		Join("LEFT JOIN players AS pl ON pl.user_id = f.friend_id").
		Where("f.user_id = ?", userID).
		OrderExpr("gu.name ASC").
		Scan(ctx, &friends)
	if err != nil {
		return nil, fmt.Errorf("list friends of %s: %w", userID, err)
	}
	if friends == nil {
		friends = []FriendView{}
	}
	return friends, nil
}
