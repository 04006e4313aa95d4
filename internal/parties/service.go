package parties

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/bananalabs-oss/hatcher/internal/models"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// codeAttempts bounds the search for an unused 4-digit code.
const codeAttempts = 16

// Rand is the randomness the service draws from. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

type globalRand struct{}

func (globalRand) IntN(n int) int   { return rand.IntN(n) }
func (globalRand) Float64() float64 { return rand.Float64() }

type Option func(*Service)

func WithRand(r Rand) Option {
	return func(s *Service) { s.rand = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service owns every party mutation. Each method is one transaction, so a
// reader never sees half of a cascade.
type Service struct {
	db   *bun.DB
	rand Rand
	now  func() time.Time
}

func NewService(db *bun.DB, opts ...Option) *Service {
	s := &Service{
		db:   db,
		rand: globalRand{},
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Profile is what a player brings into a party.
type Profile struct {
	UserID  string
	Name    string
	Avatar  string
	EggSkin string
}

// Snapshot is a party with its roster in join order.
type Snapshot struct {
	*models.Party
	ServerTime int64 `json:"server_time"`
}

// IsLeader is the single capability check for leader-only actions.
func IsLeader(party *models.Party, userID string) bool {
	return party != nil && userID != "" && party.LeaderID == userID
}

func (s *Service) tx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, fn)
}

func partyQuery(db bun.IDB, party *models.Party, code string, lock bool) *bun.SelectQuery {
	q := db.NewSelect().
		Model(party).
		Where("code = ?", code)
	// SQLite has no row locks; its single connection already serializes writers.
	if lock && db.Dialect().Name() == dialect.PG {
		q = q.For("UPDATE")
	}
	return q
}

func findParty(ctx context.Context, db bun.IDB, code string) (*models.Party, error) {
	party := new(models.Party)
	if err := scanParty(ctx, partyQuery(db, party, code, false)); err != nil {
		return nil, err
	}
	return party, nil
}

// lockParty reads the party and holds its row until the transaction ends,
// so membership changes and teardown of the same party run one at a time.
func lockParty(ctx context.Context, tx bun.Tx, code string) (*models.Party, error) {
	party := new(models.Party)
	if err := scanParty(ctx, partyQuery(tx, party, code, true)); err != nil {
		return nil, err
	}
	return party, nil
}

func scanParty(ctx context.Context, q *bun.SelectQuery) error {
	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPartyNotFound
	}
	return err
}

func findPlayer(ctx context.Context, db bun.IDB, userID string) (*models.Player, error) {
	player := new(models.Player)
	err := db.NewSelect().
		Model(player).
		Where("user_id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, err
	}
	return player, nil
}

// replaceMembership drops any row the user already has, wherever it
// points, and seats them in party with a full boss.
func replaceMembership(ctx context.Context, tx bun.Tx, party *models.Party, p Profile, now time.Time) error {
	_, err := tx.NewDelete().
		Model((*models.Player)(nil)).
		Where("user_id = ?", p.UserID).
		Exec(ctx)
	if err != nil {
		return err
	}

	player := &models.Player{
		UserID:    p.UserID,
		PartyCode: party.Code,
		Name:      p.Name,
		Avatar:    p.Avatar,
		BossHp:    party.BossMaxHp,
		EggSkin:   p.EggSkin,
		JoinedAt:  now.UnixMilli(),
	}
	_, err = tx.NewInsert().Model(player).Exec(ctx)
	return err
}

func (s *Service) resetBosses(ctx context.Context, tx bun.Tx, party *models.Party) error {
	_, err := tx.NewUpdate().
		Model((*models.Player)(nil)).
		Set("boss_hp = ?", party.BossMaxHp).
		Where("party_code = ?", party.Code).
		Exec(ctx)
	return err
}

// --- Lifecycle ---

// CreateParty seats the user as leader of a new party under a random free
// code. A code already taken, including by a create still in flight, makes
// the insert a no-op and another code is drawn.
func (s *Service) CreateParty(ctx context.Context, p Profile) (string, error) {
	var code string
	err := s.tx(ctx, func(ctx context.Context, tx bun.Tx) error {
		for i := 0; i < codeAttempts; i++ {
			party := &models.Party{
				Code:               strconv.Itoa(1000 + s.rand.IntN(9000)),
				BossHp:             models.DefaultBossHp,
				BossMaxHp:          models.DefaultBossHp,
				MegaTarget:         models.DefaultMegaTarget,
				ExpeditionLocation: models.LocationForest,
				LeaderID:           p.UserID,
				ActiveGame:         models.GameNone,
			}
			res, err := tx.NewInsert().
				Model(party).
				On("CONFLICT (code) DO NOTHING").
				Exec(ctx)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				continue
			}

			code = party.Code
			return replaceMembership(ctx, tx, party, p, s.now())
		}
		return ErrCodeSpaceExhausted
	})
	if err != nil {
		return "", fmt.Errorf("create party: %w", err)
	}
	return code, nil
}

func (s *Service) JoinParty(ctx context.Context, code string, p Profile) error {
	err := s.tx(ctx, func(ctx context.Context, tx bun.Tx) error {
		party, err := lockParty(ctx, tx, code)
		if err != nil {
			return err
		}
		return replaceMembership(ctx, tx, party, p, s.now())
	})
	if err != nil {
		return fmt.Errorf("join party %s: %w", code, err)
	}
	return nil
}

// LeaveParty removes the user from their party. A leader leaving disbands
// the party and removes every member with it.
func (s *Service) LeaveParty(ctx context.Context, userID string) (Outcome, error) {
	var out Outcome
	err := s.tx(ctx, func(ctx context.Context, tx bun.Tx) error {
		player, err := findPlayer(ctx, tx, userID)
		if errors.Is(err, ErrPlayerNotFound) {
			out = ignored(ReasonNotMember)
			return nil
		}
		if err != nil {
			return err
		}

		party, err := lockParty(ctx, tx, player.PartyCode)
		if err != nil && !errors.Is(err, ErrPartyNotFound) {
			return err
		}

		if IsLeader(party, userID) {
			_, err := tx.NewDelete().
				Model((*models.Player)(nil)).
				Where("party_code = ?", party.Code).
				Exec(ctx)
			if err != nil {
				return err
			}
			_, err = tx.NewDelete().
				Model((*models.Party)(nil)).
				Where("code = ?", party.Code).
				Exec(ctx)
			if err != nil {
				return err
			}
			out = applied()
			return nil
		}

		_, err = tx.NewDelete().
			Model((*models.Player)(nil)).
			Where("user_id = ?", userID).
			Exec(ctx)
		if err != nil {
			return err
		}
		out = applied()
		return nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("leave party: %w", err)
	}
	return out, nil
}

func (s *Service) GetStatus(ctx context.Context, code string) (*Snapshot, error) {
	party := new(models.Party)
	err := s.tx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().
			Model(party).
			Relation("Players", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Order("joined_at ASC", "user_id ASC")
			}).
			Where("p.code = ?", code).
			Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPartyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get party %s: %w", code, err)
	}
	if party.Players == nil {
		party.Players = []models.Player{}
	}
	return &Snapshot{Party: party, ServerTime: s.now().Unix()}, nil
}

// PlayerMembership returns the user's current player row.
func (s *Service) PlayerMembership(ctx context.Context, userID string) (*models.Player, error) {
	player, err := findPlayer(ctx, s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("find player %s: %w", userID, err)
	}
	return player, nil
}

// --- Combat ---

// DealDamage lowers the user's own boss by amount, never below zero.
// Negative amounts count as zero.
func (s *Service) DealDamage(ctx context.Context, code, userID string, amount int) (int, Outcome, error) {
	amount = max(amount, 0)

	var hp int
	var out Outcome
	err := s.tx(ctx, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Player)(nil)).
			Set("boss_hp = CASE WHEN boss_hp > ? THEN boss_hp - ? ELSE 0 END", amount, amount).
			Where("user_id = ?", userID).
			Where("party_code = ?", code).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			out = ignored(ReasonPlayerNotInParty)
			return nil
		}

		err = tx.NewSelect().
			Model((*models.Player)(nil)).
			Column("boss_hp").
			Where("user_id = ?", userID).
			Scan(ctx, &hp)
		if err != nil {
			return err
		}
		out = applied()
		return nil
	})
	if err != nil {
		return 0, Outcome{}, fmt.Errorf("deal damage: %w", err)
	}
	return hp, out, nil
}

// WolfDamage hits the party's encounter if one is alive.
func (s *Service) WolfDamage(ctx context.Context, code string, amount int) (int, Outcome, error) {
	amount = max(amount, 0)

	var hp int
	var out Outcome
	err := s.tx(ctx, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Party)(nil)).
			Set("wolf_hp = CASE WHEN wolf_hp > ? THEN wolf_hp - ? ELSE 0 END", amount, amount).
			Where("code = ?", code).
			Where("wolf_hp > 0").
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}

		party, err := findParty(ctx, tx, code)
		if errors.Is(err, ErrPartyNotFound) {
			out = ignored(ReasonPartyNotFound)
			return nil
		}
		if err != nil {
			return err
		}
		hp = party.WolfHp
		if n == 0 {
			out = ignored(ReasonNoEncounter)
			return nil
		}
		out = applied()
		return nil
	})
	if err != nil {
		return 0, Outcome{}, fmt.Errorf("wolf damage: %w", err)
	}
	return hp, out, nil
}

// --- Expeditions ---

// StartExpedition resolves the current roster and stores the expedition.
// It returns the absolute end time in unix seconds.
func (s *Service) StartExpedition(ctx context.Context, code, location string) (int64, Expedition, error) {
	var end int64
	var exp Expedition
	err := s.tx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := lockParty(ctx, tx, code); err != nil {
			return err
		}

		var roster []models.Player
		err := tx.NewSelect().
			Model(&roster).
			Where("party_code = ?", code).
			Scan(ctx)
		if err != nil {
			return err
		}

		exp = ResolveExpedition(roster, location, s.rand.Float64())
		end = s.now().Unix() + exp.Duration

		_, err = tx.NewUpdate().
			Model((*models.Party)(nil)).
			Set("expedition_end = ?", end).
			Set("expedition_score = ?", exp.Score).
			Set("expedition_location = ?", exp.Location).
			Set("wolf_hp = ?", exp.WolfHp).
			Set("wolf_max_hp = ?", exp.WolfHp).
			Where("code = ?", code).
			Exec(ctx)
		return err
	})
	if err != nil {
		return 0, Expedition{}, fmt.Errorf("start expedition: %w", err)
	}
	return end, exp, nil
}

// ClaimExpedition clears the expedition and returns its score. The end time
// is not checked; completion is reported by the client.
func (s *Service) ClaimExpedition(ctx context.Context, code string) (int, Outcome, error) {
	var score int
	var out Outcome
	err := s.tx(ctx, func(ctx context.Context, tx bun.Tx) error {
		party, err := findParty(ctx, tx, code)
		if errors.Is(err, ErrPartyNotFound) {
			out = ignored(ReasonPartyNotFound)
			return nil
		}
		if err != nil {
			return err
		}
		score = party.ExpeditionScore

		_, err = tx.NewUpdate().
			Model((*models.Party)(nil)).
			Set("expedition_end = 0").
			Set("expedition_score = 0").
			Set("wolf_hp = 0").
			Where("code = ?", code).
			Exec(ctx)
		if err != nil {
			return err
		}
		out = applied()
		return nil
	})
	if err != nil {
		return 0, Outcome{}, fmt.Errorf("claim expedition: %w", err)
	}
	return score, out, nil
}

// --- Mega egg ---

// AddMegaTime advances the shared counter, capped at the party's target.
func (s *Service) AddMegaTime(ctx context.Context, code string, seconds int) (Outcome, error) {
	if seconds <= 0 {
		return ignored(ReasonNonPositive), nil
	}

	res, err := s.db.NewUpdate().
		Model((*models.Party)(nil)).
		Set("mega_progress = CASE WHEN ? >= mega_target - mega_progress THEN mega_target ELSE mega_progress + ? END", seconds, seconds).
		Where("code = ?", code).
		Exec(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("add mega time: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Outcome{}, fmt.Errorf("add mega time: %w", err)
	}
	if n == 0 {
		return ignored(ReasonPartyNotFound), nil
	}
	return applied(), nil
}

// ClaimMegaEgg resets progress. The target stays.
func (s *Service) ClaimMegaEgg(ctx context.Context, code string) (Outcome, error) {
	res, err := s.db.NewUpdate().
		Model((*models.Party)(nil)).
		Set("mega_progress = 0").
		Where("code = ?", code).
		Exec(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("claim mega egg: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Outcome{}, fmt.Errorf("claim mega egg: %w", err)
	}
	if n == 0 {
		return ignored(ReasonPartyNotFound), nil
	}
	return applied(), nil
}

// --- Game mode ---

// SetActiveGame switches the party's minigame. Only the leader may switch.
// Switching to none abandons the expedition and refills every boss;
// switching to tap_boss refills every boss. Other names are stored as is.
func (s *Service) SetActiveGame(ctx context.Context, code, userID, game string) (Outcome, error) {
	var out Outcome
	err := s.tx(ctx, func(ctx context.Context, tx bun.Tx) error {
		party, err := lockParty(ctx, tx, code)
		if errors.Is(err, ErrPartyNotFound) {
			out = ignored(ReasonPartyNotFound)
			return nil
		}
		if err != nil {
			return err
		}
		if !IsLeader(party, userID) {
			out = ignored(ReasonNotLeader)
			return nil
		}

		q := tx.NewUpdate().
			Model((*models.Party)(nil)).
			Set("active_game = ?", game).
			Where("code = ?", code)
		if game == models.GameNone {
			q = q.Set("expedition_end = 0").
				Set("expedition_score = 0").
				Set("wolf_hp = 0")
		}
		if _, err := q.Exec(ctx); err != nil {
			return err
		}

		switch game {
		case models.GameNone, models.GameTapBoss:
			if err := s.resetBosses(ctx, tx, party); err != nil {
				return err
			}
		}
		out = applied()
		return nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("set active game: %w", err)
	}
	return out, nil
}
