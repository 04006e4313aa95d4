package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Migration is one forward-only schema step. Versions are applied in
// ascending order, each at most once.
type Migration struct {
	Version    int
	Name       string
	Statements []string
}

type schemaMigration struct {
	bun.BaseModel `bun:"table:schema_migrations"`

	Version   int    `bun:"version,pk"`
	Name      string `bun:"name,notnull"`
	AppliedAt int64  `bun:"applied_at,notnull"`
}

// Migrations is the declared schema history. Append only.
var Migrations = []Migration{
	{
		Version: 1,
		Name:    "base_tables",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS parties (
				code TEXT PRIMARY KEY,
				boss_hp INTEGER NOT NULL DEFAULT 10000,
				boss_max_hp INTEGER NOT NULL DEFAULT 10000
			)`,
			`CREATE TABLE IF NOT EXISTS players (
				user_id TEXT PRIMARY KEY,
				party_code TEXT NOT NULL,
				name TEXT NOT NULL DEFAULT '',
				avatar TEXT NOT NULL DEFAULT ''
			)`,
		},
	},
	{
		Version: 2,
		Name:    "mega_egg",
		Statements: []string{
			`ALTER TABLE parties ADD COLUMN mega_progress INTEGER NOT NULL DEFAULT 0`,
			`ALTER TABLE parties ADD COLUMN mega_target INTEGER NOT NULL DEFAULT 36000`,
		},
	},
	{
		Version: 3,
		Name:    "expeditions_and_player_boss",
		Statements: []string{
			`ALTER TABLE parties ADD COLUMN expedition_end BIGINT NOT NULL DEFAULT 0`,
			`ALTER TABLE parties ADD COLUMN expedition_score INTEGER NOT NULL DEFAULT 0`,
			`ALTER TABLE players ADD COLUMN boss_hp INTEGER NOT NULL DEFAULT 10000`,
			`ALTER TABLE players ADD COLUMN egg_skin TEXT NOT NULL DEFAULT ''`,
		},
	},
	{
		Version: 4,
		Name:    "leader_and_active_game",
		Statements: []string{
			`ALTER TABLE parties ADD COLUMN leader_id TEXT NOT NULL DEFAULT ''`,
			`ALTER TABLE parties ADD COLUMN active_game TEXT NOT NULL DEFAULT 'none'`,
		},
	},
	{
		Version: 5,
		Name:    "expedition_location_and_wolf",
		Statements: []string{
			`ALTER TABLE parties ADD COLUMN expedition_location TEXT NOT NULL DEFAULT 'forest'`,
			`ALTER TABLE parties ADD COLUMN wolf_hp INTEGER NOT NULL DEFAULT 0`,
			`ALTER TABLE parties ADD COLUMN wolf_max_hp INTEGER NOT NULL DEFAULT 0`,
		},
	},
	{
		Version: 6,
		Name:    "social",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS global_users (
				user_id TEXT PRIMARY KEY,
				name TEXT NOT NULL DEFAULT '',
				avatar TEXT NOT NULL DEFAULT '',
				level INTEGER NOT NULL DEFAULT 0,
				earned BIGINT NOT NULL DEFAULT 0,
				hatched INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE IF NOT EXISTS friends (
				user_id TEXT NOT NULL,
				friend_id TEXT NOT NULL,
				PRIMARY KEY (user_id, friend_id)
			)`,
		},
	},
	{
		Version: 7,
		Name:    "invites",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS invites (
				id TEXT PRIMARY KEY,
				sender_id TEXT NOT NULL,
				receiver_id TEXT NOT NULL,
				party_code TEXT NOT NULL,
				created_at BIGINT NOT NULL
			)`,
		},
	},
	{
		Version: 8,
		Name:    "roster_order_and_indexes",
		Statements: []string{
			`ALTER TABLE players ADD COLUMN joined_at BIGINT NOT NULL DEFAULT 0`,
			`CREATE INDEX IF NOT EXISTS idx_players_party_code ON players (party_code)`,
			`CREATE INDEX IF NOT EXISTS idx_invites_receiver ON invites (receiver_id, created_at)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_invites_pair ON invites (sender_id, receiver_id)`,
		},
	},
}

// Migrate applies every pending migration in its own transaction and
// records it in schema_migrations.
func Migrate(ctx context.Context, db *bun.DB, log *zap.SugaredLogger) error {
	return migrate(ctx, db, Migrations, log)
}

func migrate(ctx context.Context, db *bun.DB, migrations []Migration, log *zap.SugaredLogger) error {
	log.Infow("running database migrations")

	_, err := db.NewCreateTable().
		Model((*schemaMigration)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var applied []int
	err = db.NewSelect().
		Model((*schemaMigration)(nil)).
		Column("version").
		Scan(ctx, &applied)
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	last := 0
	for _, m := range migrations {
		if m.Version <= last {
			return fmt.Errorf("migration %d (%s) is out of order", m.Version, m.Name)
		}
		last = m.Version

		if done[m.Version] {
			continue
		}

		err := db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
			for _, stmt := range m.Statements {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.NewInsert().
				Model(&schemaMigration{
					Version:   m.Version,
					Name:      m.Name,
					AppliedAt: time.Now().UTC().UnixMilli(),
				}).
				Exec(ctx)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", m.Version, m.Name, err)
		}
		log.Infow("applied migration", "version", m.Version, "name", m.Name)
	}

	log.Infow("migrations complete", "version", last)
	return nil
}
