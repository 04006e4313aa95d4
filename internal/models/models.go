package models

import (
	"github.com/uptrace/bun"
)

const (
	GameNone    = "none"
	GameTapBoss = "tap_boss"

	LocationForest    = "forest"
	LocationMountains = "mountains"
	LocationSpace     = "space"

	DefaultBossHp     = 10000
	DefaultMegaTarget = 36000
)

type Party struct {
	bun.BaseModel `bun:"table:parties,alias:p"`

	Code               string `bun:"code,pk"                       json:"code"`
	BossHp             int    `bun:"boss_hp,notnull"               json:"boss_hp"`
	BossMaxHp          int    `bun:"boss_max_hp,notnull"           json:"boss_max_hp"`
	MegaProgress       int    `bun:"mega_progress,notnull"         json:"mega_progress"`
	MegaTarget         int    `bun:"mega_target,notnull"           json:"mega_target"`
	ExpeditionEnd      int64  `bun:"expedition_end,notnull"        json:"expedition_end"`
	ExpeditionScore    int    `bun:"expedition_score,notnull"      json:"expedition_score"`
	ExpeditionLocation string `bun:"expedition_location,notnull"   json:"expedition_location"`
	WolfHp             int    `bun:"wolf_hp,notnull"               json:"wolf_hp"`
	WolfMaxHp          int    `bun:"wolf_max_hp,notnull"           json:"wolf_max_hp"`
	LeaderID           string `bun:"leader_id,notnull"             json:"leader_id"`
	ActiveGame         string `bun:"active_game,notnull"           json:"active_game"`

	Players []Player `bun:"rel:has-many,join:code=party_code" json:"players"`
}

type Player struct {
	bun.BaseModel `bun:"table:players,alias:pl"`

	UserID    string `bun:"user_id,pk"           json:"user_id"`
	PartyCode string `bun:"party_code,notnull"   json:"party_code"`
	Name      string `bun:"name,notnull"         json:"name"`
	Avatar    string `bun:"avatar,notnull"       json:"avatar"`
	BossHp    int    `bun:"boss_hp,notnull"      json:"boss_hp"`
	EggSkin   string `bun:"egg_skin,notnull"     json:"egg_skin"`
	JoinedAt  int64  `bun:"joined_at,notnull"    json:"joined_at"`
}

type GlobalUser struct {
	bun.BaseModel `bun:"table:global_users,alias:gu"`

	UserID  string `bun:"user_id,pk"        json:"user_id"`
	Name    string `bun:"name,notnull"      json:"name"`
	Avatar  string `bun:"avatar,notnull"    json:"avatar"`
	Level   int    `bun:"level,notnull"     json:"level"`
	Earned  int64  `bun:"earned,notnull"    json:"earned"`
	Hatched int    `bun:"hatched,notnull"   json:"hatched"`
}

type Friend struct {
	bun.BaseModel `bun:"table:friends,alias:f"`

	UserID   string `bun:"user_id,pk"    json:"user_id"`
	FriendID string `bun:"friend_id,pk"  json:"friend_id"`
}

type Invite struct {
	bun.BaseModel `bun:"table:invites,alias:i"`

	ID         string `bun:"id,pk"               json:"id"`
	SenderID   string `bun:"sender_id,notnull"   json:"sender_id"`
	ReceiverID string `bun:"receiver_id,notnull" json:"receiver_id"`
	PartyCode  string `bun:"party_code,notnull"  json:"party_code"`
	Timestamp  int64  `bun:"created_at,notnull"  json:"timestamp"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
