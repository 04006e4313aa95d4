package parties

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/bananalabs-oss/hatcher/internal/database/databasetest"
	"github.com/bananalabs-oss/hatcher/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// fixedRand replays codes in order and always rolls the same float.
type fixedRand struct {
	mu    sync.Mutex
	codes []int
	roll  float64
}

func (r *fixedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.codes) == 0 {
		return 0
	}
	v := r.codes[0]
	r.codes = r.codes[1:]
	return v % n
}

func (r *fixedRand) Float64() float64 { return r.roll }

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, r *fixedRand) *Service {
	t.Helper()
	if r == nil {
		r = &fixedRand{roll: 0.99}
	}
	return NewService(databasetest.New(t), WithRand(r), WithClock(func() time.Time { return testNow }))
}

func mustCreate(t *testing.T, svc *Service, userID, avatar string) string {
	t.Helper()
	code, err := svc.CreateParty(context.Background(), Profile{UserID: userID, Name: userID, Avatar: avatar})
	require.NoError(t, err)
	return code
}

func mustJoin(t *testing.T, svc *Service, code, userID, avatar string) {
	t.Helper()
	require.NoError(t, svc.JoinParty(context.Background(), code, Profile{UserID: userID, Name: userID, Avatar: avatar}))
}

func TestCreatePartyDefaults(t *testing.T) {
	svc := newTestService(t, &fixedRand{codes: []int{234}, roll: 0.99})
	ctx := context.Background()

	code, err := svc.CreateParty(ctx, Profile{UserID: "u1", Name: "Ann", Avatar: "cow", EggSkin: "gold"})
	require.NoError(t, err)
	assert.Equal(t, "1234", code)

	snap, err := svc.GetStatus(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "u1", snap.LeaderID)
	assert.Equal(t, models.GameNone, snap.ActiveGame)
	assert.Equal(t, models.DefaultBossHp, snap.BossHp)
	assert.Equal(t, models.DefaultBossHp, snap.BossMaxHp)
	assert.Equal(t, 0, snap.MegaProgress)
	assert.Equal(t, models.DefaultMegaTarget, snap.MegaTarget)
	assert.Zero(t, snap.ExpeditionEnd)
	assert.Zero(t, snap.WolfHp)
	assert.Equal(t, testNow.Unix(), snap.ServerTime)

	require.Len(t, snap.Players, 1)
	assert.Equal(t, "Ann", snap.Players[0].Name)
	assert.Equal(t, "gold", snap.Players[0].EggSkin)
	assert.Equal(t, models.DefaultBossHp, snap.Players[0].BossHp)
}

func TestCreatePartyRetriesTakenCodes(t *testing.T) {
	r := &fixedRand{codes: []int{1, 1, 2}, roll: 0.99}
	svc := newTestService(t, r)

	first := mustCreate(t, svc, "u1", "cow")
	second := mustCreate(t, svc, "u2", "cow")

	assert.Equal(t, "1001", first)
	assert.Equal(t, "1002", second)
}

func TestCreatePartyCodeSpaceExhausted(t *testing.T) {
	codes := make([]int, 1+codeAttempts)
	r := &fixedRand{codes: codes, roll: 0.99}
	svc := newTestService(t, r)

	mustCreate(t, svc, "u1", "cow")
	_, err := svc.CreateParty(context.Background(), Profile{UserID: "u2"})
	assert.ErrorIs(t, err, ErrCodeSpaceExhausted)
}

func TestConcurrentCreatesDrawingSameCode(t *testing.T) {
	r := &fixedRand{codes: []int{5, 5, 6}, roll: 0.99}
	svc := newTestService(t, r)
	ctx := context.Background()

	codes := make([]string, 2)
	var wg sync.WaitGroup
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code, err := svc.CreateParty(ctx, Profile{UserID: fmt.Sprintf("u%d", i)})
			assert.NoError(t, err)
			codes[i] = code
		}(i)
	}
	wg.Wait()

	assert.ElementsMatch(t, []string{"1005", "1006"}, codes)
}

func TestJoinUnknownParty(t *testing.T) {
	svc := newTestService(t, nil)

	err := svc.JoinParty(context.Background(), "9999", Profile{UserID: "u1"})
	assert.ErrorIs(t, err, ErrPartyNotFound)
}

func TestJoinMovesPlayerBetweenParties(t *testing.T) {
	svc := newTestService(t, &fixedRand{codes: []int{1, 2}, roll: 0.99})
	ctx := context.Background()

	a := mustCreate(t, svc, "leader-a", "cow")
	b := mustCreate(t, svc, "leader-b", "cow")

	mustJoin(t, svc, a, "u1", "fox")
	mustJoin(t, svc, b, "u1", "owl")

	snapA, err := svc.GetStatus(ctx, a)
	require.NoError(t, err)
	assert.Len(t, snapA.Players, 1)

	snapB, err := svc.GetStatus(ctx, b)
	require.NoError(t, err)
	require.Len(t, snapB.Players, 2)
	assert.Equal(t, "owl", snapB.Players[1].Avatar)
}

func TestLeaveNonMemberIsNoop(t *testing.T) {
	svc := newTestService(t, nil)

	out, err := svc.LeaveParty(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, ReasonNotMember, out.Reason)
}

func TestMemberLeaveKeepsParty(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	code := mustCreate(t, svc, "leader", "cow")
	mustJoin(t, svc, code, "u1", "fox")

	out, err := svc.LeaveParty(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, out.Applied)

	snap, err := svc.GetStatus(ctx, code)
	require.NoError(t, err)
	require.Len(t, snap.Players, 1)
	assert.Equal(t, "leader", snap.Players[0].UserID)
}

func TestLeaderLeaveDisbandsParty(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	code := mustCreate(t, svc, "leader", "cow")
	mustJoin(t, svc, code, "u1", "fox")
	mustJoin(t, svc, code, "u2", "owl")

	out, err := svc.LeaveParty(ctx, "leader")
	require.NoError(t, err)
	assert.True(t, out.Applied)

	_, err = svc.GetStatus(ctx, code)
	assert.ErrorIs(t, err, ErrPartyNotFound)

	remaining, err := svc.db.NewSelect().
		Model((*models.Player)(nil)).
		Where("party_code = ?", code).
		Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestJoinRacingLeaderLeaveLeavesNoPlayers(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	code := mustCreate(t, svc, "leader", "owl")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			err := svc.JoinParty(ctx, code, Profile{UserID: userID})
			if err != nil {
				assert.ErrorIs(t, err, ErrPartyNotFound)
			}
		}(fmt.Sprintf("m%d", i))
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		out, err := svc.LeaveParty(ctx, "leader")
		assert.NoError(t, err)
		assert.True(t, out.Applied)
	}()
	wg.Wait()

	_, err := svc.GetStatus(ctx, code)
	require.ErrorIs(t, err, ErrPartyNotFound)

	left, err := svc.db.NewSelect().
		Model((*models.Player)(nil)).
		Where("party_code = ?", code).
		Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, left)
}

func TestPartyRowLockIsPostgresOnly(t *testing.T) {
	sqldb, err := sql.Open("postgres", "postgres://localhost/hatcher?sslmode=disable")
	require.NoError(t, err)
	pg := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { pg.Close() })

	assert.Contains(t, partyQuery(pg, new(models.Party), "1234", true).String(), "FOR UPDATE")
	assert.NotContains(t, partyQuery(pg, new(models.Party), "1234", false).String(), "FOR UPDATE")

	lite := databasetest.New(t)
	assert.NotContains(t, partyQuery(lite, new(models.Party), "1234", true).String(), "FOR UPDATE")
}

func TestDealDamageClampsAtZero(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	code := mustCreate(t, svc, "u1", "cow")

	hp, out, err := svc.DealDamage(ctx, code, "u1", 400)
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, models.DefaultBossHp-400, hp)

	hp, _, err = svc.DealDamage(ctx, code, "u1", 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, 0, hp)

	hp, _, err = svc.DealDamage(ctx, code, "u1", 5)
	require.NoError(t, err)
	assert.Equal(t, 0, hp)
}

func TestDealDamageIgnoresNegativeAmounts(t *testing.T) {
	svc := newTestService(t, nil)
	code := mustCreate(t, svc, "u1", "cow")

	hp, out, err := svc.DealDamage(context.Background(), code, "u1", -50)
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, models.DefaultBossHp, hp)
}

func TestDealDamageIsPerPlayer(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	code := mustCreate(t, svc, "u1", "cow")
	mustJoin(t, svc, code, "u2", "fox")

	_, _, err := svc.DealDamage(ctx, code, "u1", 100)
	require.NoError(t, err)

	snap, err := svc.GetStatus(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultBossHp-100, snap.Players[0].BossHp)
	assert.Equal(t, models.DefaultBossHp, snap.Players[1].BossHp)
}

func TestDealDamageOutsidePartyIsIgnored(t *testing.T) {
	svc := newTestService(t, &fixedRand{codes: []int{1, 2}, roll: 0.99})
	ctx := context.Background()

	a := mustCreate(t, svc, "u1", "cow")
	b := mustCreate(t, svc, "u2", "cow")

	_, out, err := svc.DealDamage(ctx, b, "u1", 10)
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, ReasonPlayerNotInParty, out.Reason)

	_, out, err = svc.DealDamage(ctx, a, "nobody", 10)
	require.NoError(t, err)
	assert.False(t, out.Applied)
}

func TestConcurrentDamageLosesNoUpdates(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	code := mustCreate(t, svc, "u1", "cow")

	const hits = 40
	var wg sync.WaitGroup
	for i := 0; i < hits; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.DealDamage(ctx, code, "u1", 10)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snap, err := svc.GetStatus(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultBossHp-hits*10, snap.Players[0].BossHp)
}

func TestWolfDamage(t *testing.T) {
	svc := newTestService(t, &fixedRand{roll: 0.1})
	ctx := context.Background()

	code := mustCreate(t, svc, "u1", "cow")
	mustJoin(t, svc, code, "u2", "fox")

	_, exp, err := svc.StartExpedition(ctx, code, models.LocationForest)
	require.NoError(t, err)
	require.Equal(t, 100, exp.WolfHp)

	hp, out, err := svc.WolfDamage(ctx, code, 30)
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, 70, hp)

	hp, _, err = svc.WolfDamage(ctx, code, 500)
	require.NoError(t, err)
	assert.Equal(t, 0, hp)

	_, out, err = svc.WolfDamage(ctx, code, 10)
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, ReasonNoEncounter, out.Reason)

	_, out, err = svc.WolfDamage(ctx, "0000", 10)
	require.NoError(t, err)
	assert.Equal(t, ReasonPartyNotFound, out.Reason)
}

func TestStartExpeditionPersistsResult(t *testing.T) {
	svc := newTestService(t, &fixedRand{roll: 0.99})
	ctx := context.Background()

	code := mustCreate(t, svc, "u1", "wolf")
	mustJoin(t, svc, code, "u2", "bear")

	end, exp, err := svc.StartExpedition(ctx, code, models.LocationMountains)
	require.NoError(t, err)
	assert.Equal(t, testNow.Unix()+3060, end)
	assert.Equal(t, 2, exp.Score)

	snap, err := svc.GetStatus(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, end, snap.ExpeditionEnd)
	assert.Equal(t, 2, snap.ExpeditionScore)
	assert.Equal(t, models.LocationMountains, snap.ExpeditionLocation)
	assert.Zero(t, snap.WolfHp)
	assert.Zero(t, snap.WolfMaxHp)
}

func TestStartExpeditionUnknownParty(t *testing.T) {
	svc := newTestService(t, nil)

	_, _, err := svc.StartExpedition(context.Background(), "0000", models.LocationForest)
	assert.ErrorIs(t, err, ErrPartyNotFound)
}

func TestClaimExpeditionResets(t *testing.T) {
	svc := newTestService(t, &fixedRand{roll: 0.1})
	ctx := context.Background()

	code := mustCreate(t, svc, "u1", "god")

	_, _, err := svc.StartExpedition(ctx, code, models.LocationSpace)
	require.NoError(t, err)

	score, out, err := svc.ClaimExpedition(ctx, code)
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, 10, score)

	snap, err := svc.GetStatus(ctx, code)
	require.NoError(t, err)
	assert.Zero(t, snap.ExpeditionEnd)
	assert.Zero(t, snap.ExpeditionScore)
	assert.Zero(t, snap.WolfHp)
}

func TestMegaEggProgressIsBounded(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	code := mustCreate(t, svc, "u1", "cow")

	prev := 0
	for _, seconds := range []int{1000, 20000, 0, -5, 14000, 9000, 1} {
		_, err := svc.AddMegaTime(ctx, code, seconds)
		require.NoError(t, err)

		snap, err := svc.GetStatus(ctx, code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, snap.MegaProgress, prev)
		assert.LessOrEqual(t, snap.MegaProgress, snap.MegaTarget)
		prev = snap.MegaProgress
	}
	assert.Equal(t, models.DefaultMegaTarget, prev)

	out, err := svc.ClaimMegaEgg(ctx, code)
	require.NoError(t, err)
	assert.True(t, out.Applied)

	snap, err := svc.GetStatus(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.MegaProgress)
	assert.Equal(t, models.DefaultMegaTarget, snap.MegaTarget)
}

func TestMegaEggHugeAmountFillsToTarget(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()
	code := mustCreate(t, svc, "u1", "cow")

	_, err := svc.AddMegaTime(ctx, code, 500)
	require.NoError(t, err)
	out, err := svc.AddMegaTime(ctx, code, math.MaxInt64)
	require.NoError(t, err)
	assert.True(t, out.Applied)

	snap, err := svc.GetStatus(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultMegaTarget, snap.MegaProgress)
}

func TestMegaEggUnknownParty(t *testing.T) {
	svc := newTestService(t, nil)

	out, err := svc.AddMegaTime(context.Background(), "0000", 10)
	require.NoError(t, err)
	assert.Equal(t, ReasonPartyNotFound, out.Reason)
}

func TestSetActiveGameRequiresLeader(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	code := mustCreate(t, svc, "leader", "cow")
	mustJoin(t, svc, code, "u1", "fox")

	out, err := svc.SetActiveGame(ctx, code, "u1", models.GameTapBoss)
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, ReasonNotLeader, out.Reason)

	snap, err := svc.GetStatus(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, models.GameNone, snap.ActiveGame)
}

func TestSetActiveGameTapBossRefillsBosses(t *testing.T) {
	svc := newTestService(t, &fixedRand{roll: 0.1})
	ctx := context.Background()

	code := mustCreate(t, svc, "leader", "cow")
	mustJoin(t, svc, code, "u1", "fox")

	_, _, err := svc.DealDamage(ctx, code, "u1", 500)
	require.NoError(t, err)
	end, _, err := svc.StartExpedition(ctx, code, models.LocationForest)
	require.NoError(t, err)

	out, err := svc.SetActiveGame(ctx, code, "leader", models.GameTapBoss)
	require.NoError(t, err)
	assert.True(t, out.Applied)

	snap, err := svc.GetStatus(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, models.GameTapBoss, snap.ActiveGame)
	for _, p := range snap.Players {
		assert.Equal(t, snap.BossMaxHp, p.BossHp)
	}
	assert.Equal(t, end, snap.ExpeditionEnd)
	assert.Equal(t, 100, snap.WolfHp)
}

func TestSetActiveGameNoneResetsEverything(t *testing.T) {
	svc := newTestService(t, &fixedRand{roll: 0.1})
	ctx := context.Background()

	code := mustCreate(t, svc, "leader", "cow")
	_, _, err := svc.DealDamage(ctx, code, "leader", 500)
	require.NoError(t, err)
	_, _, err = svc.StartExpedition(ctx, code, models.LocationForest)
	require.NoError(t, err)
	_, err = svc.SetActiveGame(ctx, code, "leader", models.GameTapBoss)
	require.NoError(t, err)
	_, _, err = svc.DealDamage(ctx, code, "leader", 500)
	require.NoError(t, err)

	out, err := svc.SetActiveGame(ctx, code, "leader", models.GameNone)
	require.NoError(t, err)
	assert.True(t, out.Applied)

	snap, err := svc.GetStatus(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, models.GameNone, snap.ActiveGame)
	assert.Zero(t, snap.ExpeditionEnd)
	assert.Zero(t, snap.ExpeditionScore)
	assert.Zero(t, snap.WolfHp)
	assert.Equal(t, snap.BossMaxHp, snap.Players[0].BossHp)
}

func TestSetActiveGameOpaqueLabel(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	code := mustCreate(t, svc, "leader", "cow")
	_, _, err := svc.DealDamage(ctx, code, "leader", 500)
	require.NoError(t, err)

	_, err = svc.SetActiveGame(ctx, code, "leader", "egg_race")
	require.NoError(t, err)

	snap, err := svc.GetStatus(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "egg_race", snap.ActiveGame)
	assert.Equal(t, snap.BossMaxHp-500, snap.Players[0].BossHp)
}

func TestIsLeader(t *testing.T) {
	party := &models.Party{LeaderID: "u1"}

	assert.True(t, IsLeader(party, "u1"))
	assert.False(t, IsLeader(party, "u2"))
	assert.False(t, IsLeader(&models.Party{}, ""))
	assert.False(t, IsLeader(nil, "u1"))
}
