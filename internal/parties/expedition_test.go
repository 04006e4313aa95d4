package parties

import (
	"testing"

	"github.com/bananalabs-oss/hatcher/internal/models"
	"github.com/stretchr/testify/assert"
)

func roster(avatars ...string) []models.Player {
	players := make([]models.Player, len(avatars))
	for i, a := range avatars {
		players[i] = models.Player{UserID: string(rune('a' + i)), Avatar: a}
	}
	return players
}

func repeat(avatar string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = avatar
	}
	return out
}

func TestResolveExpeditionScore(t *testing.T) {
	tests := []struct {
		name    string
		avatars []string
		want    int
	}{
		{"seven gods", repeat("god", 7), 70},
		{"rare and common", []string{"fox", "owl", "blob"}, 7},
		{"three cows get farm bonus", []string{"cow", "cow", "cow", "blob"}, 6},
		{"farm bonus truncates", []string{"cow", "cow", "cow"}, 4},
		{"two cows no bonus", []string{"cow", "cow", "blob"}, 3},
		{"case sensitive", []string{"God", "GOD"}, 2},
		{"empty roster", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := ResolveExpedition(roster(tt.avatars...), models.LocationForest, 0.99)
			assert.Equal(t, tt.want, exp.Score)
		})
	}
}

func TestResolveExpeditionDuration(t *testing.T) {
	tests := []struct {
		name     string
		location string
		avatars  []string
		want     int64
	}{
		{"forest", models.LocationForest, []string{"blob"}, 1500},
		{"mountains", models.LocationMountains, []string{"blob"}, 3600},
		{"space", models.LocationSpace, []string{"blob"}, 7200},
		{"mountains with predators", models.LocationMountains, []string{"wolf", "bear"}, 3060},
		{"one predator", models.LocationMountains, []string{"wolf", "blob"}, 3600},
		{"forest with predators", models.LocationForest, []string{"lion", "lion", "lion"}, 1275},
		{"unknown location", "ocean", []string{"blob"}, 1500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := ResolveExpedition(roster(tt.avatars...), tt.location, 0.99)
			assert.Equal(t, tt.want, exp.Duration)
		})
	}
}

func TestResolveExpeditionWolf(t *testing.T) {
	players := roster("god", "cow", "blob")

	spawned := ResolveExpedition(players, models.LocationSpace, 0.39)
	assert.Equal(t, 150, spawned.WolfHp)

	none := ResolveExpedition(players, models.LocationSpace, 0.4)
	assert.Equal(t, 0, none.WolfHp)
}

func TestNormalizeLocation(t *testing.T) {
	assert.Equal(t, models.LocationSpace, NormalizeLocation("space"))
	assert.Equal(t, models.LocationForest, NormalizeLocation("Space"))
	assert.Equal(t, models.LocationForest, NormalizeLocation(""))
}
