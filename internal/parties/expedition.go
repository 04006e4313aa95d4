package parties

import "github.com/bananalabs-oss/hatcher/internal/models"

const (
	legendaryScore = 10
	rareScore      = 3
	commonScore    = 1

	farmBonusThreshold     = 3
	predatorBonusThreshold = 2

	wolfSpawnChance = 0.4
	wolfHpPerPlayer = 50
)

// Avatar tables are matched exactly and case-sensitively. Anything not
// listed scores as common.
var (
	legendaryAvatars = set("god", "dragon", "phoenix", "unicorn")
	rareAvatars      = set("fox", "owl", "panda", "tiger", "penguin")
	farmAvatars      = set("cow", "pig", "sheep", "chicken", "goat", "horse")
	predatorAvatars  = set("wolf", "tiger", "bear", "fox", "lion")
)

var locationDurations = map[string]int64{
	models.LocationForest:    1500,
	models.LocationMountains: 3600,
	models.LocationSpace:     7200,
}

func set(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

// Expedition is the resolved outcome of starting an expedition.
type Expedition struct {
	Location string
	Score    int
	Duration int64
	WolfHp   int
}

// NormalizeLocation maps unknown locations to the forest.
func NormalizeLocation(location string) string {
	if _, ok := locationDurations[location]; ok {
		return location
	}
	return models.LocationForest
}

func avatarScore(avatar string) int {
	switch {
	case legendaryAvatars[avatar]:
		return legendaryScore
	case rareAvatars[avatar]:
		return rareScore
	default:
		return commonScore
	}
}

// ResolveExpedition computes score, duration and the optional wolf
// encounter for the given roster. roll is a uniform draw in [0, 1).
func ResolveExpedition(roster []models.Player, location string, roll float64) Expedition {
	location = NormalizeLocation(location)

	score, farm, predators := 0, 0, 0
	for _, p := range roster {
		score += avatarScore(p.Avatar)
		if farmAvatars[p.Avatar] {
			farm++
		}
		if predatorAvatars[p.Avatar] {
			predators++
		}
	}
	if farm >= farmBonusThreshold {
		score = score * 3 / 2
	}

	duration := locationDurations[location]
	if predators >= predatorBonusThreshold {
		duration = duration * 85 / 100
	}

	wolfHp := 0
	if roll < wolfSpawnChance {
		wolfHp = wolfHpPerPlayer * len(roster)
	}

	return Expedition{
		Location: location,
		Score:    score,
		Duration: duration,
		WolfHp:   wolfHp,
	}
}
