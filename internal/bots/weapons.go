package bots

import (
	"massivegame/server/internal/combat"
	"massivegame/server/internal/playerstore"
)

func weaponRangeOf(w playerstore.Weapon) float64 {
	return combat.Stats(combat.Weapon(w)).RangeUnits
}

func weaponMaxAmmo(w playerstore.Weapon) int32 {
	return combat.Stats(combat.Weapon(w)).MaxAmmo
}
