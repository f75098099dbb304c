package game

import (
	"math/rand/v2"
)

// ImposterCount is one imposter for a normal round. In everyone-imposter mode
// it is max(1, floor(players/3)).
func ImposterCount(players int, everyoneImposter bool) int {
	if players <= 0 {
		return 0
	}
	if !everyoneImposter {
		return 1
	}
	n := players / 3
	if n < 1 {
		n = 1
	}
	return n
}

// AssignRoles picks ImposterCount players uniformly at random; everyone else
// is a crewmate. A nil rng falls back to the global source.
func AssignRoles(ids []string, everyoneImposter bool, rng *rand.Rand) map[string]Role {
	var perm []int
	if rng != nil {
		perm = rng.Perm(len(ids))
	} else {
		perm = rand.Perm(len(ids))
	}

	imposters := ImposterCount(len(ids), everyoneImposter)
	roles := make(map[string]Role, len(ids))
	for i, idx := range perm {
		if i < imposters {
			roles[ids[idx]] = RoleImposter
		} else {
			roles[ids[idx]] = RoleCrewmate
		}
	}
	return roles
}
