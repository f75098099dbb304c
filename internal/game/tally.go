package game

import "sort"

// Tally resolves a round from its recorded votes. It depends only on the
// (voter, target) pairs and the imposter set, never on map iteration order.
//
// The target with a strict plurality is eliminated. A tie for the maximum, or
// no votes at all, is OutcomeTie.
func Tally(votes map[string]string, imposters map[string]bool) Result {
	counts := make(map[string]int)
	for _, target := range votes {
		counts[target]++
	}

	maxVotes := 0
	leaders := 0
	eliminated := ""
	for target, n := range counts {
		switch {
		case n > maxVotes:
			maxVotes = n
			leaders = 1
			eliminated = target
		case n == maxVotes:
			leaders++
		}
	}

	result := Result{
		Outcome:        OutcomeTie,
		Counts:         counts,
		ImposterIDs:    make([]string, 0, len(imposters)),
		VotedCorrectly: make(map[string]bool, len(votes)),
	}
	for id, ok := range imposters {
		if ok {
			result.ImposterIDs = append(result.ImposterIDs, id)
		}
	}
	sort.Strings(result.ImposterIDs)

	for voter, target := range votes {
		result.VotedCorrectly[voter] = imposters[target]
	}

	if leaders != 1 {
		return result
	}

	result.EliminatedID = eliminated
	if imposters[eliminated] {
		result.Outcome = OutcomeCrewmatesWin
	} else {
		result.Outcome = OutcomeImpostersWin
	}
	return result
}
