package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTally(t *testing.T) {
	imposters := map[string]bool{"imp": true}

	tests := []struct {
		name       string
		votes      map[string]string
		want       Outcome
		eliminated string
	}{
		{
			name:  "no votes",
			votes: map[string]string{},
			want:  OutcomeTie,
		},
		{
			name:  "every vote distinct",
			votes: map[string]string{"imp": "a", "a": "b", "b": "c", "c": "imp"},
			want:  OutcomeTie,
		},
		{
			name:  "two way tie at max",
			votes: map[string]string{"a": "imp", "b": "imp", "c": "a", "imp": "a"},
			want:  OutcomeTie,
		},
		{
			name:       "imposter caught",
			votes:      map[string]string{"a": "imp", "b": "imp", "c": "imp", "imp": "a"},
			want:       OutcomeCrewmatesWin,
			eliminated: "imp",
		},
		{
			name:       "crewmate eliminated",
			votes:      map[string]string{"a": "b", "c": "b", "imp": "b", "b": "imp"},
			want:       OutcomeImpostersWin,
			eliminated: "b",
		},
		{
			name:       "single vote",
			votes:      map[string]string{"a": "imp"},
			want:       OutcomeCrewmatesWin,
			eliminated: "imp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tally(tt.votes, imposters)
			assert.Equal(t, tt.want, got.Outcome)
			assert.Equal(t, tt.eliminated, got.EliminatedID)
		})
	}
}

func TestTally_Deterministic(t *testing.T) {
	votes := map[string]string{"a": "b", "b": "c", "c": "b", "d": "c", "e": "a"}
	imposters := map[string]bool{"c": true}

	first := Tally(votes, imposters)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Tally(votes, imposters))
	}
}

func TestTally_VotedCorrectly(t *testing.T) {
	votes := map[string]string{"a": "imp", "b": "c", "c": "imp"}
	got := Tally(votes, map[string]bool{"imp": true})

	assert.True(t, got.VotedCorrectly["a"])
	assert.False(t, got.VotedCorrectly["b"])
	assert.True(t, got.VotedCorrectly["c"])
	assert.Equal(t, map[string]int{"imp": 2, "c": 1}, got.Counts)
	assert.Equal(t, []string{"imp"}, got.ImposterIDs)
}

func TestTally_MultipleImposters(t *testing.T) {
	imposters := map[string]bool{"x": true, "y": true}
	got := Tally(map[string]string{"a": "y", "b": "y", "x": "a"}, imposters)

	assert.Equal(t, OutcomeCrewmatesWin, got.Outcome)
	assert.Equal(t, []string{"x", "y"}, got.ImposterIDs)
}
