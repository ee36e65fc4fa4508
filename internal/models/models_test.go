package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeekingMatches(t *testing.T) {
	aura := &Aura{
		Gender:   GenderFemale,
		AgeRange: Age25to35,
		Status:   StatusSingle,
	}

	cases := []struct {
		name    string
		seeking Seeking
		want    bool
	}{
		{"empty filters pass", Seeking{}, true},
		{"all wildcards pass", Seeking{Gender: SeekingEveryone, AgeRange: SeekingAll, Status: SeekingAll}, true},
		{"exact match", Seeking{Gender: "Female", AgeRange: "25-35", Status: "Single"}, true},
		{"gender mismatch", Seeking{Gender: "Male"}, false},
		{"age mismatch", Seeking{AgeRange: "18-25"}, false},
		{"status mismatch", Seeking{Status: "Married"}, false},
		{"wildcard gender, concrete age", Seeking{Gender: SeekingEveryone, AgeRange: "25-35"}, true},
		{"one mismatch fails the rest", Seeking{Gender: "Female", AgeRange: "25-35", Status: "Widowed"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.seeking.Matches(aura))
		})
	}
}

func TestSeekingWildcardsNotTreatedAsValues(t *testing.T) {
	// A record cannot carry the sentinel as an attribute, but even if it
	// did, the wildcard must match by short-circuit and not by equality.
	odd := &Aura{Gender: Gender(SeekingEveryone)}
	assert.True(t, Seeking{Gender: SeekingEveryone}.Matches(odd))
	assert.False(t, Seeking{Gender: "Female"}.Matches(odd))
}

func TestLocatable(t *testing.T) {
	assert.False(t, (&Aura{}).Locatable())
	assert.True(t, (&Aura{Lat: 0, Lng: 0.001}).Locatable())
	assert.True(t, (&Aura{Lat: -33.86, Lng: 151.2}).Locatable())
}

func TestConversationIDOrderIndependent(t *testing.T) {
	assert.Equal(t, ConversationID("alice", "bob"), ConversationID("bob", "alice"))
	assert.Equal(t, "alice_bob", ConversationID("bob", "alice"))
	assert.Equal(t, "a_a", ConversationID("a", "a"))
}
