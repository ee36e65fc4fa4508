package models

import (
	"time"
)

// Gender is a broadcaster's self-reported gender.
type Gender string

const (
	GenderMale      Gender = "Male"
	GenderFemale    Gender = "Female"
	GenderNonBinary Gender = "Non-binary"
	GenderOther     Gender = "Other"
)

// RelStatus is a broadcaster's relationship status.
type RelStatus string

const (
	StatusSingle      RelStatus = "Single"
	StatusMarried     RelStatus = "Married"
	StatusDivorced    RelStatus = "Divorced"
	StatusWidowed     RelStatus = "Widowed"
	StatusComplicated RelStatus = "Complicated"
)

// Mood is the vibe a broadcaster is currently putting out.
type Mood string

const (
	MoodCozy     Mood = "Cozy"
	MoodSoloDolo Mood = "Solo dolo"
	MoodRizzing  Mood = "Rizzing"
	MoodFreaky   Mood = "Freaky"
	MoodSendy    Mood = "Sendy"
)

// AgeRange buckets a broadcaster's age.
type AgeRange string

const (
	Age18to25  AgeRange = "18-25"
	Age25to35  AgeRange = "25-35"
	Age35to45  AgeRange = "35-45"
	Age45to55  AgeRange = "45-55"
	Age55to65  AgeRange = "55-65"
	AgeAbove65 AgeRange = "Above 65"
)

// Wildcard sentinels used in seeking preferences. These short-circuit
// matching and must never be compared against attribute values literally.
const (
	SeekingEveryone = "Everyone" // gender wildcard
	SeekingAll      = "All"      // age range / status wildcard
)

// Genders lists the valid gender values.
var Genders = []Gender{GenderMale, GenderFemale, GenderNonBinary, GenderOther}

// RelStatuses lists the valid relationship statuses.
var RelStatuses = []RelStatus{StatusSingle, StatusMarried, StatusDivorced, StatusWidowed, StatusComplicated}

// Moods lists the valid moods.
var Moods = []Mood{MoodCozy, MoodSoloDolo, MoodRizzing, MoodFreaky, MoodSendy}

// AgeRanges lists the valid age brackets.
var AgeRanges = []AgeRange{Age18to25, Age25to35, Age35to45, Age45to55, Age55to65, AgeAbove65}

// Seeking holds a viewer's one-directional preference filters. Each field
// is either a concrete attribute value or its wildcard sentinel.
type Seeking struct {
	Gender   string `bson:"gender" json:"gender"`
	AgeRange string `bson:"ageRange" json:"ageRange"`
	Status   string `bson:"status" json:"status"`
}

// Matches reports whether a candidate aura passes all three preference
// filters. Wildcards pass without comparing.
func (s Seeking) Matches(a *Aura) bool {
	if s.Gender != "" && s.Gender != SeekingEveryone && s.Gender != string(a.Gender) {
		return false
	}
	if s.AgeRange != "" && s.AgeRange != SeekingAll && s.AgeRange != string(a.AgeRange) {
		return false
	}
	if s.Status != "" && s.Status != SeekingAll && s.Status != string(a.Status) {
		return false
	}
	return true
}

// AuraStats carries the two counters other viewers write to. Both are
// updated via field-scoped writes only, never whole-document overwrites.
type AuraStats struct {
	Interested int      `bson:"interested" json:"interested"`
	InRadar    int      `bson:"inRadar" json:"inRadar"`
	PulsedBy   []string `bson:"pulsedBy,omitempty" json:"pulsedBy,omitempty"`
}

// Aura is one user's live broadcast record, stored in the live_auras
// collection keyed by user id. Existence of the document means the user
// is currently broadcasting; LastSeen is assigned by the store on every
// write and readers treat anything older than the staleness window as
// absent.
type Aura struct {
	UID           string    `bson:"_id" json:"uid"`
	Nickname      string    `bson:"nickname" json:"nickname"`
	Icon          string    `bson:"icon" json:"icon"`
	Geohash       string    `bson:"geohash" json:"geohash"`
	Lat           float64   `bson:"lat" json:"lat"`
	Lng           float64   `bson:"lng" json:"lng"`
	Mood          Mood      `bson:"mood" json:"mood"`
	StatusMessage string    `bson:"statusMessage" json:"statusMessage"`
	VibeColor     string    `bson:"vibeColor" json:"vibeColor"`
	PulseBPM      int       `bson:"pulseBPM" json:"pulseBPM"`
	YoutubeURL    string    `bson:"youtubeUrl,omitempty" json:"youtubeUrl,omitempty"`
	AgeRange      AgeRange  `bson:"ageRange" json:"ageRange"`
	Gender        Gender    `bson:"gender" json:"gender"`
	Status        RelStatus `bson:"status" json:"status"`
	Seeking       Seeking   `bson:"seeking" json:"seeking"`
	Stats         AuraStats `bson:"stats" json:"stats"`
	LastSeen      time.Time `bson:"lastSeen" json:"lastSeen"`
}

// Locatable reports whether the aura carries usable coordinates. Records
// missing both fields decode as (0,0) and are dropped from candidate sets.
func (a *Aura) Locatable() bool {
	return a.Lat != 0 || a.Lng != 0
}
