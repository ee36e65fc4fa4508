package models

import (
	"time"
)

// Profile is the persistent identity kept in PostgreSQL. It survives
// broadcast sessions; the live aura is rebuilt from it whenever the user
// starts broadcasting again.
type Profile struct {
	UID           string    `json:"uid"`
	Email         string    `json:"email"`
	Nickname      string    `json:"nickname"`
	Icon          string    `json:"icon"`
	Gender        Gender    `json:"gender"`
	AgeRange      AgeRange  `json:"ageRange"`
	Status        RelStatus `json:"status"`
	StatusMessage string    `json:"statusMessage,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	LastUpdated   time.Time `json:"lastUpdated"`
}
