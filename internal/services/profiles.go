package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/jayakanthcm/moodcast-backend/internal/models"
)

// ProfileService stores the persistent identity in PostgreSQL. The live
// aura document is ephemeral; this row is what survives between
// broadcast sessions.
type ProfileService struct {
	db *sql.DB
}

func NewProfileService(db *sql.DB) *ProfileService {
	return &ProfileService{db: db}
}

// Get returns a profile by uid, nil when absent.
func (s *ProfileService) Get(ctx context.Context, uid string) (*models.Profile, error) {
	var p models.Profile
	err := s.db.QueryRowContext(ctx, `
		SELECT uid, email, nickname, icon, gender, age_range, status, status_message, created_at, last_updated
		FROM users WHERE uid = $1
	`, uid).Scan(&p.UID, &p.Email, &p.Nickname, &p.Icon, &p.Gender, &p.AgeRange, &p.Status, &p.StatusMessage, &p.CreatedAt, &p.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("profiles: get %s: %w", uid, err)
	}
	return &p, nil
}

// Save creates or updates a profile. A missing uid gets a fresh one; the
// (possibly generated) uid is returned.
func (s *ProfileService) Save(ctx context.Context, p models.Profile) (string, error) {
	if p.UID == "" {
		p.UID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (uid, email, nickname, icon, gender, age_range, status, status_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (uid) DO UPDATE SET
			email = EXCLUDED.email,
			nickname = EXCLUDED.nickname,
			icon = EXCLUDED.icon,
			gender = EXCLUDED.gender,
			age_range = EXCLUDED.age_range,
			status = EXCLUDED.status,
			status_message = EXCLUDED.status_message,
			last_updated = NOW()
	`, p.UID, p.Email, p.Nickname, p.Icon, p.Gender, p.AgeRange, p.Status, p.StatusMessage)
	if err != nil {
		return "", fmt.Errorf("profiles: save %s: %w", p.UID, err)
	}
	return p.UID, nil
}
