package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Profile is the public face of a user. Its ID is the user's ID.
type Profile struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Name returns the display name, falling back to a short form of the id.
func (p *Profile) Name() string {
	if name := strings.TrimSpace(p.DisplayName); name != "" {
		return name
	}
	return p.ID.String()[:8]
}

// DefaultDisplayName is the local part of an email address.
func DefaultDisplayName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
