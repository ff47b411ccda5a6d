package models

import "time"

// DefaultProfileImage is assigned when signup metadata carries no image choice.
const DefaultProfileImage = "cat-profile-1.png"

// UserProfile is the public profile row. ID matches the external auth
// service's user id; the row is auto-provisioned on first authentication.
type UserProfile struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	ProfileImage string    `json:"profile_image"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}
