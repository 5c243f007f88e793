package dto

import "time"

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Name               string `json:"name"`
	Email              string `json:"email"`
	Password           string `json:"password"`
	Timezone           string `json:"timezone"`
	NotificationHandle string `json:"notification_handle"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserResponse is a profile as the owner or their partner sees it.
type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Timezone  string    `json:"timezone"`
	PartnerID *string   `json:"partner_id"`
	CanNotify bool      `json:"can_notify"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpdateProfileRequest is a partial profile update. An empty
// notification_handle unregisters the device.
type UpdateProfileRequest struct {
	Name               *string `json:"name"`
	Timezone           *string `json:"timezone"`
	NotificationHandle *string `json:"notification_handle"`
}

// PairRequest links the caller to another account.
type PairRequest struct {
	PartnerID string `json:"partner_id"`
}
