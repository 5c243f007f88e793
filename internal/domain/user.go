package domain

import "time"

// User is one half of a tutor/student pairing.
type User struct {
	ID                 string
	Name               string
	Email              string
	PasswordHash       string
	Timezone           string
	PartnerID          *string
	NotificationHandle *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasPartner reports whether the user is currently paired.
func (u *User) HasPartner() bool {
	return u.PartnerID != nil && *u.PartnerID != ""
}

// CanNotify reports whether a delivery handle is registered.
func (u *User) CanNotify() bool {
	return u.NotificationHandle != nil && *u.NotificationHandle != ""
}

// IsPartnerOf reports whether other is this user's paired partner.
func (u *User) IsPartnerOf(otherID string) bool {
	return u.HasPartner() && *u.PartnerID == otherID
}
